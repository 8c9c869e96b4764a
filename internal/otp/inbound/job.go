package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"go.uber.org/atomic"
)

const defaultSweepInterval = time.Minute

// Sweeper periodically removes expired records. A tick that arrives while
// the previous sweep is still running is skipped.
type Sweeper struct {
	uc       uc
	interval time.Duration
	running  atomic.Bool
}

func NewSweeper(uc uc, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{uc: uc, interval: interval}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		slog.WarnContext(ctx, "previous otp sweep still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	if _, err := s.uc.SweepExpired(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to sweep expired otp records", "error", err)
	}
}

func RegisterSweeperJob(ctx context.Context, cfg config.Config, routine *goroutine.Manager, uc uc) {
	if !cfg.GetBool("modules.otp.sweeper.enabled") {
		return
	}

	sweeper := NewSweeper(uc, cfg.GetSecond("modules.otp.sweeper.interval_seconds"))
	routine.Go(ctx, func(pCtx context.Context) error {
		slog.InfoContext(ctx, "Running job for sweeping expired otp records", "interval", sweeper.interval.String())
		return sweeper.Run(pCtx)
	})
}
