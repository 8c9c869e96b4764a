package usecase

import (
	"context"
	"log/slog"
)

// SweepExpired removes records whose code has expired and whose lockout, if
// any, has ended. Validation still deletes expired records on its own; the
// sweep only reclaims storage for emails nobody comes back for.
func (s *Usecase) SweepExpired(ctx context.Context) (int64, error) {
	ctx, span := s.startSpan(ctx, "SweepExpired")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.durationOr("modules.otp.sweeper.timeout_ms", defaultStoreTimeout*5))
	defer cancel()

	removed, err := s.repoStore.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo delete expired otp records", "error", err)
		return 0, err
	}

	s.count(ctx, s.sweptCounter, removed)
	if removed > 0 {
		slog.InfoContext(ctx, "swept expired otp records", "removed", removed)
	}

	return removed, nil
}
