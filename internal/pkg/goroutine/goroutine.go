// Package goroutine runs background work with a bounded number of goroutines.
package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by runtime.NumCPU when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

// Manager runs functions in goroutines with a concurrency limit and collects their errors.
//
// After Wait is called the manager refuses new work.
type Manager struct {
	mu     sync.Mutex
	errs   []error
	wg     sync.WaitGroup
	sema   chan struct{}
	state  sync.RWMutex
	closed bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go schedules f on a new goroutine. It reports false when the manager is
// closed or already at its limit; in that case f never runs.
func (g *Manager) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	if g == nil {
		return false
	}

	g.state.RLock()
	defer g.state.RUnlock()

	if g.closed {
		slog.WarnContext(ctx, "goroutine manager is closed, skipping new goroutine")
		return false
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(ctx, "maximum goroutine limit reached, failed to start new goroutine")
		return false
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() { <-g.sema }()
		defer g.recover(ctx)

		if err := ctx.Err(); err != nil {
			slog.WarnContext(ctx, "goroutine canceled before start", "because", err)
			return
		}

		if err := f(ctx); err != nil {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	}()

	return true
}

func (g *Manager) recover(ctx context.Context) {
	rvr := recover()
	if rvr == nil {
		return
	}

	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic occurred in goroutine", "panic", rvr, "stack", string(stack))
}

// Wait closes the manager, blocks until every scheduled goroutine returns
// and joins the errors they produced.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.state.Lock()
	g.closed = true
	g.state.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}
