package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start launches the HTTP server and returns a channel closed once a
// termination signal arrives.
func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr, "otp_store", a.config.GetString("modules.otp.store"),
			"otp_notifier", a.config.GetString("modules.otp.notifier"), "messaging", a.config.GetString("messaging.driver"))

		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen and serve http server", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sigCtx, stop := signal.NotifyContext(a.ctx, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
		defer stop()

		<-sigCtx.Done()
		close(terminateChan)

		slog.Info("termination signal received")
	}()

	return terminateChan
}

// Stop drains HTTP first so in-flight requests can still publish, then
// cancels background consumers and the sweeper, then closes resources.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	if a.cancel != nil {
		a.cancel()
	}

	slog.InfoContext(ctx, "waiting for all goroutine to finish")
	if err := a.goroutine.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}

	slog.InfoContext(ctx, "application gracefully shutdown")
}
