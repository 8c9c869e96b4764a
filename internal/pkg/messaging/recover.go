package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/otpgate/internal/pkg/stacktrace"
)

// dispatch runs handler with panic recovery and applies auto-ack.
func dispatch(ctx context.Context, kind string, handler Handler, msg Message, autoAck bool) {
	err := callHandlerWithRecover(ctx, kind, func() error { return handler(ctx, msg) })
	if !autoAck {
		return
	}

	respond := msg.Ack
	if err != nil {
		respond = msg.Nack
	}
	if rerr := respond(ctx); rerr != nil {
		slog.WarnContext(ctx, "failed to respond to message", "kind", kind, "source", msg.Source(), "error", rerr)
	}
}

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			stack := debug.Stack()
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", paths)
			} else {
				slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", string(stack))
			}
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}
