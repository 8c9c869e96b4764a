package router

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/julienschmidt/httprouter"
	"github.com/samber/lo"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const maxLoggedBodyBytes = 16 * 1024

// bodyMasker hides secret values (the OTP code, tokens) and shortens email
// addresses in logged request and response payloads.
type bodyMasker struct {
	maskKeys  map[string]struct{}
	emailKeys map[string]struct{}
}

func newBodyMasker(cfg config.Config) bodyMasker {
	m := bodyMasker{maskKeys: map[string]struct{}{}, emailKeys: map[string]struct{}{}}
	if cfg == nil {
		return m
	}

	normalize := func(s string, _ int) string { return strings.TrimSpace(strings.ToLower(s)) }
	for _, k := range lo.Compact(lo.Map(cfg.GetArray("instrument.log_mask_fields"), normalize)) {
		m.maskKeys[k] = struct{}{}
	}
	for _, k := range lo.Compact(lo.Map(cfg.GetArray("instrument.log_email_fields"), normalize)) {
		m.emailKeys[k] = struct{}{}
	}
	return m
}

func (m bodyMasker) headers(h http.Header) http.Header {
	out := h.Clone()
	for key := range out {
		if _, found := m.maskKeys[strings.ToLower(key)]; found {
			out.Set(key, "***")
		}
	}
	return out
}

func (m bodyMasker) data(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			key := strings.ToLower(k)
			if _, found := m.maskKeys[key]; found {
				out[k] = "***"
				continue
			}
			if s, ok := v2.(string); ok {
				if _, found := m.emailKeys[key]; found {
					out[k] = instrument.MaskEmail(s)
					continue
				}
			}
			out[k] = m.data(v2)
		}
		return out
	case []any:
		return lo.Map(val, func(item any, _ int) any { return m.data(item) })
	default:
		return v
	}
}

func (m bodyMasker) body(raw []byte, capped bool) any {
	if len(raw) == 0 {
		return nil
	}

	var out any
	var parsed any
	switch {
	case json.Unmarshal(raw, &parsed) == nil:
		out = m.data(parsed)
	case utf8.Valid(raw):
		out = string(raw)
	default:
		out = "<binary body omitted>"
	}

	if capped {
		return map[string]any{"body": out, "truncated": true}
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	body   bytes.Buffer
	capped bool
	err    error
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	if remaining := maxLoggedBodyBytes - w.body.Len(); remaining > 0 {
		w.body.Write(p[:min(len(p), remaining)])
		w.capped = w.capped || len(p) > remaining
	} else if len(p) > 0 {
		w.capped = true
	}

	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusRecorder) SetError(err error) {
	w.err = err
}

func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func matchedRoutePath(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

// peekBody reads up to maxLoggedBodyBytes of the body and puts it back.
func peekBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false
	}

	//nolint:errcheck // best effort for logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
	if len(head) > maxLoggedBodyBytes {
		return head[:maxLoggedBodyBytes], true
	}
	return head, false
}

func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	masker := newBodyMasker(cfg)
	if ins == nil {
		ins = instrument.NewNoop()
	}
	tracer := ins.Tracer("http.server")
	meter := ins.Meter("http.server")

	requestCounter, err := meter.Int64Counter("http.server.requests", metric.WithDescription("Number of HTTP requests received"))
	if err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	durationHistogram, err := meter.Float64Histogram("http.server.duration", metric.WithDescription("HTTP request duration in milliseconds"))
	if err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			start := time.Now()

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route, trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
			))
			defer span.End()

			reqBody, reqCapped := peekBody(r)
			slog.InfoContext(ctx, "request received",
				"method", r.Method,
				"path", route,
				"uri", r.RequestURI,
				"headers", masker.headers(r.Header),
				"body", masker.body(reqBody, reqCapped),
			)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.statusCode()
			elapsed := time.Since(start)
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}

			if rec.err != nil {
				span.RecordError(rec.err)
			}
			switch {
			case status >= http.StatusInternalServerError && rec.err != nil:
				span.SetStatus(codes.Error, rec.err.Error())
			case status >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(status))
			default:
				span.SetStatus(codes.Ok, "")
			}

			span.SetAttributes(attrs...)
			span.SetAttributes(
				semconv.NetworkProtocolVersionKey.String(r.Proto),
				semconv.ServerAddressKey.String(r.Host),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.response_content_length", rec.bytes),
			)
			if requestCounter != nil {
				requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
			}
			if durationHistogram != nil {
				durationHistogram.Record(ctx, float64(elapsed.Milliseconds()), metric.WithAttributes(attrs...))
			}

			slog.InfoContext(ctx, "response sent",
				"method", r.Method,
				"path", route,
				"status", status,
				"bytes", rec.bytes,
				"latency_ms", elapsed.Milliseconds(),
				"body", masker.body(rec.body.Bytes(), rec.capped),
			)
		})
	}
}
