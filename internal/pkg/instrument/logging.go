package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const maskedValue = "***"

func initLogging(serviceName string, lp *sdklog.LoggerProvider, maskFields, emailFields []string) {
	slog.SetDefault(slog.New(newHandler(os.Stdout, serviceName, lp, maskFields, emailFields)))
}

func newHandler(w io.Writer, serviceName string, lp *sdklog.LoggerProvider, maskFields, emailFields []string) slog.Handler {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				a.Key = "severity"
			case slog.SourceKey:
				src, ok := a.Value.Any().(*slog.Source)
				if !ok {
					return a
				}
				_, rel, found := strings.Cut(src.File, "/internal/")
				if !found {
					return slog.Attr{}
				}
				return slog.String("file", fmt.Sprintf("%s:%d", filepath.Join("internal", rel), src.Line))
			}
			return a
		},
	})

	var handler slog.Handler = jsonHandler
	if lp != nil {
		handler = &multiHandler{handlers: []slog.Handler{
			jsonHandler,
			otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(lp)),
		}}
	}

	return &contextHandler{
		Handler: &maskHandler{
			handler:   handler,
			maskKeys:  buildKeySet(maskFields),
			emailKeys: buildKeySet(emailFields),
		},
		serviceName: serviceName,
	}
}

// MaskEmail hides the local part of an address, keeping its first and last
// character and the domain: "john.doe@example.com" becomes "j****e@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return maskedValue
	}

	runes := []rune(local)
	if len(runes) <= 2 {
		return string(runes[0]) + "****@" + domain
	}

	return string(runes[0]) + "****" + string(runes[len(runes)-1]) + "@" + domain
}

type contextHandler struct {
	slog.Handler
	serviceName string
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if cID := GetCorrelationID(ctx); cID != "" {
		r.AddAttrs(slog.String("_cID", cID))
	}
	if h.serviceName != "" {
		r.AddAttrs(slog.String("service", h.serviceName))
	}

	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), serviceName: h.serviceName}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), serviceName: h.serviceName}
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range m.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range m.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler.WithAttrs(attrs))
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(m.handlers))
	for _, handler := range m.handlers {
		handlers = append(handlers, handler.WithGroup(name))
	}
	return &multiHandler{handlers: handlers}
}

type maskHandler struct {
	handler   slog.Handler
	maskKeys  map[string]struct{}
	emailKeys map[string]struct{}
}

func (h *maskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *maskHandler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.maskKeys) == 0 && len(h.emailKeys) == 0 {
		return h.handler.Handle(ctx, record)
	}

	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(attr))
		return true
	})

	return h.handler.Handle(ctx, masked)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		masked = append(masked, h.maskAttr(attr))
	}
	return &maskHandler{handler: h.handler.WithAttrs(masked), maskKeys: h.maskKeys, emailKeys: h.emailKeys}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{handler: h.handler.WithGroup(name), maskKeys: h.maskKeys, emailKeys: h.emailKeys}
}

func (h *maskHandler) maskAttr(attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)
	if _, found := h.maskKeys[key]; found {
		return slog.String(attr.Key, maskedValue)
	}
	if _, found := h.emailKeys[key]; found && attr.Value.Kind() == slog.KindString {
		return slog.String(attr.Key, MaskEmail(attr.Value.String()))
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		masked := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			masked = append(masked, h.maskAttr(ga))
		}
		attr.Value = slog.GroupValue(masked...)
	case slog.KindString:
		if masked, ok := h.maskJSON([]byte(attr.Value.String())); ok {
			attr.Value = slog.StringValue(masked)
		}
	case slog.KindAny:
		switch v := attr.Value.Any().(type) {
		case map[string]any, []any:
			attr.Value = slog.AnyValue(h.maskData(v))
		case map[string]string:
			converted := make(map[string]any, len(v))
			for k, v2 := range v {
				converted[k] = v2
			}
			attr.Value = slog.AnyValue(h.maskData(converted))
		case []byte:
			if masked, ok := h.maskJSON(v); ok {
				attr.Value = slog.StringValue(masked)
			}
		}
	}

	return attr
}

func (h *maskHandler) maskJSON(payload []byte) (string, bool) {
	if len(payload) == 0 || (payload[0] != '{' && payload[0] != '[') {
		return "", false
	}
	var body any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", false
	}
	out, err := json.Marshal(h.maskData(body))
	if err != nil {
		return "", false
	}
	return string(out), true
}

func (h *maskHandler) maskData(v any) any {
	switch val := v.(type) {
	case map[string]any:
		masked := make(map[string]any, len(val))
		for k, v2 := range val {
			key := strings.ToLower(k)
			if _, found := h.maskKeys[key]; found {
				masked[k] = maskedValue
				continue
			}
			if s, ok := v2.(string); ok {
				if _, found := h.emailKeys[key]; found {
					masked[k] = MaskEmail(s)
					continue
				}
			}
			masked[k] = h.maskData(v2)
		}
		return masked
	case []any:
		res := make([]any, len(val))
		for i, v2 := range val {
			res[i] = h.maskData(v2)
		}
		return res
	default:
		return v
	}
}

func buildKeySet(fields []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(strings.ToLower(field))
		if field == "" {
			continue
		}
		keys[field] = struct{}{}
	}
	return keys
}
