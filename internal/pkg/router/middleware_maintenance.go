package router

import (
	"net/http"
	"slices"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
)

// middlewareMaintenance answers 503 for routes listed under
// app.maintenance.endpoints. The list is read per request so a config
// reload applies immediately; "*" closes every route except /health.
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := matchedRoutePath(r)
			blocked := slices.ContainsFunc(cfg.GetArray("app.maintenance.endpoints"), func(e string) bool {
				e = strings.TrimSpace(e)
				return e == route || (e == "*" && route != "/health")
			})
			if blocked {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, errorResponse{Message: "service is under maintenance"}, http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
