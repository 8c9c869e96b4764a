package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

func middlewareAuthentication(verifier jwt.JWT, publicEndpoints map[string]map[string]struct{}) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, public := publicEndpoints[r.Method][matchedRoutePath(r)]; public {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			if verifier == nil {
				writeJSON(w, errorResponse{Message: "Invalid or expired token"}, http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(token))
			if err != nil {
				slog.WarnContext(r.Context(), "rejected bearer token", "error", err)
				writeJSON(w, errorResponse{Message: "Invalid or expired token"}, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(jwt.SetAuth(r.Context(), claims)))
		})
	}
}
