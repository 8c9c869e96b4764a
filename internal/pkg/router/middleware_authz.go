package router

import (
	"log/slog"
	"net/http"

	"github.com/shandysiswandi/otpgate/internal/pkg/authz"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
)

// RequirePermission rejects requests whose authenticated role may not perform
// act on obj. It must run after authentication.
func RequirePermission(enforcer authz.Enforcer, obj, act string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clm := jwt.GetAuth(r.Context())
			if clm == nil {
				writeJSON(w, errorResponse{Message: "Authentication required"}, http.StatusUnauthorized)
				return
			}

			if enforcer == nil {
				writeJSON(w, errorResponse{Message: "Account not allowed"}, http.StatusForbidden)
				return
			}

			ok, err := enforcer.Enforce(clm.Role, obj, act)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to check authorization", "subject", clm.Subject, "role", clm.Role, "error", err)
				writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
				return
			}
			if !ok {
				slog.WarnContext(r.Context(), "access denied", "subject", clm.Subject, "role", clm.Role, "object", obj, "action", act)
				writeJSON(w, errorResponse{Message: "Account not allowed"}, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
