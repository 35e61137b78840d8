package middleware

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/lendi-api/internal/domain"
)

// RequireRole lets a request through only when its JWT role is one of roles.
// It must run after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !slices.Contains(roles, claims.Role) {
				slog.WarnContext(r.Context(), "role denied", "user_id", claims.UserID, "role", claims.Role, "path", r.URL.Path)
				WriteJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly admits operators: admins and super admins.
func AdminOnly() func(http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin)
}
