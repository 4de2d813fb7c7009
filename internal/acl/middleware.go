// internal/acl/middleware.go
//
// Chi middleware helpers that enforce RBAC on staff API routes.

package acl

import (
	"net/http"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/vrclink/internal/auth"
)

// RequirePermission verifies that the staff member's roles allow action on
// Component.  A nil db disables the check, which is how deployments without
// MySQL run.
func RequirePermission(db sqlx.QueryerContext, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if db == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staff, ok := auth.StaffID(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			allowed, err := Allowed(r.Context(), db, staff, action)
			if err != nil {
				zap.L().Error("acl check", zap.String("staff", staff), zap.String("action", action), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				zap.L().Info("acl denied", zap.String("staff", staff), zap.String("action", action))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
