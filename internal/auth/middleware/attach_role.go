package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/rbac"
)

// AttachRoleFromDB replaces the role claimed by the token with the one
// stored for the user, so a demotion takes effect before the token expires.
// A token whose user no longer exists is rejected.
func AttachRoleFromDB(db *sql.DB, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := rbac.SubjectFromContext(ctx)

			var role string
			err := db.QueryRowContext(ctx, `SELECT role FROM users WHERE id=$1`, sub).Scan(&role)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows):
				unauthorized(w)
			default:
				log.Error("load user role", zap.String("user_id", sub), zap.Error(err))
				writeErr(w, apperr.Request(err))
			}
		})
	}
}
