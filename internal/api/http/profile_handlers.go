package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/auth"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/rbac"
	"github.com/tepiprep/tepiprep/internal/report"
)

func ProfileHandler(accounts *auth.Accounts, prog *progress.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := rbac.SubjectFromContext(ctx)
		u, err := accounts.Get(ctx, userID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		p, err := prog.Profile(ctx, userID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u, "profile": p})
	}
}

// ProgressCSVHandler downloads the user's answer history.
func ProgressCSVHandler(prog *progress.Service, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hist, err := prog.History(r.Context(), rbac.SubjectFromContext(r.Context()), 0)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="progression.csv"`)
		if err := report.WriteProgressCSV(w, hist, loc); err != nil {
			log.Error("write progress csv", zap.Error(err))
		}
	}
}
