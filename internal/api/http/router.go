package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/auth"
	authmw "github.com/tepiprep/tepiprep/internal/auth/middleware"
	"github.com/tepiprep/tepiprep/internal/exam"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/rbac"
	"github.com/tepiprep/tepiprep/internal/stats"
	"github.com/tepiprep/tepiprep/internal/storage"
	syncx "github.com/tepiprep/tepiprep/internal/sync"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	DB        *sql.DB
	Log       *zap.Logger
	Tokens    *authmw.AuthService
	Accounts  *auth.Accounts
	Questions question.Store
	Checker   *question.Checker
	Progress  *progress.Service
	Lessons   *lessonflow.Service
	Exams     *exam.Service
	Stats     *stats.Aggregator
	Buckets   *storage.Buckets
	Events    *syncx.EventRepo

	CORSOrigins []string
	Location    *time.Location
	Production  bool
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if d.Checker == nil {
		d.Checker = question.NewChecker(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(log), middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := d.DB.PingContext(r.Context()); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/signup", SignUpHandler(d.Accounts, d.Tokens, log))
		ar.Post("/login", LoginHandler(d.Accounts, d.Tokens, log))
		ar.Post("/password/reset", ResetRequestHandler(d.Accounts, log, d.Production))
		ar.Post("/password/confirm", ResetConfirmHandler(d.Accounts, log))
	})
	r.Route("/storage", func(sr chi.Router) {
		MountStorage(sr, d.Buckets, log)
	})

	// Protected API (JWT -> role from DB -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Tokens))
		pr.Use(authmw.AttachRoleFromDB(d.DB, log))

		pr.Get("/auth/session", SessionHandler(d.Accounts, log))
		pr.With(rbac.Require(rbac.PermChangePassword)).
			Post("/auth/password/change", ChangePasswordHandler(d.Accounts, log))

		pr.Route("/lessons", func(lr chi.Router) {
			lr.Use(rbac.Require(rbac.PermLessonPlay))
			lr.Get("/", ListLessonsHandler(d.Progress, log))
			lr.Get("/next", NextLessonHandler(d.Progress, log))
			lr.Get("/{id}", GetLessonHandler(log))
			lr.Post("/{id}/sessions", CreateSessionHandler(d.Lessons, log))
		})
		pr.Route("/sessions/{id}", func(sr chi.Router) {
			sr.Use(rbac.Require(rbac.PermLessonPlay))
			sr.Get("/", GetSessionHandler(d.Lessons, log))
			sr.Post("/actions", ApplyActionHandler(d.Lessons, log))
		})

		pr.With(rbac.Require(rbac.PermQuestionView)).
			Get("/questions", ListQuestionsHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermQuestionView)).
			Get("/questions/{id}", GetQuestionHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermQuestionView)).
			Get("/passages/{id}", GetPassageHandler(d.Questions, log))
		pr.With(rbac.Require(rbac.PermQuestionAnswer)).
			Post("/questions/{id}/answer", AnswerQuestionHandler(d.Questions, d.Checker, d.Progress, log))

		pr.Route("/exam/attempts", func(er chi.Router) {
			er.Use(rbac.Require(rbac.PermExamTake))
			er.Post("/", StartExamHandler(d.Exams, log))
			er.Get("/", ListExamAttemptsHandler(d.Exams, log))
			er.Get("/{id}", GetExamAttemptHandler(d.Exams, log))
			er.Post("/{id}/answers", SaveExamAnswerHandler(d.Exams, log))
			er.Post("/{id}/navigate", NavigateExamHandler(d.Exams, log))
			er.Post("/{id}/advance", AdvanceExamHandler(d.Exams, log))
			er.Post("/{id}/submit", SubmitExamHandler(d.Exams, log))
		})

		pr.With(rbac.Require(rbac.PermProfileViewOwn)).
			Get("/me/profile", ProfileHandler(d.Accounts, d.Progress, log))
		pr.With(rbac.Require(rbac.PermProfileViewOwn)).
			Get("/me/progress.csv", ProgressCSVHandler(d.Progress, d.Location, log))

		pr.Route("/admin", func(ad chi.Router) {
			ad.With(rbac.Require(rbac.PermQuestionCreate)).
				Post("/questions", CreateQuestionHandler(d.Questions, d.Stats, d.Events, log))
			ad.With(rbac.Require(rbac.PermUploadCreate)).
				Post("/uploads/{bucket}", UploadHandler(d.Buckets, log))
			ad.With(rbac.Require(rbac.PermStatsView)).
				Get("/stats", StatsHandler(d.Stats, log))
			ad.With(rbac.Require(rbac.PermStatsView)).
				Get("/stats.csv", StatsCSVHandler(d.Stats, log))
			ad.With(rbac.Require(rbac.PermEventsView)).
				Get("/events", EventsHandler(d.Events, log))
		})
	})

	return r
}
