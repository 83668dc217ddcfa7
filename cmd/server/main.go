package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/tepiprep/tepiprep/internal/api/http"
	"github.com/tepiprep/tepiprep/internal/auth"
	authmw "github.com/tepiprep/tepiprep/internal/auth/middleware"
	"github.com/tepiprep/tepiprep/internal/config"
	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/exam"
	"github.com/tepiprep/tepiprep/internal/jobs"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
	"github.com/tepiprep/tepiprep/internal/logger"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/stats"
	"github.com/tepiprep/tepiprep/internal/storage"
	syncx "github.com/tepiprep/tepiprep/internal/sync"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		lg.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	// --- Storage ---
	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		lg.Fatal("blob store", zap.Error(err))
	}
	buckets := storage.NewBuckets(bs, cfg.PublicURL)

	// --- Domain services ---
	accounts := auth.NewAccounts(dbh)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		u, err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			lg.Fatal("admin bootstrap failed", zap.Error(err))
		}
		lg.Info("admin account ready", zap.String("user_id", u.ID), zap.String("email", u.Email))
	}

	questions := question.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh, "local")
	prog := progress.NewService(dbh, progress.WithLocation(cfg.Location))
	flow := lessonflow.NewService(lessonflow.NewRegistry(cfg.LessonSessionTTL), lg,
		lessonflow.WithHearts(cfg.LessonHearts),
		lessonflow.WithReporter(prog),
		lessonflow.WithReporter(lessonflow.EventReporter(events, syncx.TypeLessonCompleted)))
	exams := exam.NewService(exam.NewSQLStore(dbh), questions, lg,
		exam.WithBlueprint(exam.NewBlueprint(cfg.ExamQuestionCount, cfg.ExamTimeLimit)),
		exam.WithActivity(prog),
		exam.WithEvents(events, syncx.TypeExamSubmitted))
	agg := stats.NewAggregator(dbh, cfg.StatsCacheTTL, stats.WithLocation(cfg.Location))

	sched, err := jobs.New(cfg.Location, cfg.StreakSweepSpec, "", prog,
		map[string]jobs.Purger{"lesson_sessions": flow, "admin_stats": agg}, lg)
	if err != nil {
		lg.Fatal("scheduler", zap.Error(err))
	}

	// --- Router ---
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			DB:          dbh,
			Log:         lg,
			Tokens:      authmw.NewAuthService(cfg.AuthSecret, cfg.TokenTTL),
			Accounts:    accounts,
			Questions:   questions,
			Checker:     question.NewChecker(nil),
			Progress:    prog,
			Lessons:     flow,
			Exams:       exams,
			Stats:       agg,
			Buckets:     buckets,
			Events:      events,
			CORSOrigins: cfg.CORSOrigins,
			Location:    cfg.Location,
			Production:  cfg.Production(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start(gctx)
		return nil
	})
	g.Go(func() error {
		lg.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.Env),
			zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutdown signal received")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	if err := g.Wait(); err != nil {
		lg.Error("server stopped with error", zap.Error(err))
	}
}
