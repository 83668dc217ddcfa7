// Command audiogen synthesizes audio for listening questions that have none,
// stores the MP3 in the question-audio bucket and saves its public URL.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/config"
	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/logger"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/storage"
	"github.com/tepiprep/tepiprep/internal/tts"
)

func main() {
	limit := flag.Int("limit", 100, "maximum number of questions to process")
	workers := flag.Int("workers", tts.DefaultWorkers, "concurrent synthesis requests")
	pause := flag.Duration("pause", tts.DefaultPause, "pause after each request, per worker")
	flag.Parse()

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

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		lg.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		lg.Fatal("blob store", zap.Error(err))
	}

	synth, err := tts.NewGoogle(ctx, cfg.GoogleTTSVoice)
	if err != nil {
		lg.Fatal("tts client", zap.Error(err))
	}
	defer synth.Close()

	gen := tts.NewGenerator(question.NewSQLStore(dbh), storage.NewBuckets(bs, cfg.PublicURL), synth, lg,
		tts.WithWorkers(*workers), tts.WithPause(*pause))

	lg.Info("audio generation started", zap.String("voice", cfg.GoogleTTSVoice), zap.Int("limit", *limit))
	res, err := gen.Run(ctx, *limit)
	if err != nil {
		lg.Fatal("audio generation aborted", zap.Error(err), zap.Int("done", res.Done))
	}
	lg.Info("audio generation finished", zap.Int("done", res.Done), zap.Int("failed", res.Failed))
}
