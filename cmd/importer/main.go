// Command importer loads TOEIC questions from a CSV file into the database.
//
//	go run ./cmd/importer -file questions.csv [-dry-run]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/config"
	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/logger"
	"github.com/tepiprep/tepiprep/internal/question"
)

func main() {
	file := flag.String("file", "questions.csv", "CSV file to import")
	dryRun := flag.Bool("dry-run", false, "parse and validate without writing")
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

	f, err := os.Open(*file)
	if err != nil {
		lg.Fatal("open csv", zap.String("file", *file), zap.Error(err))
	}
	defer f.Close()

	qs, err := question.ParseCSV(f)
	if err != nil {
		lg.Fatal("parse csv", zap.String("file", *file), zap.Error(err))
	}
	lg.Info("csv parsed", zap.String("file", *file), zap.Int("rows", len(qs)))

	if *dryRun {
		for i := range qs {
			if err := qs[i].Validate(); err != nil {
				lg.Fatal("invalid row", zap.Int("row", i+1), zap.Error(err))
			}
		}
		lg.Info("dry run ok")
		return
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		lg.Fatal("db open failed", zap.Error(err))
	}
	defer dbh.Close()

	n, err := question.NewSQLStore(dbh).CreateAll(ctx, qs)
	if err != nil {
		lg.Fatal("import failed, nothing written", zap.Error(err))
	}
	lg.Info("questions imported", zap.Int("count", n))
}
