// Package tts fills in missing audio for listening questions.
package tts

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/storage"
)

const (
	DefaultWorkers = 4
	DefaultPause   = 700 * time.Millisecond
)

var errEmptyScript = errors.New("tts: nothing to read")

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioStore is the part of question.Store the generator needs.
type AudioStore interface {
	MissingAudio(ctx context.Context, limit int) ([]question.Question, error)
	SetAudioURL(ctx context.Context, id, url string) error
}

type Generator struct {
	store   AudioStore
	buckets *storage.Buckets
	synth   Synthesizer
	log     *zap.Logger
	workers int
	pause   time.Duration
}

type Option func(*Generator)

func WithWorkers(n int) Option         { return func(g *Generator) { g.workers = n } }
func WithPause(d time.Duration) Option { return func(g *Generator) { g.pause = d } }

func NewGenerator(store AudioStore, buckets *storage.Buckets, synth Synthesizer, log *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		store:   store,
		buckets: buckets,
		synth:   synth,
		log:     log,
		workers: DefaultWorkers,
		pause:   DefaultPause,
	}
	for _, o := range opts {
		o(g)
	}
	if g.workers <= 0 {
		g.workers = 1
	}
	return g
}

// Result counts what one Run did.
type Result struct {
	Done   int
	Failed int
}

// Run synthesizes audio for up to limit questions. A failing question is
// logged and counted; it does not stop the others.
func (g *Generator) Run(ctx context.Context, limit int) (Result, error) {
	qs, err := g.store.MissingAudio(ctx, limit)
	if err != nil {
		return Result{}, err
	}
	var done, failed atomic.Int64
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for _, q := range qs {
		eg.Go(func() error {
			if err := g.one(ctx, q); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				g.log.Warn("audio generation failed", zap.String("question_id", q.ID), zap.Error(err))
			} else {
				done.Add(1)
			}
			if g.pause > 0 {
				select {
				case <-time.After(g.pause):
				case <-ctx.Done():
				}
			}
			return nil
		})
	}
	err = eg.Wait()
	return Result{Done: int(done.Load()), Failed: int(failed.Load())}, err
}

func (g *Generator) one(ctx context.Context, q question.Question) error {
	text := Script(q)
	if text == "" {
		return errEmptyScript
	}
	audio, err := g.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	obj, err := g.buckets.Upload(storage.BucketAudio, q.ID+".mp3", bytes.NewReader(audio))
	if err != nil {
		return err
	}
	return g.store.SetAudioURL(ctx, q.ID, obj.PublicURL)
}

// Script is the text read aloud for a listening question: the prompt
// followed by each choice with its letter.
func Script(q question.Question) string {
	var b strings.Builder
	if t := strings.TrimSpace(q.QuestionText); t != "" {
		b.WriteString(t)
	}
	for _, c := range q.Choices {
		t := strings.TrimSpace(c.Text)
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(c.Option + ". " + t)
		if !strings.HasSuffix(t, ".") && !strings.HasSuffix(t, "?") {
			b.WriteString(".")
		}
	}
	return b.String()
}
