package question

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("question not found")

type Store interface {
	Create(ctx context.Context, q Question) (Question, error)
	CreateAll(ctx context.Context, qs []Question) (int, error)
	Get(ctx context.Context, id string) (Question, error)
	GetMany(ctx context.Context, ids []string) (map[string]Question, error)
	List(ctx context.Context, f Filter) ([]Question, error)
	Passage(ctx context.Context, passageID string) ([]Question, error)
	CountByCategory(ctx context.Context) (map[Category]int, error)
	Random(ctx context.Context, cat Category, n int) ([]Question, error)
	Draw(ctx context.Context, cat Category, n int) ([]Question, error)
	MissingAudio(ctx context.Context, limit int) ([]Question, error)
	SetAudioURL(ctx context.Context, id, url string) error
}
