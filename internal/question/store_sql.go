package question

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tepiprep/tepiprep/internal/apperr"
)

const columns = `id, category, question_text, audio_url, image_url, choices_json, text_with_gaps,
	gap_choices_json, gap_answers_json, passage_id, question_number, explanation, created_by, created_at`

type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) Create(ctx context.Context, q Question) (Question, error) {
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	if err := s.insert(ctx, s.db, &q); err != nil {
		return Question{}, err
	}
	return q, nil
}

// CreateAll validates every question first, then inserts them in one
// transaction. Nothing is written if any question is invalid.
func (s *SQLStore) CreateAll(ctx context.Context, qs []Question) (int, error) {
	for i := range qs {
		if err := qs[i].Validate(); err != nil {
			var ae *apperr.Error
			if errors.As(err, &ae) {
				return 0, &apperr.Error{Kind: ae.Kind, Message: fmt.Sprintf("Question %d : %s", i+1, ae.Message), Err: ae.Err}
			}
			return 0, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	for i := range qs {
		if err := s.insert(ctx, tx, &qs[i]); err != nil {
			return 0, fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(qs), nil
}

func (s *SQLStore) insert(ctx context.Context, ex execer, q *Question) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	q.CreatedAt = s.now().Unix()
	choices, err := json.Marshal(orEmpty(q.Choices))
	if err != nil {
		return err
	}
	gapChoices, err := json.Marshal(orEmptyMap(q.GapChoices))
	if err != nil {
		return err
	}
	gapAnswers, err := json.Marshal(orEmptyMap(q.GapAnswers))
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO questions (`+columns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		q.ID, string(q.Category), q.QuestionText, q.AudioURL, q.ImageURL, string(choices), q.TextWithGaps,
		string(gapChoices), string(gapAnswers), q.PassageID, q.QuestionNumber, q.Explanation, q.CreatedBy, q.CreatedAt)
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM questions WHERE id=$1`, id)
	q, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}

// GetMany returns the questions found among ids, keyed by id.
func (s *SQLStore) GetMany(ctx context.Context, ids []string) (map[string]Question, error) {
	out := make(map[string]Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM questions WHERE id IN (`+strings.Join(ph, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	qs, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	for _, q := range qs {
		out[q.ID] = q
	}
	return out, nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]Question, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM questions
		WHERE ($1 = '' OR category = $1) AND ($2 = '' OR passage_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, string(f.Category), f.PassageID, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Passage returns the questions sharing a passage, by question number.
func (s *SQLStore) Passage(ctx context.Context, passageID string) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM questions
		WHERE passage_id = $1 ORDER BY question_number, id`, passageID)
	if err != nil {
		return nil, err
	}
	qs, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrNotFound
	}
	return qs, nil
}

func (s *SQLStore) CountByCategory(ctx context.Context) (map[Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM questions GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[Category]int{}
	for rows.Next() {
		var c string
		var n int
		if err := rows.Scan(&c, &n); err != nil {
			return nil, err
		}
		out[Category(c)] = n
	}
	return out, rows.Err()
}

// Random picks up to n questions of a category in random order.
func (s *SQLStore) Random(ctx context.Context, cat Category, n int) ([]Question, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM questions
		WHERE category = $1 ORDER BY RANDOM() LIMIT $2`, string(cat), n)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Draw picks up to n questions of a category for an exam. Passages come
// whole, in question_number order, and only when they fit in what is left of
// n; standalone questions fill the rest in random order.
func (s *SQLStore) Draw(ctx context.Context, cat Category, n int) ([]Question, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT passage_id, COUNT(*) FROM questions
		WHERE category = $1 AND passage_id <> '' GROUP BY passage_id ORDER BY RANDOM()`, string(cat))
	if err != nil {
		return nil, err
	}
	type group struct {
		id   string
		size int
	}
	var groups []group
	for rows.Next() {
		var g group
		if err := rows.Scan(&g.id, &g.size); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Question
	for _, g := range groups {
		if g.size > n-len(out) {
			continue
		}
		rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM questions
			WHERE category = $1 AND passage_id = $2 ORDER BY question_number, id`, string(cat), g.id)
		if err != nil {
			return nil, err
		}
		qs, err := scanAll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qs...)
	}
	if left := n - len(out); left > 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM questions
			WHERE category = $1 AND passage_id = '' ORDER BY RANDOM() LIMIT $2`, string(cat), left)
		if err != nil {
			return nil, err
		}
		qs, err := scanAll(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qs...)
	}
	return out, nil
}

// MissingAudio lists listening questions with no audio yet.
func (s *SQLStore) MissingAudio(ctx context.Context, limit int) ([]Question, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM questions
		WHERE audio_url = '' AND category IN ($1,$2,$3,$4)
		ORDER BY created_at, id LIMIT $5`,
		string(CatPhotographs), string(CatQuestionResponse), string(CatConversations), string(CatTalks), limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

func (s *SQLStore) SetAudioURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET audio_url=$1 WHERE id=$2`, url, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(r scanner) (Question, error) {
	var q Question
	var cat, choices, gapChoices, gapAnswers string
	if err := r.Scan(&q.ID, &cat, &q.QuestionText, &q.AudioURL, &q.ImageURL, &choices, &q.TextWithGaps,
		&gapChoices, &gapAnswers, &q.PassageID, &q.QuestionNumber, &q.Explanation, &q.CreatedBy, &q.CreatedAt); err != nil {
		return Question{}, err
	}
	q.Category = Category(cat)
	if err := json.Unmarshal([]byte(choices), &q.Choices); err != nil {
		return Question{}, fmt.Errorf("question %s choices: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(gapChoices), &q.GapChoices); err != nil {
		return Question{}, fmt.Errorf("question %s gap choices: %w", q.ID, err)
	}
	if err := json.Unmarshal([]byte(gapAnswers), &q.GapAnswers); err != nil {
		return Question{}, fmt.Errorf("question %s gap answers: %w", q.ID, err)
	}
	if len(q.Choices) == 0 {
		q.Choices = nil
	}
	if len(q.GapChoices) == 0 {
		q.GapChoices = nil
	}
	if len(q.GapAnswers) == 0 {
		q.GapAnswers = nil
	}
	return q, nil
}

func scanAll(rows *sql.Rows) ([]Question, error) {
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func orEmpty(c []Choice) []Choice {
	if c == nil {
		return []Choice{}
	}
	return c
}

func orEmptyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return map[string]V{}
	}
	return m
}
