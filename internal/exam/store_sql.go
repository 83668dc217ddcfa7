package exam

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tepiprep/tepiprep/internal/question"
)

var (
	ErrAttemptNotFound = errors.New("attempt not found")
	ErrResultNotFound  = errors.New("result not found")
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) CreateAttempt(ctx context.Context, a Attempt) error {
	ids, err := json.Marshal(a.QuestionIDs)
	if err != nil {
		return err
	}
	ans, err := json.Marshal(answersOrEmpty(a.Answers))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO exam_attempts
		(id, user_id, question_ids_json, answers_json, current_index, status, blur_count, started_at, deadline)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.UserID, string(ids), string(ans), a.Current, a.Status, a.BlurCount, a.StartedAt, a.Deadline)
	return err
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, user_id, question_ids_json, answers_json, current_index,
		status, blur_count, started_at, deadline, submitted_at FROM exam_attempts WHERE id=$1`, id)
	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Attempt{}, ErrAttemptNotFound
	}
	return a, err
}

// ListAttempts returns a user's attempts, newest first.
func (s *SQLStore) ListAttempts(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, question_ids_json, answers_json, current_index,
		status, blur_count, started_at, deadline, submitted_at FROM exam_attempts
		WHERE user_id=$1 ORDER BY started_at DESC, id LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveProgress writes the mutable fields of an open attempt.
func (s *SQLStore) SaveProgress(ctx context.Context, a Attempt) error {
	ans, err := json.Marshal(answersOrEmpty(a.Answers))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE exam_attempts
		SET answers_json=$1, current_index=$2, blur_count=$3 WHERE id=$4 AND status=$5`,
		string(ans), a.Current, a.BlurCount, a.ID, StatusInProgress)
	return err
}

// Finish closes an attempt and stores its result in one transaction.
func (s *SQLStore) Finish(ctx context.Context, a Attempt, r Result) error {
	ans, err := json.Marshal(answersOrEmpty(a.Answers))
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE exam_attempts
		SET answers_json=$1, current_index=$2, blur_count=$3, status=$4, submitted_at=$5
		WHERE id=$6 AND status=$7`,
		string(ans), a.Current, a.BlurCount, a.Status, a.SubmittedAt, a.ID, StatusInProgress)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish attempt %s: %w", a.ID, ErrAttemptSubmitted)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO toeic_results
		(id, attempt_id, user_id, listening_raw, listening_total, reading_raw, reading_total,
		 listening_scaled, reading_scaled, total_scaled, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.AttemptID, r.UserID, r.ListeningRaw, r.ListeningTotal, r.ReadingRaw, r.ReadingTotal,
		r.ListeningScaled, r.ReadingScaled, r.TotalScaled, r.CreatedAt); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) GetResult(ctx context.Context, attemptID string) (Result, error) {
	var r Result
	err := s.db.QueryRowContext(ctx, `SELECT id, attempt_id, user_id, listening_raw, listening_total,
		reading_raw, reading_total, listening_scaled, reading_scaled, total_scaled, created_at
		FROM toeic_results WHERE attempt_id=$1`, attemptID).
		Scan(&r.ID, &r.AttemptID, &r.UserID, &r.ListeningRaw, &r.ListeningTotal, &r.ReadingRaw, &r.ReadingTotal,
			&r.ListeningScaled, &r.ReadingScaled, &r.TotalScaled, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, ErrResultNotFound
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(r rowScanner) (Attempt, error) {
	var a Attempt
	var ids, ans string
	var submitted sql.NullInt64
	if err := r.Scan(&a.ID, &a.UserID, &ids, &ans, &a.Current, &a.Status, &a.BlurCount,
		&a.StartedAt, &a.Deadline, &submitted); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(ids), &a.QuestionIDs); err != nil {
		return Attempt{}, fmt.Errorf("attempt %s question ids: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(ans), &a.Answers); err != nil || a.Answers == nil {
		a.Answers = map[string]question.Answer{}
	}
	a.SubmittedAt = submitted.Int64
	return a, nil
}

func answersOrEmpty(m map[string]question.Answer) map[string]question.Answer {
	if m == nil {
		return map[string]question.Answer{}
	}
	return m
}
