package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tepiprep/tepiprep/internal/db"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
	"github.com/tepiprep/tepiprep/internal/lessons"
)

// Service records practice activity and builds learner profiles. Streak
// days are computed in loc.
type Service struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

type Option func(*Service)

func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }
func WithClock(now func() time.Time) Option  { return func(s *Service) { s.now = now } }

func NewService(conn *sql.DB, opts ...Option) *Service {
	s := &Service{db: conn, loc: time.UTC, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Today() string { return Day(s.now(), s.loc) }

// RecordAttempt stores a practice answer, bumps the category counters and
// touches the streak, all in one transaction.
func (s *Service) RecordAttempt(ctx context.Context, a Attempt) (Attempt, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = s.now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_progress (id, user_id, question_id, category, is_correct, answered_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.UserID, a.QuestionID, a.Category, db.Bool(a.Correct), a.AnsweredAt.Unix()); err != nil {
		return Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO category_stats (user_id, category, attempts, correct, updated_at)
		 VALUES ($1,$2,1,$3,$4)
		 ON CONFLICT (user_id, category) DO UPDATE SET
		   attempts = category_stats.attempts + 1,
		   correct = category_stats.correct + EXCLUDED.correct,
		   updated_at = EXCLUDED.updated_at`,
		a.UserID, a.Category, db.Bool(a.Correct), a.AnsweredAt.Unix()); err != nil {
		return Attempt{}, fmt.Errorf("upsert category stats: %w", err)
	}
	if _, err := touch(ctx, tx, a.UserID, Day(a.AnsweredAt, s.loc)); err != nil {
		return Attempt{}, err
	}
	return a, tx.Commit()
}

// RecordLesson keeps the best percentage per lesson. XP is only granted for
// the part of a new score that beats the previous best.
func (s *Service) RecordLesson(ctx context.Context, c lessonflow.Completion) (LessonResult, error) {
	at := c.CompletedAt
	if at.IsZero() {
		at = s.now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return LessonResult{}, err
	}
	defer tx.Rollback()

	var prev LessonProgress
	first := false
	err = tx.QueryRowContext(ctx,
		`SELECT lesson_id, kind, best_percentage, best_xp, completions, last_completed_at
		 FROM lesson_progress WHERE user_id=$1 AND lesson_id=$2`, c.UserID, c.LessonID).
		Scan(&prev.LessonID, &prev.Kind, &prev.BestPercentage, &prev.BestXP, &prev.Completions, &prev.LastCompletedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		first = true
	case err != nil:
		return LessonResult{}, err
	}

	res := LessonResult{
		LessonProgress: LessonProgress{
			LessonID:        c.LessonID,
			Kind:            string(c.Kind),
			BestPercentage:  max(prev.BestPercentage, c.Percentage),
			BestXP:          max(prev.BestXP, c.XP),
			Completions:     prev.Completions + 1,
			LastCompletedAt: at.Unix(),
		},
		XPGained:  max(0, c.XP-prev.BestXP),
		NewBest:   first || c.Percentage > prev.BestPercentage,
		FirstTime: first,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO lesson_progress (user_id, lesson_id, kind, best_percentage, best_xp, completions, last_completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id, lesson_id) DO UPDATE SET
		   best_percentage = EXCLUDED.best_percentage,
		   best_xp = EXCLUDED.best_xp,
		   completions = EXCLUDED.completions,
		   last_completed_at = EXCLUDED.last_completed_at`,
		c.UserID, c.LessonID, res.Kind, res.BestPercentage, res.BestXP, res.Completions, res.LastCompletedAt); err != nil {
		return LessonResult{}, fmt.Errorf("upsert lesson progress: %w", err)
	}
	if _, err := touch(ctx, tx, c.UserID, Day(at, s.loc)); err != nil {
		return LessonResult{}, err
	}
	return res, tx.Commit()
}

// LessonCompleted lets the service receive lesson completions directly.
func (s *Service) LessonCompleted(ctx context.Context, c lessonflow.Completion) error {
	_, err := s.RecordLesson(ctx, c)
	return err
}

// Touch records activity for userID at t.
func (s *Service) Touch(ctx context.Context, userID string, t time.Time) (Streak, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Streak{}, err
	}
	defer tx.Rollback()
	st, err := touch(ctx, tx, userID, Day(t, s.loc))
	if err != nil {
		return Streak{}, err
	}
	return st, tx.Commit()
}

func touch(ctx context.Context, tx *sql.Tx, userID, day string) (Streak, error) {
	var cur Streak
	err := tx.QueryRowContext(ctx,
		`SELECT current_streak, longest_streak, last_active_day FROM streaks WHERE user_id=$1`, userID).
		Scan(&cur.Current, &cur.Longest, &cur.LastActiveDay)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Streak{}, fmt.Errorf("load streak: %w", err)
	}
	next := cur.Touch(day)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO streaks (user_id, current_streak, longest_streak, last_active_day) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (user_id) DO UPDATE SET
		   current_streak = EXCLUDED.current_streak, longest_streak = EXCLUDED.longest_streak, last_active_day = EXCLUDED.last_active_day`,
		userID, next.Current, next.Longest, next.LastActiveDay); err != nil {
		return Streak{}, fmt.Errorf("save streak: %w", err)
	}
	return next, nil
}

// Sweep zeroes current streaks whose last activity is older than yesterday
// and returns how many were reset.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	yesterday := prevDay(s.Today())
	res, err := s.db.ExecContext(ctx,
		`UPDATE streaks SET current_streak = 0 WHERE current_streak > 0 AND last_active_day < $1`, yesterday)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Service) Streak(ctx context.Context, userID string) (Streak, error) {
	var st Streak
	err := s.db.QueryRowContext(ctx,
		`SELECT current_streak, longest_streak, last_active_day FROM streaks WHERE user_id=$1`, userID).
		Scan(&st.Current, &st.Longest, &st.LastActiveDay)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Streak{}, err
	}
	return st.Effective(s.Today()), nil
}

// History returns the most recent practice attempts of a user, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, question_id, category, is_correct, answered_at
		 FROM user_progress WHERE user_id=$1 ORDER BY answered_at DESC, id LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Attempt
	for rows.Next() {
		var a Attempt
		var correct int
		var at int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.Category, &correct, &at); err != nil {
			return nil, err
		}
		a.Correct = correct != 0
		a.AnsweredAt = time.Unix(at, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Service) Categories(ctx context.Context, userID string) ([]CategoryStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, attempts, correct FROM category_stats WHERE user_id=$1 ORDER BY category`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CategoryStat{}
	for rows.Next() {
		var c CategoryStat
		if err := rows.Scan(&c.Category, &c.Attempts, &c.Correct); err != nil {
			return nil, err
		}
		c.Accuracy = accuracy(c.Correct, c.Attempts)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) Lessons(ctx context.Context, userID string) ([]LessonProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lesson_id, kind, best_percentage, best_xp, completions, last_completed_at
		 FROM lesson_progress WHERE user_id=$1 ORDER BY kind, lesson_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LessonProgress{}
	for rows.Next() {
		var l LessonProgress
		if err := rows.Scan(&l.LessonID, &l.Kind, &l.BestPercentage, &l.BestXP, &l.Completions, &l.LastCompletedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Service) LastExams(ctx context.Context, userID string, n int) ([]ExamScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT attempt_id, listening_scaled, reading_scaled, total_scaled, created_at
		 FROM toeic_results WHERE user_id=$1 ORDER BY created_at DESC, id LIMIT $2`, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ExamScore{}
	for rows.Next() {
		var e ExamScore
		if err := rows.Scan(&e.AttemptID, &e.ListeningScaled, &e.ReadingScaled, &e.TotalScaled, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Profile assembles the learner dashboard.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	p := Profile{UserID: userID}
	var err error
	if p.Streak, err = s.Streak(ctx, userID); err != nil {
		return Profile{}, fmt.Errorf("streak: %w", err)
	}
	if p.Categories, err = s.Categories(ctx, userID); err != nil {
		return Profile{}, fmt.Errorf("categories: %w", err)
	}
	if p.Lessons, err = s.Lessons(ctx, userID); err != nil {
		return Profile{}, fmt.Errorf("lessons: %w", err)
	}
	if p.LastExams, err = s.LastExams(ctx, userID, 5); err != nil {
		return Profile{}, fmt.Errorf("exams: %w", err)
	}
	for _, l := range p.Lessons {
		p.TotalXP += l.BestXP
		if l.BestPercentage >= lessonflow.PassPercentage {
			p.LessonsCompleted++
		}
	}
	p.Level = Level(p.TotalXP)
	p.XPIntoLevel = p.TotalXP % XPPerLevel
	p.XPForNextLevel = XPPerLevel - p.XPIntoLevel
	return p, nil
}

// NextLesson suggests the first lesson of kind not yet passed.
func (s *Service) NextLesson(ctx context.Context, userID string, kind lessons.Kind) (*lessons.Lesson, error) {
	done, err := s.Lessons(ctx, userID)
	if err != nil {
		return nil, err
	}
	passed := map[string]bool{}
	for _, l := range done {
		if l.BestPercentage >= lessonflow.PassPercentage {
			passed[l.LessonID] = true
		}
	}
	for _, l := range lessons.All(kind) {
		if !passed[l.ID] {
			return l, nil
		}
	}
	return nil, nil
}
