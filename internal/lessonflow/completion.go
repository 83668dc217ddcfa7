package lessonflow

import (
	"context"
	"math"
	"time"

	"github.com/tepiprep/tepiprep/internal/lessons"
)

const (
	PassPercentage = 60
	PerfectBonusXP = 10
)

// Completion is what a finished session reports to progress tracking.
type Completion struct {
	SessionID   string       `json:"session_id"`
	UserID      string       `json:"user_id"`
	LessonID    string       `json:"lesson_id"`
	Kind        lessons.Kind `json:"kind"`
	Score       int          `json:"score"`
	Total       int          `json:"total"`
	Percentage  int          `json:"percentage"`
	XP          int          `json:"xp"`
	Passed      bool         `json:"passed"`
	Perfect     bool         `json:"perfect"`
	CompletedAt time.Time    `json:"completed_at"`
}

func computeCompletion(s *Session, l *lessons.Lesson) Completion {
	total := len(l.Exercises)
	pct := 0
	if total > 0 {
		pct = int(math.Round(100 * float64(s.Score) / float64(total)))
	}
	xp := l.XP * pct / 100
	perfect := pct == 100
	if perfect {
		xp += PerfectBonusXP
	}
	var at time.Time
	if s.FinishedAt != nil {
		at = *s.FinishedAt
	}
	return Completion{
		SessionID:   s.ID,
		UserID:      s.UserID,
		LessonID:    l.ID,
		Kind:        l.Kind,
		Score:       s.Score,
		Total:       total,
		Percentage:  pct,
		XP:          xp,
		Passed:      pct >= PassPercentage,
		Perfect:     perfect,
		CompletedAt: at,
	}
}

// Reporter receives completions once a session reaches results.
type Reporter interface {
	LessonCompleted(ctx context.Context, c Completion) error
}

// EventRecorder is the append side of the event log.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, payload any) error
}

type eventReporter struct {
	rec EventRecorder
	typ string
}

// EventReporter records completions in an event log under typ.
func EventReporter(rec EventRecorder, typ string) Reporter {
	return eventReporter{rec: rec, typ: typ}
}

func (r eventReporter) LessonCompleted(ctx context.Context, c Completion) error {
	return r.rec.Record(ctx, r.typ, c.UserID, c)
}
