package lessonflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tepiprep/tepiprep/internal/lessons"
)

var (
	ErrWrongStage     = errors.New("lessonflow: action not allowed in this stage")
	ErrFinished       = errors.New("lessonflow: session already finished")
	ErrItemsNotViewed = errors.New("lessonflow: every item must be viewed first")
	ErrInvalidIndex   = errors.New("lessonflow: item index out of range")
	ErrUnknownAction  = errors.New("lessonflow: unknown action")
)

const DefaultHearts = 3

// AnswerRecord is one graded or skipped exercise.
type AnswerRecord struct {
	ExerciseID string      `json:"exercise_id"`
	Value      interface{} `json:"value,omitempty"`
	Correct    bool        `json:"correct"`
	Skipped    bool        `json:"skipped,omitempty"`
	At         time.Time   `json:"at"`
}

// Session is the state of one user playing one lesson. It is mutated only
// through Apply.
type Session struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	LessonID      string         `json:"lesson_id"`
	Stage         Stage          `json:"stage"`
	ItemIndex     int            `json:"item_index"`
	ExerciseIndex int            `json:"exercise_index"`
	Score         int            `json:"score"`
	Hearts        int            `json:"hearts"`
	Viewed        []bool         `json:"viewed"`
	Answers       []AnswerRecord `json:"answers"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	Completion    *Completion    `json:"completion,omitempty"`

	lesson *lessons.Lesson
	eval   Evaluator
	now    func() time.Time
}

// Feedback is returned to the player after each action.
type Feedback struct {
	Stage       Stage             `json:"stage"`
	Correct     *bool             `json:"correct,omitempty"`
	Skipped     bool              `json:"skipped,omitempty"`
	Expected    string            `json:"expected,omitempty"`
	Pairs       map[string]string `json:"pairs,omitempty"`
	Explanation string            `json:"explanation,omitempty"`
	Score       int               `json:"score"`
	Hearts      int               `json:"hearts"`
	Finished    bool              `json:"finished"`
}

// NewSession creates a session in the intro stage.
func NewSession(id, userID string, l *lessons.Lesson, eval Evaluator, hearts int, now func() time.Time) *Session {
	if hearts <= 0 {
		hearts = DefaultHearts
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		ID:        id,
		UserID:    userID,
		LessonID:  l.ID,
		Stage:     StageIntro,
		Hearts:    hearts,
		Viewed:    make([]bool, len(l.Items)),
		Answers:   []AnswerRecord{},
		StartedAt: now(),
		lesson:    l,
		eval:      eval,
		now:       now,
	}
}

func (s *Session) Lesson() *lessons.Lesson { return s.lesson }

// Finished reports whether the session reached results.
func (s *Session) Finished() bool { return s.Stage == StageResults }

// Apply runs one action through the reducer. On error the session is left
// unchanged.
func (s *Session) Apply(ctx context.Context, a Action) (Feedback, error) {
	if s.Finished() {
		return s.feedback(), ErrFinished
	}
	want, ok := allowed[a.Type]
	if !ok {
		return s.feedback(), fmt.Errorf("%w: %q", ErrUnknownAction, a.Type)
	}
	if s.Stage != want {
		return s.feedback(), fmt.Errorf("%w: %s during %s", ErrWrongStage, a.Type, s.Stage)
	}

	switch a.Type {
	case ActionStart:
		s.Stage = StageLearning
		s.ItemIndex = 0
		s.Viewed[0] = true
	case ActionViewItem:
		if a.Index < 0 || a.Index >= len(s.lesson.Items) {
			return s.feedback(), ErrInvalidIndex
		}
		s.ItemIndex = a.Index
		s.Viewed[a.Index] = true
	case ActionNextItem:
		if s.ItemIndex+1 < len(s.lesson.Items) {
			s.ItemIndex++
			s.Viewed[s.ItemIndex] = true
		} else {
			s.Stage = StageExercises
		}
	case ActionBeginExercises:
		if !a.Force && !s.allViewed() {
			return s.feedback(), ErrItemsNotViewed
		}
		s.Stage = StageExercises
	case ActionAnswer:
		return s.answer(ctx, a.Value)
	case ActionSkip:
		ex := s.lesson.Exercises[s.ExerciseIndex]
		s.Answers = append(s.Answers, AnswerRecord{ExerciseID: ex.ID, Skipped: true, At: s.now()})
		fb := s.advance()
		fb.Skipped = true
		reveal(&fb, ex)
		return fb, nil
	}
	return s.feedback(), nil
}

func (s *Session) answer(ctx context.Context, value interface{}) (Feedback, error) {
	ex := s.lesson.Exercises[s.ExerciseIndex]
	ok, err := s.eval.Evaluate(ctx, ex, value)
	if err != nil {
		return s.feedback(), err
	}
	if ok {
		s.Score++
	} else {
		s.Hearts--
	}
	s.Answers = append(s.Answers, AnswerRecord{ExerciseID: ex.ID, Value: value, Correct: ok, At: s.now()})
	fb := s.advance()
	fb.Correct = &ok
	if !ok {
		reveal(&fb, ex)
	} else {
		fb.Explanation = ex.Explanation
	}
	return fb, nil
}

// advance moves to the next exercise, finishing the session when exercises
// run out or no hearts remain.
func (s *Session) advance() Feedback {
	s.ExerciseIndex++
	if s.ExerciseIndex >= len(s.lesson.Exercises) || s.Hearts <= 0 {
		s.finish()
	}
	return s.feedback()
}

func (s *Session) finish() {
	at := s.now()
	s.Stage = StageResults
	s.FinishedAt = &at
	c := computeCompletion(s, s.lesson)
	s.Completion = &c
}

func (s *Session) allViewed() bool {
	for _, v := range s.Viewed {
		if !v {
			return false
		}
	}
	return true
}

func (s *Session) feedback() Feedback {
	return Feedback{Stage: s.Stage, Score: s.Score, Hearts: s.Hearts, Finished: s.Finished()}
}

func reveal(fb *Feedback, ex lessons.Exercise) {
	fb.Explanation = ex.Explanation
	if ex.Type == lessons.ExerciseMatching {
		fb.Pairs = ex.PairMap()
		return
	}
	fb.Expected = ex.CorrectAnswer
}

// snapshot returns a copy that shares no mutable state with s.
func (s *Session) snapshot() *Session {
	cp := *s
	cp.Viewed = append([]bool(nil), s.Viewed...)
	cp.Answers = append([]AnswerRecord(nil), s.Answers...)
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		cp.FinishedAt = &t
	}
	if s.Completion != nil {
		c := *s.Completion
		cp.Completion = &c
	}
	return &cp
}
