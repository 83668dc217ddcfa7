package lessonflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tepiprep/tepiprep/internal/lessons"
)

var fixedNow = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }

func newTestSession(t *testing.T, lessonID string) *Session {
	t.Helper()
	l := lessons.Get(lessonID)
	if l == nil {
		t.Fatalf("lesson %s missing", lessonID)
	}
	return NewSession("s1", "u1", l, NewEvaluator(), 0, fixedNow)
}

func mustApply(t *testing.T, s *Session, a Action) Feedback {
	t.Helper()
	fb, err := s.Apply(context.Background(), a)
	if err != nil {
		t.Fatalf("%s: %v", a.Type, err)
	}
	return fb
}

func TestPerfectRun(t *testing.T) {
	s := newTestSession(t, "grammar-conditionals")

	mustApply(t, s, Action{Type: ActionStart})
	if s.Stage != StageLearning || !s.Viewed[0] {
		t.Fatalf("after start: stage=%s viewed=%v", s.Stage, s.Viewed)
	}
	mustApply(t, s, Action{Type: ActionNextItem})
	mustApply(t, s, Action{Type: ActionNextItem})
	mustApply(t, s, Action{Type: ActionNextItem})
	if s.Stage != StageExercises {
		t.Fatalf("expected exercises after last item, got %s", s.Stage)
	}

	fb := mustApply(t, s, Action{Type: ActionAnswer, Value: "had"})
	if fb.Correct == nil || !*fb.Correct || fb.Score != 1 {
		t.Fatalf("unexpected feedback %+v", fb)
	}
	mustApply(t, s, Action{Type: ActionAnswer, Value: " Will "})
	fb = mustApply(t, s, Action{Type: ActionAnswer, Value: map[string]interface{}{
		"If it rains,":       "we will stay inside.",
		"If I were rich,":    "I would travel more.",
		"If she had called,": "I would have answered.",
	}})
	if !fb.Finished || s.Stage != StageResults {
		t.Fatalf("expected results, got %+v", fb)
	}
	c := s.Completion
	if c == nil || c.Percentage != 100 || c.XP != 70 || !c.Passed || !c.Perfect {
		t.Fatalf("unexpected completion %+v", c)
	}
	if s.Hearts != DefaultHearts {
		t.Fatalf("no heart should be lost, got %d", s.Hearts)
	}
}

func TestWrongStageAndFinished(t *testing.T) {
	s := newTestSession(t, "grammar-conditionals")

	if _, err := s.Apply(context.Background(), Action{Type: ActionAnswer, Value: "had"}); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("answer in intro: %v", err)
	}
	if _, err := s.Apply(context.Background(), Action{Type: "jump"}); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("unknown action: %v", err)
	}
	mustApply(t, s, Action{Type: ActionStart})
	if _, err := s.Apply(context.Background(), Action{Type: ActionStart}); !errors.Is(err, ErrWrongStage) {
		t.Fatalf("second start: %v", err)
	}
	if _, err := s.Apply(context.Background(), Action{Type: ActionViewItem, Index: 9}); !errors.Is(err, ErrInvalidIndex) {
		t.Fatalf("bad index: %v", err)
	}
	if _, err := s.Apply(context.Background(), Action{Type: ActionBeginExercises}); !errors.Is(err, ErrItemsNotViewed) {
		t.Fatalf("begin without viewing: %v", err)
	}
	mustApply(t, s, Action{Type: ActionViewItem, Index: 2})
	mustApply(t, s, Action{Type: ActionViewItem, Index: 1})
	mustApply(t, s, Action{Type: ActionBeginExercises})

	for i := 0; i < 3; i++ {
		mustApply(t, s, Action{Type: ActionSkip})
	}
	if _, err := s.Apply(context.Background(), Action{Type: ActionSkip}); !errors.Is(err, ErrFinished) {
		t.Fatalf("action after results: %v", err)
	}
}

func TestHeartsRunOut(t *testing.T) {
	s := newTestSession(t, "vocab-office")
	mustApply(t, s, Action{Type: ActionStart})
	mustApply(t, s, Action{Type: ActionBeginExercises, Force: true})

	for i := 0; i < 3; i++ {
		fb := mustApply(t, s, Action{Type: ActionAnswer, Value: "wrong"})
		if fb.Correct == nil || *fb.Correct {
			t.Fatalf("answer %d should be wrong", i)
		}
		if i == 0 && fb.Expected != "date limite" {
			t.Fatalf("wrong answer should reveal the expected one, got %q", fb.Expected)
		}
	}
	if s.Stage != StageResults || s.Hearts != 0 {
		t.Fatalf("expected results with no hearts, stage=%s hearts=%d", s.Stage, s.Hearts)
	}
	if s.ExerciseIndex != 3 {
		t.Fatalf("session should stop before the last exercise, index=%d", s.ExerciseIndex)
	}
	c := s.Completion
	if c.Percentage != 0 || c.XP != 0 || c.Passed {
		t.Fatalf("unexpected completion %+v", c)
	}
}

func TestSkipCostsNoHeartAndRounds(t *testing.T) {
	s := newTestSession(t, "grammar-conditionals")
	mustApply(t, s, Action{Type: ActionStart})
	mustApply(t, s, Action{Type: ActionBeginExercises, Force: true})

	mustApply(t, s, Action{Type: ActionAnswer, Value: "had"})
	mustApply(t, s, Action{Type: ActionAnswer, Value: "will"})
	fb := mustApply(t, s, Action{Type: ActionSkip})
	if !fb.Skipped || len(fb.Pairs) != 3 {
		t.Fatalf("skip should reveal pairs: %+v", fb)
	}
	if s.Hearts != DefaultHearts {
		t.Fatalf("skip cost a heart")
	}
	c := s.Completion
	// 2/3 rounds to 67, 60 * 67 / 100 = 40
	if c.Percentage != 67 || c.XP != 40 || !c.Passed || c.Perfect {
		t.Fatalf("unexpected completion %+v", c)
	}
	if !s.Answers[2].Skipped {
		t.Fatal("skip not recorded")
	}
}

func TestMatchingNeedsEveryPair(t *testing.T) {
	ok, err := NewEvaluator().Evaluate(context.Background(), lessons.Exercise{
		ID:   "m",
		Type: lessons.ExerciseMatching,
		Pairs: []lessons.Pair{
			{Left: "go", Right: "went"},
			{Left: "take", Right: "took"},
		},
	}, map[string]interface{}{"go": "went", "take": "taken"})
	if err != nil || ok {
		t.Fatalf("partial matching must be wrong, ok=%v err=%v", ok, err)
	}
}
