package lessonflow

import (
	"context"
	"fmt"

	"github.com/tepiprep/tepiprep/internal/grading"
	"github.com/tepiprep/tepiprep/internal/lessons"
)

// Evaluator decides whether an answer to a lesson exercise is correct.
type Evaluator interface {
	Evaluate(ctx context.Context, ex lessons.Exercise, value interface{}) (bool, error)
}

type gradingEvaluator struct{ g grading.Grader }

// NewEvaluator grades exercises strictly: no fuzzy spelling window and
// matching only counts when every pair is right.
func NewEvaluator() Evaluator {
	return gradingEvaluator{g: grading.NewDefaultGrader(
		grading.WithMaxEditDistance(0),
		grading.WithPartialPairs(false),
	)}
}

func (e gradingEvaluator) Evaluate(ctx context.Context, ex lessons.Exercise, value interface{}) (bool, error) {
	q := grading.Q{Points: 1}
	switch ex.Type {
	case lessons.ExerciseMultipleChoice:
		q.Type = grading.TypeMCQSingle
		q.AnswerKey = []string{ex.CorrectAnswer}
	case lessons.ExerciseFillBlank, lessons.ExerciseTranslation:
		q.Type = grading.TypeShortWord
		q.AnswerKey = ex.Answers()
	case lessons.ExerciseMatching:
		q.Type = grading.TypeMatching
		q.Pairs = ex.PairMap()
	default:
		return false, fmt.Errorf("exercise %s: unknown type %q", ex.ID, ex.Type)
	}
	res, err := e.g.Grade(ctx, q, value)
	if err != nil {
		return false, err
	}
	return res.Correct(), nil
}
