package question

import (
	"context"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/grading"
)

// Answer is a submitted practice response: an option letter for choice
// questions, or gap id -> chosen word for gap questions.
type Answer struct {
	Option string            `json:"option,omitempty"`
	Gaps   map[string]string `json:"gaps,omitempty"`
}

// CheckResult is returned to the learner after answering.
type CheckResult struct {
	Correct       bool              `json:"correct"`
	Points        float64           `json:"points"`
	MaxPoints     float64           `json:"max_points"`
	CorrectOption string            `json:"correct_option,omitempty"`
	GapAnswers    map[string]string `json:"gap_answers,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
}

type Checker struct{ g grading.Grader }

// NewChecker grades choice questions by letter and gap questions gap by gap
// with partial credit.
func NewChecker(g grading.Grader) *Checker {
	if g == nil {
		g = grading.NewDefaultGrader()
	}
	return &Checker{g: g}
}

// GradingQ projects a question into the grading engine's view.
func GradingQ(q Question) grading.Q {
	if q.IsGapQuestion() {
		return grading.Q{Type: grading.TypeFillGaps, Points: float64(len(q.GapAnswers)), Gaps: q.GapAnswers}
	}
	return grading.Q{Type: grading.TypeMCQSingle, Points: 1, AnswerKey: []string{q.CorrectOption()}}
}

func (c *Checker) Check(ctx context.Context, q Question, a Answer) (CheckResult, error) {
	var resp interface{}
	if q.IsGapQuestion() {
		if len(a.Gaps) == 0 {
			return CheckResult{}, apperr.Validation("Veuillez choisir une réponse.")
		}
		resp = a.Gaps
	} else {
		if a.Option == "" {
			return CheckResult{}, apperr.Validation("Veuillez choisir une réponse.")
		}
		resp = a.Option
	}
	res, err := c.g.Grade(ctx, GradingQ(q), resp)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{
		Correct:       res.Correct(),
		Points:        res.AutoPoints,
		MaxPoints:     res.MaxPoints,
		CorrectOption: q.CorrectOption(),
		GapAnswers:    q.GapAnswers,
		Explanation:   q.Explanation,
	}, nil
}
