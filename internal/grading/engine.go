package grading

import (
	"context"
	"errors"
	"fmt"
)

// Question types understood by the default grader.
const (
	TypeMCQSingle = "mcq_single"
	TypeShortWord = "short_word"
	TypeFillGaps  = "fill_gaps"
	TypeMatching  = "matching"
)

var ErrResponseType = errors.New("grading: unexpected response type")

// Q is the view of a question needed for grading. Lessons and the question
// bank both project into it.
type Q struct {
	Type      string
	Points    float64
	AnswerKey []string          // accepted answers (mcq_single, short_word)
	Gaps      map[string]string // gap id -> expected answer (fill_gaps)
	Pairs     map[string]string // left -> right (matching)
}

// Result is the outcome of grading a single response.
type Result struct {
	AutoPoints float64
	MaxPoints  float64
	Feedback   []string
}

// Correct reports full credit.
func (r Result) Correct() bool {
	return r.MaxPoints > 0 && r.AutoPoints >= r.MaxPoints
}

type Strategy interface {
	Grade(ctx context.Context, q Q, response interface{}) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, response interface{}) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response interface{}) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points}, fmt.Errorf("grading: no strategy for %q", q.Type)
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	MaxEditDistance int  // short_word fuzzy window, 0 disables
	PartialGaps     bool // per-gap credit for fill_gaps
	PartialPairs    bool // per-pair credit for matching
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }
func WithPartialGaps(b bool) Option    { return func(c *config) { c.PartialGaps = b } }
func WithPartialPairs(b bool) Option   { return func(c *config) { c.PartialPairs = b } }

// NewDefaultGrader installs the built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{
		MaxEditDistance: 1,
		PartialGaps:     true,
		PartialPairs:    true,
	}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMCQSingle: mcqSingleStrategy{},
			TypeShortWord: shortWordStrategy{maxEdit: cfg.MaxEditDistance},
			TypeFillGaps:  fillGapsStrategy{partial: cfg.PartialGaps},
			TypeMatching:  matchingStrategy{partial: cfg.PartialPairs},
		},
	}
}

// --- Strategies ---

type mcqSingleStrategy struct{}

func (mcqSingleStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, ErrResponseType
	}
	resp = Normalize(resp)
	for _, k := range q.AnswerKey {
		if resp != "" && resp == Normalize(k) {
			res.AutoPoints = q.Points
			return res, nil
		}
	}
	return res, nil
}

type shortWordStrategy struct{ maxEdit int }

func (s shortWordStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, ErrResponseType
	}
	normResp := Normalize(resp)
	if normResp == "" {
		return res, nil
	}

	near := false
	for _, k := range q.AnswerKey {
		nk := Normalize(k)
		if nk == normResp {
			res.AutoPoints = q.Points
			return res, nil
		}
		if s.maxEdit > 0 && levenshtein(nk, normResp) <= s.maxEdit {
			near = true
		}
	}
	if near {
		res.AutoPoints = q.Points * 0.5
		res.Feedback = append(res.Feedback, "close match (fuzzy)")
	}
	return res, nil
}

type fillGapsStrategy struct{ partial bool }

func (s fillGapsStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := toStringMap(response)
	if !ok {
		return res, ErrResponseType
	}
	if len(q.Gaps) == 0 {
		return res, nil
	}
	hits := 0
	for gap, want := range q.Gaps {
		got, ok := resp[gap]
		if ok && Normalize(got) == Normalize(want) {
			hits++
		}
	}
	res.Feedback = append(res.Feedback, fmt.Sprintf("gaps: %d/%d", hits, len(q.Gaps)))
	switch {
	case hits == len(q.Gaps):
		res.AutoPoints = q.Points
	case s.partial:
		res.AutoPoints = q.Points * float64(hits) / float64(len(q.Gaps))
	}
	return res, nil
}

type matchingStrategy struct{ partial bool }

func (s matchingStrategy) Grade(_ context.Context, q Q, response interface{}) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := toStringMap(response)
	if !ok {
		return res, ErrResponseType
	}
	if len(q.Pairs) == 0 {
		return res, nil
	}
	hits, extras := 0, 0
	for left, right := range resp {
		want, ok := q.Pairs[left]
		if !ok {
			extras++
			continue
		}
		if Normalize(want) == Normalize(right) {
			hits++
		}
	}
	if hits == len(q.Pairs) && extras == 0 {
		res.AutoPoints = q.Points
		return res, nil
	}
	res.Feedback = append(res.Feedback, fmt.Sprintf("pairs: %d/%d", hits, len(q.Pairs)))
	if s.partial {
		res.AutoPoints = q.Points * float64(hits) / float64(len(q.Pairs)+extras)
	}
	return res, nil
}

// helpers

func toStringMap(v interface{}) (map[string]string, bool) {
	switch t := v.(type) {
	case map[string]string:
		return t, true
	case map[string]interface{}:
		out := make(map[string]string, len(t))
		for k, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}
