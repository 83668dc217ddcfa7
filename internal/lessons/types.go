package lessons

import "slices"

// Kind groups lessons into the four learning tracks.
type Kind string

const (
	KindVocabulary    Kind = "vocabulary"
	KindGrammar       Kind = "grammar"
	KindConjugation   Kind = "conjugation"
	KindComprehension Kind = "comprehension"
)

func (k Kind) Valid() bool {
	switch k {
	case KindVocabulary, KindGrammar, KindConjugation, KindComprehension:
		return true
	}
	return false
}

// Exercise types.
const (
	ExerciseMultipleChoice = "multiple_choice"
	ExerciseFillBlank      = "fill_blank"
	ExerciseTranslation    = "translation"
	ExerciseMatching       = "matching"
)

type Lesson struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Order       int        `json:"order"`
	XP          int        `json:"xp"`
	DurationMin int        `json:"duration_min"`
	Items       []Item     `json:"items"`
	Exercises   []Exercise `json:"exercises"`
}

// Item is one teaching unit: a word, a grammar rule, a verb form or a
// reading strategy depending on the lesson kind.
type Item struct {
	ID          string `json:"id"`
	Term        string `json:"term"`
	Translation string `json:"translation,omitempty"`
	Example     string `json:"example,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

type Exercise struct {
	ID            string   `json:"id"`
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
	Accepted      []string `json:"accepted,omitempty"` // alternative answers for translation
	Pairs         []Pair   `json:"pairs,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Answers lists every accepted string answer, CorrectAnswer first.
func (e Exercise) Answers() []string {
	out := make([]string, 0, 1+len(e.Accepted))
	if e.CorrectAnswer != "" {
		out = append(out, e.CorrectAnswer)
	}
	return append(out, e.Accepted...)
}

func (e Exercise) PairMap() map[string]string {
	m := make(map[string]string, len(e.Pairs))
	for _, p := range e.Pairs {
		m[p.Left] = p.Right
	}
	return m
}

// Redacted returns a copy safe to send before the exercise is answered.
// Matching pairs keep their left side; right sides are sorted, so their
// order says nothing about which left they belong to.
func (l Lesson) Redacted() Lesson {
	out := l
	out.Exercises = make([]Exercise, len(l.Exercises))
	for i, e := range l.Exercises {
		e.CorrectAnswer = ""
		e.Accepted = nil
		e.Explanation = ""
		if len(e.Pairs) > 0 {
			rights := make([]string, len(e.Pairs))
			for j, p := range e.Pairs {
				rights[j] = p.Right
			}
			slices.Sort(rights)
			pairs := make([]Pair, len(e.Pairs))
			for j, p := range e.Pairs {
				pairs[j] = Pair{Left: p.Left, Right: rights[j]}
			}
			e.Pairs = pairs
		}
		out.Exercises[i] = e
	}
	return out
}
