package question

type Category string

// TOEIC parts 1 to 7, plus the two practice-only categories.
const (
	CatPhotographs          Category = "photographs"
	CatQuestionResponse     Category = "question_response"
	CatConversations        Category = "conversations"
	CatTalks                Category = "talks"
	CatIncompleteSentences  Category = "incomplete_sentences"
	CatTextCompletion       Category = "text_completion"
	CatReadingComprehension Category = "reading_comprehension"
	CatVocabulary           Category = "vocabulary"
	CatGrammar              Category = "grammar"
)

const (
	SectionListening = "listening"
	SectionReading   = "reading"
)

var categories = []Category{
	CatPhotographs, CatQuestionResponse, CatConversations, CatTalks,
	CatIncompleteSentences, CatTextCompletion, CatReadingComprehension,
	CatVocabulary, CatGrammar,
}

// Categories returns every known category in TOEIC part order.
func Categories() []Category { return append([]Category(nil), categories...) }

func (c Category) Valid() bool {
	for _, k := range categories {
		if k == c {
			return true
		}
	}
	return false
}

// Section is "listening" for parts 1-4, "reading" for parts 5-7 and "" for
// practice-only categories.
func (c Category) Section() string {
	switch c {
	case CatPhotographs, CatQuestionResponse, CatConversations, CatTalks:
		return SectionListening
	case CatIncompleteSentences, CatTextCompletion, CatReadingComprehension:
		return SectionReading
	}
	return ""
}

type Choice struct {
	Option    string `json:"option"` // A-D
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	ID             string              `json:"id"`
	Category       Category            `json:"category"`
	QuestionText   string              `json:"question_text,omitempty"`
	AudioURL       string              `json:"audio_url,omitempty"`
	ImageURL       string              `json:"image_url,omitempty"`
	Choices        []Choice            `json:"choices,omitempty"`
	TextWithGaps   string              `json:"text_with_gaps,omitempty"`
	GapChoices     map[string][]string `json:"gap_choices,omitempty"`
	GapAnswers     map[string]string   `json:"gap_answers,omitempty"`
	PassageID      string              `json:"passage_id,omitempty"`
	QuestionNumber int                 `json:"question_number,omitempty"`
	Explanation    string              `json:"explanation,omitempty"`
	CreatedBy      string              `json:"created_by,omitempty"`
	CreatedAt      int64               `json:"created_at"`
}

// IsGapQuestion reports whether the question is answered gap by gap.
func (q Question) IsGapQuestion() bool { return q.TextWithGaps != "" }

// CorrectOption returns the letter of the correct choice, or "".
func (q Question) CorrectOption() string {
	for _, c := range q.Choices {
		if c.IsCorrect {
			return c.Option
		}
	}
	return ""
}

// Public strips answer keys and the explanation.
func (q Question) Public() Question {
	out := q
	out.Explanation = ""
	out.GapAnswers = nil
	out.CreatedBy = ""
	if len(q.Choices) > 0 {
		out.Choices = make([]Choice, len(q.Choices))
		for i, c := range q.Choices {
			out.Choices[i] = Choice{Option: c.Option, Text: c.Text}
		}
	}
	return out
}

type Filter struct {
	Category  Category
	PassageID string
	Limit     int
	Offset    int
}
