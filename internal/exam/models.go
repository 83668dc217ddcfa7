package exam

import (
	"github.com/tepiprep/tepiprep/internal/question"
)

const (
	StatusInProgress = "in_progress"
	StatusSubmitted  = "submitted"
	StatusExpired    = "expired" // submitted automatically at the deadline
)

// Advance reasons.
const (
	ReasonNext = "next"
	ReasonBlur = "blur" // the page lost visibility
)

type Attempt struct {
	ID          string                     `json:"id"`
	UserID      string                     `json:"user_id"`
	QuestionIDs []string                   `json:"question_ids"`
	Current     int                        `json:"current"`
	Answers     map[string]question.Answer `json:"answers"` // questionID -> answer
	Status      string                     `json:"status"`
	BlurCount   int                        `json:"blur_count"`
	StartedAt   int64                      `json:"started_at"`
	Deadline    int64                      `json:"deadline"`
	SubmittedAt int64                      `json:"submitted_at,omitempty"`
}

func (a Attempt) Open() bool { return a.Status == StatusInProgress }

func (a Attempt) has(questionID string) bool {
	for _, id := range a.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Result is the stored TOEIC score of a finished attempt.
type Result struct {
	ID              string `json:"id"`
	AttemptID       string `json:"attempt_id"`
	UserID          string `json:"user_id"`
	ListeningRaw    int    `json:"listening_raw"`
	ListeningTotal  int    `json:"listening_total"`
	ReadingRaw      int    `json:"reading_raw"`
	ReadingTotal    int    `json:"reading_total"`
	ListeningScaled int    `json:"listening_scaled"`
	ReadingScaled   int    `json:"reading_scaled"`
	TotalScaled     int    `json:"total_scaled"`
	CreatedAt       int64  `json:"created_at"`
}

// View is an attempt as shown to its owner. Questions are stripped of their
// keys while the attempt is open.
type View struct {
	Attempt
	Questions    []question.Question `json:"questions"`
	RemainingSec int64               `json:"remaining_sec"`
	Result       *Result             `json:"result,omitempty"`
}
