package progress

import "time"

// XPPerLevel is the XP needed to climb one level.
const XPPerLevel = 500

// Attempt is one answered practice question.
type Attempt struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	QuestionID string    `json:"question_id"`
	Category   string    `json:"category"`
	Correct    bool      `json:"is_correct"`
	AnsweredAt time.Time `json:"answered_at"`
}

type CategoryStat struct {
	Category string  `json:"category"`
	Attempts int     `json:"attempts"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"` // percent, one decimal
}

type LessonProgress struct {
	LessonID        string `json:"lesson_id"`
	Kind            string `json:"kind"`
	BestPercentage  int    `json:"best_percentage"`
	BestXP          int    `json:"best_xp"`
	Completions     int    `json:"completions"`
	LastCompletedAt int64  `json:"last_completed_at"`
}

// LessonResult is what RecordLesson reports back.
type LessonResult struct {
	LessonProgress
	XPGained  int  `json:"xp_gained"`
	NewBest   bool `json:"new_best"`
	FirstTime bool `json:"first_time"`
}

type Streak struct {
	Current       int    `json:"current"`
	Longest       int    `json:"longest"`
	LastActiveDay string `json:"last_active_day,omitempty"` // YYYY-MM-DD
}

// ExamScore is a stored mock exam result.
type ExamScore struct {
	AttemptID       string `json:"attempt_id"`
	ListeningScaled int    `json:"listening"`
	ReadingScaled   int    `json:"reading"`
	TotalScaled     int    `json:"total"`
	CreatedAt       int64  `json:"created_at"`
}

type Profile struct {
	UserID           string           `json:"user_id"`
	TotalXP          int              `json:"total_xp"`
	Level            int              `json:"level"`
	XPIntoLevel      int              `json:"xp_into_level"`
	XPForNextLevel   int              `json:"xp_for_next_level"`
	Streak           Streak           `json:"streak"`
	Categories       []CategoryStat   `json:"categories"`
	LessonsCompleted int              `json:"lessons_completed"`
	Lessons          []LessonProgress `json:"lessons"`
	LastExams        []ExamScore      `json:"last_exams"`
}

// Level returns the 1-based level for an XP total.
func Level(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

func accuracy(correct, attempts int) float64 {
	if attempts == 0 {
		return 0
	}
	return float64(int(1000*float64(correct)/float64(attempts)+0.5)) / 10
}
