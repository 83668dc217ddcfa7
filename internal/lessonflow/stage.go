package lessonflow

// Stage is the position of a session in the linear lesson flow.
type Stage string

const (
	StageIntro     Stage = "intro"
	StageLearning  Stage = "learning"
	StageExercises Stage = "exercises"
	StageResults   Stage = "results"
)

// ActionType names a reducer input.
type ActionType string

const (
	ActionStart          ActionType = "start"
	ActionViewItem       ActionType = "view_item"
	ActionNextItem       ActionType = "next_item"
	ActionBeginExercises ActionType = "begin_exercises"
	ActionAnswer         ActionType = "answer"
	ActionSkip           ActionType = "skip"
)

// Action is one user input applied to a session.
type Action struct {
	Type  ActionType  `json:"type"`
	Index int         `json:"index,omitempty"` // view_item
	Force bool        `json:"force,omitempty"` // begin_exercises
	Value interface{} `json:"value,omitempty"` // answer: string, or map for matching
}

// allowed lists the stage each action is valid in.
var allowed = map[ActionType]Stage{
	ActionStart:          StageIntro,
	ActionViewItem:       StageLearning,
	ActionNextItem:       StageLearning,
	ActionBeginExercises: StageLearning,
	ActionAnswer:         StageExercises,
	ActionSkip:           StageExercises,
}
