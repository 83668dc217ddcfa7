package rbac

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

const (
	PermLessonPlay     = "lesson:play"
	PermQuestionView   = "question:view"
	PermQuestionAnswer = "question:answer"
	PermQuestionCreate = "question:create"
	PermExamTake       = "exam:take"
	PermProfileViewOwn = "profile:view-own"
	PermChangePassword = "user:change_password"
	PermUploadCreate   = "upload:create"
	PermStatsView      = "stats:view"
	PermEventsView     = "events:view"
)

var RolePermissions = map[string][]string{
	RoleStudent: {
		PermLessonPlay,
		PermQuestionView,
		PermQuestionAnswer,
		PermExamTake,
		PermProfileViewOwn,
		PermChangePassword,
	},
	RoleAdmin: {
		"*",
	},
}

// ValidRole reports whether role has a permission set.
func ValidRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
