package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
	"github.com/tepiprep/tepiprep/internal/lessons"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/rbac"
)

// lessonSummary is a catalogue entry, without items or exercises.
type lessonSummary struct {
	ID             string       `json:"id"`
	Kind           lessons.Kind `json:"kind"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Order          int          `json:"order"`
	XP             int          `json:"xp"`
	DurationMin    int          `json:"duration_min"`
	Items          int          `json:"items"`
	Exercises      int          `json:"exercises"`
	BestPercentage int          `json:"best_percentage"`
	Completed      bool         `json:"completed"`
}

func ListLessonsHandler(prog *progress.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := lessons.Kind(r.URL.Query().Get("kind"))
		if kind != "" && !kind.Valid() {
			writeError(w, r, log, apperr.Validation("Type de leçon inconnu."))
			return
		}
		done, err := prog.Lessons(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		best := make(map[string]int, len(done))
		for _, d := range done {
			best[d.LessonID] = d.BestPercentage
		}
		out := []lessonSummary{}
		for _, l := range lessons.All(kind) {
			out = append(out, lessonSummary{
				ID: l.ID, Kind: l.Kind, Title: l.Title, Description: l.Description,
				Order: l.Order, XP: l.XP, DurationMin: l.DurationMin,
				Items: len(l.Items), Exercises: len(l.Exercises),
				BestPercentage: best[l.ID],
				Completed:      best[l.ID] >= lessonflow.PassPercentage,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetLessonHandler(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := lessons.Get(chi.URLParam(r, "id"))
		if l == nil {
			writeError(w, r, log, lessonflow.ErrLessonNotFound)
			return
		}
		writeJSON(w, http.StatusOK, l.Redacted())
	}
}

// NextLessonHandler suggests the first lesson of a kind the user has not passed.
func NextLessonHandler(prog *progress.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := lessons.Kind(r.URL.Query().Get("kind"))
		if !kind.Valid() {
			writeError(w, r, log, apperr.Validation("Type de leçon inconnu."))
			return
		}
		l, err := prog.NextLesson(r.Context(), rbac.SubjectFromContext(r.Context()), kind)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if l == nil {
			writeJSON(w, http.StatusOK, map[string]any{"lesson": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"lesson": l.Redacted()})
	}
}

type sessionView struct {
	Session  *lessonflow.Session  `json:"session"`
	Lesson   *lessons.Lesson      `json:"lesson,omitempty"`
	Feedback *lessonflow.Feedback `json:"feedback,omitempty"`
}

func redactedLesson(s *lessonflow.Session) *lessons.Lesson {
	if s.Lesson() == nil {
		return nil
	}
	l := s.Lesson().Redacted()
	return &l
}

func CreateSessionHandler(flow *lessonflow.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := flow.Create(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, sessionView{Session: s, Lesson: redactedLesson(s)})
	}
}

func GetSessionHandler(flow *lessonflow.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := flow.Get(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{Session: s, Lesson: redactedLesson(s)})
	}
}

// ApplyActionHandler feeds one player action into the session reducer.
func ApplyActionHandler(flow *lessonflow.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a lessonflow.Action
		if err := decodeJSON(w, r, &a); err != nil {
			writeError(w, r, log, err)
			return
		}
		if a.Type == "" {
			writeError(w, r, log, apperr.Validation(apperr.MsgRequiredFields))
			return
		}
		s, fb, err := flow.Apply(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), a)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionView{Session: s, Feedback: &fb})
	}
}
