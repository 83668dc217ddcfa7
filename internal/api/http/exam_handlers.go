package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/exam"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/rbac"
)

// writeView answers with the attempt. When the deadline passed during the
// call the attempt has been submitted; the client gets 409 with the final
// attempt so it can show the score.
func writeView(w http.ResponseWriter, r *http.Request, log *zap.Logger, status int, v exam.View, err error) {
	if errors.Is(err, exam.ErrDeadlinePassed) {
		e := toAppErr(err)
		writeJSON(w, http.StatusConflict, map[string]any{"error": e.Message, "attempt": v})
		return
	}
	if err != nil {
		writeError(w, r, log, err)
		return
	}
	writeJSON(w, status, v)
}

func StartExamHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Start(r.Context(), rbac.SubjectFromContext(r.Context()))
		writeView(w, r, log, http.StatusCreated, v, err)
	}
}

func ListExamAttemptsHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		as, err := svc.History(r.Context(), rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if as == nil {
			as = []exam.Attempt{}
		}
		writeJSON(w, http.StatusOK, as)
	}
}

func GetExamAttemptHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Get(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
		writeView(w, r, log, http.StatusOK, v, err)
	}
}

type examAnswerReq struct {
	QuestionID string `json:"question_id"`
	question.Answer
}

func SaveExamAnswerHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req examAnswerReq
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		v, err := svc.Answer(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.QuestionID, req.Answer)
		writeView(w, r, log, http.StatusOK, v, err)
	}
}

func NavigateExamHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Index int `json:"index"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		v, err := svc.Navigate(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.Index)
		writeView(w, r, log, http.StatusOK, v, err)
	}
}

// AdvanceExamHandler moves to the next question. The exam page calls it
// with reason "blur" when it loses visibility.
func AdvanceExamHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Reason string `json:"reason"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, log, err)
			return
		}
		if req.Reason != exam.ReasonBlur {
			req.Reason = exam.ReasonNext
		}
		v, err := svc.Advance(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"), req.Reason)
		writeView(w, r, log, http.StatusOK, v, err)
	}
}

func SubmitExamHandler(svc *exam.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Submit(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "id"))
		if err == nil {
			log.Info("exam submitted",
				zap.String("attempt_id", v.ID),
				zap.String("status", v.Status))
		}
		writeView(w, r, log, http.StatusOK, v, err)
	}
}
