package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/progress"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/rbac"
)

const maxListLimit = 100

func publicAll(qs []question.Question) []question.Question {
	out := make([]question.Question, len(qs))
	for i, q := range qs {
		out[i] = q.Public()
	}
	return out
}

// ListQuestionsHandler serves a practice set. With random=1 the set is
// drawn at random from the category.
func ListQuestionsHandler(store question.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		cat := question.Category(q.Get("category"))
		if cat != "" && !cat.Valid() {
			writeError(w, r, log, apperr.Validation("Catégorie inconnue."))
			return
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 || limit > maxListLimit {
			limit = 20
		}
		offset, _ := strconv.Atoi(q.Get("offset"))

		var (
			qs  []question.Question
			err error
		)
		if q.Get("random") == "1" && cat != "" {
			qs, err = store.Random(r.Context(), cat, limit)
		} else {
			qs, err = store.List(r.Context(), question.Filter{Category: cat, Limit: limit, Offset: max(0, offset)})
		}
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, publicAll(qs))
	}
}

func GetQuestionHandler(store question.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, q.Public())
	}
}

// GetPassageHandler returns the questions sharing a reading passage, in
// question-number order.
func GetPassageHandler(store question.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qs, err := store.Passage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, publicAll(qs))
	}
}

type answerResp struct {
	question.CheckResult
	Streak progress.Streak `json:"streak"`
}

// AnswerQuestionHandler grades a practice answer and records the attempt.
func AnswerQuestionHandler(store question.Store, checker *question.Checker, prog *progress.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ans question.Answer
		if err := decodeJSON(w, r, &ans); err != nil {
			writeError(w, r, log, err)
			return
		}
		ctx := r.Context()
		q, err := store.Get(ctx, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		res, err := checker.Check(ctx, q, ans)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		userID := rbac.SubjectFromContext(ctx)
		if _, err := prog.RecordAttempt(ctx, progress.Attempt{
			UserID:     userID,
			QuestionID: q.ID,
			Category:   string(q.Category),
			Correct:    res.Correct,
		}); err != nil {
			writeError(w, r, log, err)
			return
		}
		st, err := prog.Streak(ctx, userID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, answerResp{CheckResult: res, Streak: st})
	}
}
