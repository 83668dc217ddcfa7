package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/tepiprep/tepiprep/internal/apperr"
	"github.com/tepiprep/tepiprep/internal/auth"
	"github.com/tepiprep/tepiprep/internal/exam"
	"github.com/tepiprep/tepiprep/internal/grading"
	"github.com/tepiprep/tepiprep/internal/lessonflow"
	"github.com/tepiprep/tepiprep/internal/question"
	"github.com/tepiprep/tepiprep/internal/storage"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers {"error": "<message fr>"}. Request failures are logged
// with their cause; validation failures are not.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	e := toAppErr(err)
	if e.Kind == apperr.KindRequest {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, apperr.Status(e), map[string]string{"error": e.Message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.Validation("Requête invalide."), err)
	}
	return nil
}

var domainErrors = []struct {
	target error
	err    *apperr.Error
}{
	{auth.ErrInvalidCredentials, apperr.Auth("Email ou mot de passe incorrect.")},
	{auth.ErrEmailTaken, apperr.Conflict("Un compte existe déjà avec cet email.")},
	{auth.ErrWeakPassword, apperr.Validation("Le mot de passe doit contenir au moins 8 caractères.")},
	{auth.ErrPasswordTooLong, apperr.Validation("Le mot de passe ne doit pas dépasser 72 caractères.")},
	{auth.ErrInvalidEmail, apperr.Validation("Adresse email invalide.")},
	{auth.ErrInvalidToken, apperr.Validation("Lien de réinitialisation invalide ou expiré.")},
	{auth.ErrUserNotFound, apperr.NotFound("Utilisateur introuvable.")},

	{lessonflow.ErrLessonNotFound, apperr.NotFound("Leçon introuvable.")},
	{lessonflow.ErrSessionNotFound, apperr.NotFound("Session introuvable ou expirée.")},
	{lessonflow.ErrWrongStage, apperr.Conflict("Action impossible à cette étape de la leçon.")},
	{lessonflow.ErrFinished, apperr.Conflict("Cette leçon est déjà terminée.")},
	{lessonflow.ErrItemsNotViewed, apperr.Validation("Veuillez consulter tous les éléments avant de commencer les exercices.")},
	{lessonflow.ErrInvalidIndex, apperr.Validation("Élément introuvable.")},
	{lessonflow.ErrUnknownAction, apperr.Validation("Action inconnue.")},

	{question.ErrNotFound, apperr.NotFound("Question introuvable.")},
	{grading.ErrResponseType, apperr.Validation("Réponse invalide.")},

	{exam.ErrAttemptNotFound, apperr.NotFound("Examen introuvable.")},
	{exam.ErrAttemptSubmitted, apperr.Conflict("Cet examen est déjà terminé.")},
	{exam.ErrDeadlinePassed, apperr.Conflict("Le temps imparti est écoulé. L'examen a été soumis automatiquement.")},
	{exam.ErrNoQuestions, apperr.Conflict("Aucune question n'est disponible pour l'examen blanc.")},
	{exam.ErrUnknownQuestion, apperr.Validation("Cette question ne fait pas partie de l'examen.")},
	{exam.ErrInvalidIndex, apperr.Validation("Numéro de question invalide.")},

	{storage.ErrUnknownBucket, apperr.NotFound("Espace de stockage inconnu.")},
	{storage.ErrInvalidKey, apperr.NotFound("")},
	{storage.ErrUnsupportedType, apperr.Validation("Type de fichier non pris en charge.")},
}

func toAppErr(err error) *apperr.Error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e
	}
	for _, d := range domainErrors {
		if errors.Is(err, d.target) {
			return apperr.Wrap(d.err, err)
		}
	}
	return apperr.Request(err)
}
