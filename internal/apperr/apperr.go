// Package apperr carries the two failure families the client shows to users:
// a request to the backend failed, or the submitted form did not validate.
// Each error holds a French message that is safe to display as-is.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindRequest Kind = iota
	KindValidation
	KindNotFound
	KindAuth
	KindForbidden
	KindConflict
)

const (
	MsgRequestFailed  = "Une erreur est survenue. Veuillez réessayer."
	MsgRequiredFields = "Veuillez remplir tous les champs obligatoires."
	MsgNotFound       = "Ressource introuvable."
	MsgUnauthorized   = "Veuillez vous connecter pour continuer."
	MsgForbidden      = "Accès refusé."
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Request(err error) *Error { return &Error{Kind: KindRequest, Message: MsgRequestFailed, Err: err} }

func NotFound(msg string) *Error {
	if msg == "" {
		msg = MsgNotFound
	}
	return &Error{Kind: KindNotFound, Message: msg}
}

func Auth(msg string) *Error {
	if msg == "" {
		msg = MsgUnauthorized
	}
	return &Error{Kind: KindAuth, Message: msg}
}

func Forbidden() *Error { return &Error{Kind: KindForbidden, Message: MsgForbidden} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Wrap attaches a cause to a typed error without changing its message.
func Wrap(e *Error, cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

// Status maps any error to an HTTP status. Untyped errors are request failures.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return MsgRequestFailed
}
