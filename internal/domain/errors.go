package domain

import (
	"errors"
	"fmt"
)

// Kind classifies failures returned by the use cases.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindBadRequest   Kind = "bad_request"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

var (
	// ErrNotFound matches any error of kind not_found.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrConflict matches any error of kind conflict.
	ErrConflict = &Error{Kind: KindConflict}
	// ErrBadRequest matches any error of kind bad_request.
	ErrBadRequest = &Error{Kind: KindBadRequest}
	// ErrUnauthorized matches any error of kind unauthorized.
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	// ErrForbidden matches any error of kind forbidden.
	ErrForbidden = &Error{Kind: KindForbidden}
	// ErrInternal matches any error of kind internal.
	ErrInternal = &Error{Kind: KindInternal}
)

// Error is the failure half of every use-case result.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind so callers can write errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf extracts the kind of err, defaulting to internal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps a storage failure. Domain errors pass through untouched.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindInternal, Message: "storage failure", Err: err}
}

var (
	// ErrSessionNotFound is returned when a game session does not exist.
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "game session not found"}
	// ErrSessionFinished is returned when answering on a finished session.
	ErrSessionFinished = &Error{Kind: KindConflict, Message: "game session already finished"}
	// ErrModuleNotFound indicates the module is missing, inactive or deleted.
	ErrModuleNotFound = &Error{Kind: KindNotFound, Message: "module not found"}
	// ErrQuestionNotFound indicates the question is missing, inactive, deleted or foreign to the session's module.
	ErrQuestionNotFound = &Error{Kind: KindNotFound, Message: "question not found"}
	// ErrQuestionAnswered is returned when a session already holds an answer to the question.
	ErrQuestionAnswered = &Error{Kind: KindConflict, Message: "question already answered in this session"}
	// ErrOptionOutOfRange indicates a selected option outside [0, OptionCount).
	ErrOptionOutOfRange = &Error{Kind: KindBadRequest, Message: "selected option out of range"}
	// ErrUserNotFound indicates no active user matches.
	ErrUserNotFound = &Error{Kind: KindNotFound, Message: "user not found"}
	// ErrPhoneTaken indicates another active user owns the phone.
	ErrPhoneTaken = &Error{Kind: KindConflict, Message: "phone already registered"}
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = &Error{Kind: KindUnauthorized, Message: "invalid phone or password"}
)
