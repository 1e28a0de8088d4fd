// Package apperr defines the error kinds the match engine surfaces to callers.
// Every operation that can fail returns one of these through a plain error
// interface; callers distinguish them with errors.As, never string matching.
package apperr

import "fmt"

// Kind identifies the category of a match-engine error.
type Kind string

const (
	Validation    Kind = "VALIDATION_ERROR"
	NotFound      Kind = "NOT_FOUND"
	InvalidState  Kind = "INVALID_STATE"
	InvalidActor  Kind = "INVALID_ACTOR"
	InvalidPos    Kind = "INVALID_POSITION"
	Unauthorized  Kind = "UNAUTHORIZED"
)

// Error is the concrete error type returned by the engine. Kind lets callers
// (HTTP handlers, tests) branch without parsing the message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is lets errors.Is(err, apperr.ErrNotFound) work by matching any *Error
// target of the same Kind, regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// sentinels usable directly with errors.Is(err, apperr.ErrNotFound) etc.
var (
	ErrValidation   = &Error{Kind: Validation, Message: "validation error"}
	ErrNotFound     = &Error{Kind: NotFound, Message: "not found"}
	ErrInvalidState = &Error{Kind: InvalidState, Message: "invalid state"}
	ErrInvalidActor = &Error{Kind: InvalidActor, Message: "invalid actor"}
	ErrInvalidPos   = &Error{Kind: InvalidPos, Message: "invalid position"}
	ErrUnauthorized = &Error{Kind: Unauthorized, Message: "unauthorized"}
)

// KindOf extracts the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return ""
}
