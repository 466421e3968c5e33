// Package apperrors defines the structured error taxonomy returned by the
// clinic core. Every service operation fails with an *Error so callers can
// branch on Kind without parsing messages.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	// KindValidation indicates a malformed or out-of-range field.
	KindValidation Kind = "VALIDATION"

	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindReferentialConflict indicates a restrict-on-delete or cross-reference rule was violated.
	KindReferentialConflict Kind = "REFERENTIAL_CONFLICT"

	// KindInvalidTransition indicates a status change outside the state machine.
	KindInvalidTransition Kind = "INVALID_TRANSITION"

	// KindUniquenessConflict indicates a duplicate unique value.
	KindUniquenessConflict Kind = "UNIQUENESS_CONFLICT"

	// KindInternal indicates a storage or programming failure.
	KindInternal Kind = "INTERNAL"
)

// Error is an application error carrying the kind plus the offending entity
// and field.
type Error struct {
	Kind    Kind
	Entity  string
	Field   string
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Entity != "" {
		msg += ": " + e.Entity
		if e.Field != "" {
			msg += "." + e.Field
		}
	}
	msg += ": " + e.Message
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap implements the unwrap interface
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, apperrors.ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Entity == "" && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrReferentialConflict = &Error{Kind: KindReferentialConflict}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrUniquenessConflict  = &Error{Kind: KindUniquenessConflict}
	ErrInternal            = &Error{Kind: KindInternal}
)

// Validation creates a validation error for entity.field.
func Validation(entity, field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error for the entity with the given id.
func NotFound(entity string, id interface{}) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Field: "id", Message: fmt.Sprintf("%s %v not found", entity, id)}
}

// NotFoundRef creates a not found error for a reference held in field.
func NotFoundRef(entity, field string, id interface{}) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Field: field, Message: fmt.Sprintf("referenced %s %v does not exist", field, id)}
}

// Conflict creates a referential conflict error.
func Conflict(entity, format string, args ...interface{}) *Error {
	return &Error{Kind: KindReferentialConflict, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransition creates a state machine violation error.
func InvalidTransition(entity string, from, to fmt.Stringer) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Entity:  entity,
		Field:   "status",
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// Duplicate creates a uniqueness conflict error for entity.field.
func Duplicate(entity, field string, value interface{}) *Error {
	return &Error{Kind: KindUniquenessConflict, Entity: entity, Field: field, Message: fmt.Sprintf("%s %v already exists", field, value)}
}

// Internal wraps an unexpected failure. The message is safe to show users;
// err is kept for logging.
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extracts the *Error from err. Errors outside the taxonomy are wrapped
// as Internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}

func IsValidation(err error) bool          { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool            { return KindOf(err) == KindNotFound }
func IsReferentialConflict(err error) bool { return KindOf(err) == KindReferentialConflict }
func IsInvalidTransition(err error) bool   { return KindOf(err) == KindInvalidTransition }
func IsUniquenessConflict(err error) bool  { return KindOf(err) == KindUniquenessConflict }
