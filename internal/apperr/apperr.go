// Package apperr defines the discriminated error kinds the service surfaces
// at its boundary. Every error returned from a usecase is one of these kinds
// so the transport layer can map it to the right response.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// KindUnknown marks errors that did not originate from a usecase rule,
	// typically infrastructure faults.
	KindUnknown Kind = iota
	// KindValidation - malformed input, retryable after fixing the request.
	KindValidation
	// KindNotFound - the referenced entity does not exist.
	KindNotFound
	// KindConflict - duplicate key or illegal state transition; the request
	// itself must change.
	KindConflict
	// KindUnauthenticated - no valid identity; re-authenticate.
	KindUnauthenticated
	// KindForbidden - valid identity, but policy denies the action.
	KindForbidden
	// KindStaleState - the entity changed between read and conditional write;
	// retryable by re-reading.
	KindStaleState
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return New(KindConflict, format, args...)
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return New(KindUnauthenticated, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return New(KindForbidden, format, args...)
}

func StaleState(format string, args ...interface{}) *Error {
	return New(KindStaleState, format, args...)
}

// KindOf reports the kind of err, or KindUnknown for errors that are not
// apperr errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
