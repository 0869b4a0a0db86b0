package session

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes session errors.
type ErrorCode string

const (
	// ErrCodeForeignCall indicates the engine raised an error during a
	// primitive call. The call is never retried.
	ErrCodeForeignCall ErrorCode = "FOREIGN_CALL"

	// ErrCodeStaleHandle indicates the engine reported that a handle no
	// longer refers to a live object.
	ErrCodeStaleHandle ErrorCode = "STALE_HANDLE"

	// ErrCodeClosed indicates the session has been shut down.
	ErrCodeClosed ErrorCode = "SESSION_CLOSED"
)

// Error is returned by every Session method that fails.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the primitive that failed (see the Op constants).
	Op string

	// Name is the function, method, global or field involved, if any.
	Name string

	// Err is the engine's own error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "session closed"
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Op, e.Name, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
}

// Unwrap returns the engine error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsForeignCall returns true if err is any engine failure, including a stale
// handle. Uses errors.As to handle wrapped errors.
func IsForeignCall(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeForeignCall || se.Code == ErrCodeStaleHandle
	}
	return false
}

// IsStaleHandle returns true if err reports a dead engine handle.
func IsStaleHandle(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeStaleHandle
	}
	return false
}

// IsClosed returns true if err was caused by using a closed session.
func IsClosed(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeClosed
	}
	return false
}

// classify wraps a backend error in a session Error.
func classify(op, name string, err error) *Error {
	code := ErrCodeForeignCall
	var sh staleHandle
	if errors.As(err, &sh) && sh.StaleHandle() {
		code = ErrCodeStaleHandle
	}
	return &Error{Code: code, Op: op, Name: name, Err: err}
}
