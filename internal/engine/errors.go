package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while the engine runs a call.
//
// Runtime errors include:
//   - Undefined function or variable
//   - Invalid (deleted or unknown) handle
//   - Too many outputs requested
//   - Missing property
//   - Failures raised by host callbacks
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the function, variable or property involved.
	Name string

	// Err is the underlying cause, for errors raised by host callbacks.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeUndefinedFunction RuntimeErrorCode = "UNDEFINED_FUNCTION"
	ErrCodeUndefinedVariable RuntimeErrorCode = "UNDEFINED_VARIABLE"

	// ErrCodeInvalidHandle indicates the handle refers to no live object.
	ErrCodeInvalidHandle RuntimeErrorCode = "INVALID_HANDLE"

	// ErrCodeTooManyOutputs indicates nargout exceeds what the callee returns.
	ErrCodeTooManyOutputs RuntimeErrorCode = "TOO_MANY_OUTPUTS"

	ErrCodeNoProperty  RuntimeErrorCode = "NO_PROPERTY"
	ErrCodeBadArgument RuntimeErrorCode = "BAD_ARGUMENT"
	ErrCodeSyntax      RuntimeErrorCode = "SYNTAX"

	// ErrCodeNoCallbacks indicates a host callback was requested but no
	// host is attached.
	ErrCodeNoCallbacks RuntimeErrorCode = "NO_CALLBACKS"

	// ErrCodeHostError wraps an error returned by a host callback.
	ErrCodeHostError RuntimeErrorCode = "HOST_ERROR"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the host error behind an ErrCodeHostError.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// StaleHandle reports whether the error is an invalid handle error. The
// session uses it to classify failures.
func (e *RuntimeError) StaleHandle() bool {
	return e.Code == ErrCodeInvalidHandle
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUndefined returns true for undefined function and variable errors.
func IsUndefined(err error) bool {
	return hasCode(err, ErrCodeUndefinedFunction) || hasCode(err, ErrCodeUndefinedVariable)
}

// IsInvalidHandle returns true if the error is an invalid handle error.
func IsInvalidHandle(err error) bool {
	return hasCode(err, ErrCodeInvalidHandle)
}

// IsTooManyOutputs returns true if the error is a too many outputs error.
func IsTooManyOutputs(err error) bool {
	return hasCode(err, ErrCodeTooManyOutputs)
}

// IsSyntax returns true if the error is an evaluator syntax error.
func IsSyntax(err error) bool {
	return hasCode(err, ErrCodeSyntax)
}

func undefinedFunction(name string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeUndefinedFunction, Message: "undefined function", Name: name}
}

func undefinedVariable(name string) *RuntimeError {
	return &RuntimeError{Code: ErrCodeUndefinedVariable, Message: "undefined variable", Name: name}
}

func invalidHandle(id uint64) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeInvalidHandle,
		Message: fmt.Sprintf("invalid or deleted object (handle %d)", id),
	}
}

func tooManyOutputs(name string, requested, declared int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTooManyOutputs,
		Message: fmt.Sprintf("too many output arguments (%d requested, %d declared)", requested, declared),
		Name:    name,
	}
}

func noProperty(class, name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeNoProperty,
		Message: fmt.Sprintf("no property %q for class %s", name, class),
		Name:    name,
	}
}

func badArgument(name, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: ErrCodeBadArgument, Message: fmt.Sprintf(format, args...), Name: name}
}

func syntaxError(stmt, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: ErrCodeSyntax, Message: fmt.Sprintf(format, args...), Name: stmt}
}

func hostError(id string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeHostError, Message: "host callback failed", Name: id, Err: err}
}
