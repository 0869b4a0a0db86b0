package bridge

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes bridge errors.
type ErrorCode string

const (
	// ErrCodeArgumentEncoding indicates a host value has no engine form.
	ErrCodeArgumentEncoding ErrorCode = "ARGUMENT_ENCODING"

	// ErrCodeArityMismatch indicates an explicit output count above the
	// callee's declared maximum.
	ErrCodeArityMismatch ErrorCode = "ARITY_MISMATCH"

	// ErrCodeAttributeNotFound indicates a name that is neither an
	// attribute nor a method of an object.
	ErrCodeAttributeNotFound ErrorCode = "ATTRIBUTE_NOT_FOUND"

	// ErrCodeUnexpectedValue indicates the engine returned a value of the
	// wrong shape for a bridge operation.
	ErrCodeUnexpectedValue ErrorCode = "UNEXPECTED_VALUE"
)

// Error represents a failure detected on the host side of the bridge.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the function, method or attribute involved, if any.
	Name string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (name=%s)", e.Code, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsArgumentEncoding returns true if err reports an unencodable host value.
// Uses errors.As to handle wrapped errors.
func IsArgumentEncoding(err error) bool {
	return hasCode(err, ErrCodeArgumentEncoding)
}

// IsArityMismatch returns true if err reports an output count above the
// declared maximum.
func IsArityMismatch(err error) bool {
	return hasCode(err, ErrCodeArityMismatch)
}

// IsAttributeNotFound returns true if err reports an unknown object member.
func IsAttributeNotFound(err error) bool {
	return hasCode(err, ErrCodeAttributeNotFound)
}

func hasCode(err error, code ErrorCode) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Code == code
	}
	return false
}

func encodingError(v any) *Error {
	return &Error{
		Code:    ErrCodeArgumentEncoding,
		Message: fmt.Sprintf("cannot encode host value of type %T", v),
	}
}

func attributeNotFound(class, name string) *Error {
	return &Error{
		Code:    ErrCodeAttributeNotFound,
		Message: fmt.Sprintf("%s object has no attribute or method", class),
		Name:    name,
	}
}

func unexpectedValue(what string, got any) *Error {
	return &Error{
		Code:    ErrCodeUnexpectedValue,
		Message: fmt.Sprintf("%s: unexpected engine value %T", what, got),
	}
}
