package callback

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes callback errors.
type ErrorCode string

const (
	// ErrCodeRegistryMiss indicates an id or instance key is not registered.
	ErrCodeRegistryMiss ErrorCode = "REGISTRY_MISS"

	// ErrCodeNotCallable indicates a value that cannot be registered.
	ErrCodeNotCallable ErrorCode = "NOT_CALLABLE"

	// ErrCodeArguments indicates the arguments do not fit the callable.
	ErrCodeArguments ErrorCode = "BAD_ARGUMENTS"

	// ErrCodeNoMember indicates an unknown method or property on an instance.
	ErrCodeNoMember ErrorCode = "NO_MEMBER"

	// ErrCodePanic indicates the host callable panicked.
	ErrCodePanic ErrorCode = "CALLBACK_PANIC"
)

// Error is returned by registry operations.
type Error struct {
	Code    ErrorCode
	ID      string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRegistryMiss returns true if err reports an unknown id or instance key.
// Uses errors.As to handle wrapped errors.
func IsRegistryMiss(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeRegistryMiss
	}
	return false
}

// IsArgumentError returns true if err reports arguments that do not fit.
func IsArgumentError(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeArguments
	}
	return false
}

func missError(kind, id string) *Error {
	return &Error{Code: ErrCodeRegistryMiss, ID: id, Message: fmt.Sprintf("no %s registered", kind)}
}

func argError(format string, args ...any) *Error {
	return &Error{Code: ErrCodeArguments, Message: fmt.Sprintf(format, args...)}
}
