package session

import (
	"context"

	"github.com/roach88/enginebridge/internal/wire"
)

// Backend is the primitive surface of a live engine.
//
// Implementations do not need to be safe for concurrent use: Session
// serializes every call. A Backend may call back into the host (through the
// Callbacks it was given) while a call is in flight; those callbacks receive
// the in-flight context and may issue nested calls through the same Session.
type Backend interface {
	// Invoke calls a function, or a method when receiver is non-nil,
	// requesting exactly nargout outputs.
	Invoke(ctx context.Context, name string, receiver *wire.Handle, args []wire.Value, nargout int) ([]wire.Value, error)

	// DeclaredOutputCount reports the maximum number of outputs a function
	// or method declares. determined is false for variable output lists and
	// for names the engine cannot introspect.
	DeclaredOutputCount(ctx context.Context, name string, receiver *wire.Handle) (n int, determined bool, err error)

	ClassOf(ctx context.Context, v wire.Value) (string, error)
	IsInstanceOf(ctx context.Context, v wire.Value, class string) (bool, error)
	IsObject(ctx context.Context, v wire.Value) (bool, error)
	IsFunctionHandle(ctx context.Context, v wire.Value) (bool, error)

	PropertiesOf(ctx context.Context, h wire.Handle) ([]string, error)
	MethodsOf(ctx context.Context, h wire.Handle) ([]string, error)
	FieldNamesOf(ctx context.Context, h wire.Handle) ([]string, error)

	ReadGlobal(ctx context.Context, name string) (wire.Value, error)
	WriteGlobal(ctx context.Context, name string, v wire.Value) error

	// EvalInGlobal evaluates statements in the global namespace and returns
	// the value of the last expression statement (Empty when there is none).
	EvalInGlobal(ctx context.Context, stmt string) (wire.Value, error)

	FieldAccess(ctx context.Context, h wire.Handle, name string) (wire.Value, error)

	// FieldAssign sets a property and returns the handle that now holds the
	// result. Value-class objects return a new handle; reference-class
	// objects return h.
	FieldAssign(ctx context.Context, h wire.Handle, name string, v wire.Value) (wire.Handle, error)

	Close() error
}

// Callbacks is the host surface the engine calls into.
type Callbacks interface {
	// InvokeByID calls the host callable registered under id. When
	// hasKeywords is true the last argument is a Struct of keyword args.
	InvokeByID(ctx context.Context, id string, args []wire.Value, hasKeywords bool) (wire.Value, error)

	// CallObjectMethod calls a method on a stored host class instance.
	CallObjectMethod(ctx context.Context, key, method string, args []wire.Value) (wire.Value, error)

	// ObjectProperty reads a field of a stored host class instance.
	ObjectProperty(ctx context.Context, key, name string) (wire.Value, error)

	// RemoveObject drops a stored host class instance.
	RemoveObject(ctx context.Context, key string) error
}

// CallbackHost is implemented by backends that can call into the host.
type CallbackHost interface {
	AttachCallbacks(cb Callbacks)
}

// staleHandle is implemented by backend errors that report a dead handle.
type staleHandle interface {
	StaleHandle() bool
}
