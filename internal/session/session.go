package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/enginebridge/internal/wire"
)

// Primitive operation names, used in errors and observed calls.
const (
	OpInvoke              = "invoke"
	OpDeclaredOutputCount = "nargout"
	OpClassOf             = "class"
	OpIsInstanceOf        = "isa"
	OpIsObject            = "isobject"
	OpIsFunctionHandle    = "is_function_handle"
	OpPropertiesOf        = "properties"
	OpMethodsOf           = "methods"
	OpFieldNamesOf        = "fieldnames"
	OpReadGlobal          = "read_global"
	OpWriteGlobal         = "write_global"
	OpEvalInGlobal        = "eval"
	OpFieldAccess         = "field_access"
	OpFieldAssign         = "field_assign"
)

// Call describes one completed primitive call.
type Call struct {
	// Seq is strictly increasing per session, starting at 1.
	Seq int64

	Op      string
	Name    string
	Nargout int

	// Depth is 0 for calls made by the host and grows by one for each
	// level of engine-to-host callback nesting.
	Depth int

	Err error
}

// Observer receives every primitive call after it completes.
// Observers run with the session lock held and must not call back into
// the session.
type Observer func(Call)

// Session serializes access to one engine Backend.
//
// Thread-safety model:
//   - All methods are safe for concurrent use
//   - Calls are serialized on a single mutex; there is no parallelism
//     inside the engine
//   - A call whose context was derived from an in-flight call (a host
//     callback running inside the engine) reuses the held lock
//   - No timeouts: a call blocks until the engine returns
type Session struct {
	backend   Backend
	logger    *slog.Logger
	observers []Observer

	mu     sync.Mutex
	seq    atomic.Int64
	closed atomic.Bool
	once   sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithObserver registers an observer for completed primitive calls.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		s.observers = append(s.observers, o)
	}
}

// New wraps a backend in a Session.
func New(b Backend, opts ...Option) *Session {
	s := &Session{
		backend: b,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type lockKey struct{}

// lockOwner is stored in the context of an in-flight call.
type lockOwner struct {
	session *Session
	depth   int
}

// enter acquires the session lock unless ctx already holds it.
// The returned context marks the lock as held by this call chain.
func (s *Session) enter(ctx context.Context) (context.Context, int, func()) {
	if owner, ok := ctx.Value(lockKey{}).(*lockOwner); ok && owner.session == s {
		depth := owner.depth + 1
		return context.WithValue(ctx, lockKey{}, &lockOwner{session: s, depth: depth}), depth, func() {}
	}
	s.mu.Lock()
	return context.WithValue(ctx, lockKey{}, &lockOwner{session: s}), 0, s.mu.Unlock
}

// Held reports whether ctx belongs to a call chain that holds the lock.
func (s *Session) Held(ctx context.Context) bool {
	owner, ok := ctx.Value(lockKey{}).(*lockOwner)
	return ok && owner.session == s
}

// do runs one primitive call under the session lock.
func do[T any](s *Session, ctx context.Context, op, name string, nargout int, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if s.closed.Load() {
		return zero, &Error{Code: ErrCodeClosed, Op: op, Name: name}
	}

	ctx, depth, release := s.enter(ctx)
	defer release()

	s.logger.Debug("engine call", "op", op, "name", name, "nargout", nargout, "depth", depth)
	result, err := fn(ctx)

	call := Call{Seq: s.seq.Add(1), Op: op, Name: name, Nargout: nargout, Depth: depth}
	if err != nil {
		serr := classify(op, name, err)
		call.Err = serr
		s.logger.Warn("engine call failed", "op", op, "name", name, "code", serr.Code, "error", err)
		s.notify(call)
		return zero, serr
	}
	s.notify(call)
	return result, nil
}

func (s *Session) notify(c Call) {
	for _, o := range s.observers {
		o(c)
	}
}

// Invoke calls a function or, when receiver is non-nil, a method.
func (s *Session) Invoke(ctx context.Context, name string, receiver *wire.Handle, args []wire.Value, nargout int) ([]wire.Value, error) {
	return do(s, ctx, OpInvoke, name, nargout, func(ctx context.Context) ([]wire.Value, error) {
		return s.backend.Invoke(ctx, name, receiver, args, nargout)
	})
}

type outputCount struct {
	n          int
	determined bool
}

// DeclaredOutputCount returns a function's or method's maximum output count.
func (s *Session) DeclaredOutputCount(ctx context.Context, name string, receiver *wire.Handle) (int, bool, error) {
	oc, err := do(s, ctx, OpDeclaredOutputCount, name, 0, func(ctx context.Context) (outputCount, error) {
		n, determined, err := s.backend.DeclaredOutputCount(ctx, name, receiver)
		return outputCount{n: n, determined: determined}, err
	})
	return oc.n, oc.determined, err
}

// ClassOf returns the engine class name of a value.
func (s *Session) ClassOf(ctx context.Context, v wire.Value) (string, error) {
	return do(s, ctx, OpClassOf, "", 0, func(ctx context.Context) (string, error) {
		return s.backend.ClassOf(ctx, v)
	})
}

// IsInstanceOf reports whether v is an instance of class or a subclass.
func (s *Session) IsInstanceOf(ctx context.Context, v wire.Value, class string) (bool, error) {
	return do(s, ctx, OpIsInstanceOf, class, 0, func(ctx context.Context) (bool, error) {
		return s.backend.IsInstanceOf(ctx, v, class)
	})
}

// IsObject reports whether v refers to an engine object.
func (s *Session) IsObject(ctx context.Context, v wire.Value) (bool, error) {
	return do(s, ctx, OpIsObject, "", 0, func(ctx context.Context) (bool, error) {
		return s.backend.IsObject(ctx, v)
	})
}

// IsFunctionHandle reports whether v is an engine function handle.
func (s *Session) IsFunctionHandle(ctx context.Context, v wire.Value) (bool, error) {
	return do(s, ctx, OpIsFunctionHandle, "", 0, func(ctx context.Context) (bool, error) {
		return s.backend.IsFunctionHandle(ctx, v)
	})
}

// PropertiesOf lists an object's public properties.
func (s *Session) PropertiesOf(ctx context.Context, h wire.Handle) ([]string, error) {
	return do(s, ctx, OpPropertiesOf, "", 0, func(ctx context.Context) ([]string, error) {
		return s.backend.PropertiesOf(ctx, h)
	})
}

// MethodsOf lists an object's methods.
func (s *Session) MethodsOf(ctx context.Context, h wire.Handle) ([]string, error) {
	return do(s, ctx, OpMethodsOf, "", 0, func(ctx context.Context) ([]string, error) {
		return s.backend.MethodsOf(ctx, h)
	})
}

// FieldNamesOf lists an object's field names.
func (s *Session) FieldNamesOf(ctx context.Context, h wire.Handle) ([]string, error) {
	return do(s, ctx, OpFieldNamesOf, "", 0, func(ctx context.Context) ([]string, error) {
		return s.backend.FieldNamesOf(ctx, h)
	})
}

// ReadGlobal reads a variable from the global namespace.
func (s *Session) ReadGlobal(ctx context.Context, name string) (wire.Value, error) {
	return do(s, ctx, OpReadGlobal, name, 0, func(ctx context.Context) (wire.Value, error) {
		return s.backend.ReadGlobal(ctx, name)
	})
}

// WriteGlobal assigns a variable in the global namespace.
func (s *Session) WriteGlobal(ctx context.Context, name string, v wire.Value) error {
	_, err := do(s, ctx, OpWriteGlobal, name, 0, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.WriteGlobal(ctx, name, v)
	})
	return err
}

// EvalInGlobal evaluates statements in the global namespace.
func (s *Session) EvalInGlobal(ctx context.Context, stmt string) (wire.Value, error) {
	return do(s, ctx, OpEvalInGlobal, stmt, 0, func(ctx context.Context) (wire.Value, error) {
		return s.backend.EvalInGlobal(ctx, stmt)
	})
}

// FieldAccess reads one property of an object.
func (s *Session) FieldAccess(ctx context.Context, h wire.Handle, name string) (wire.Value, error) {
	return do(s, ctx, OpFieldAccess, name, 0, func(ctx context.Context) (wire.Value, error) {
		return s.backend.FieldAccess(ctx, h, name)
	})
}

// FieldAssign sets one property of an object and returns the handle that
// holds the result.
func (s *Session) FieldAssign(ctx context.Context, h wire.Handle, name string, v wire.Value) (wire.Handle, error) {
	return do(s, ctx, OpFieldAssign, name, 0, func(ctx context.Context) (wire.Handle, error) {
		return s.backend.FieldAssign(ctx, h, name, v)
	})
}

// AttachCallbacks hands the host callback surface to the backend.
// Returns false when the backend cannot call into the host.
func (s *Session) AttachCallbacks(cb Callbacks) bool {
	host, ok := s.backend.(CallbackHost)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	host.AttachCallbacks(cb)
	return true
}

// Close shuts the backend down. Only the first call has any effect.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed.Store(true)
		err = s.backend.Close()
		s.logger.Info("engine session closed")
	})
	return err
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	return s.closed.Load()
}
