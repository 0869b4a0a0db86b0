package engine

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/enginebridge/internal/catalog"
	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/wire"
)

// DefaultMaxCallbackDepth is the default nesting limit for host callbacks.
const DefaultMaxCallbackDepth = 64

// NameSource generates global variable names for thin wrapper bindings and
// indirect results. Implemented by uuidNames (production) and
// testutil.SequenceGenerator (tests).
type NameSource interface {
	Generate() string
}

type uuidNames struct {
	prefix string
}

func (n uuidNames) Generate() string {
	return n.prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Engine is an in-process numerical engine serving the classes and
// functions of a catalog.
//
// Thread-safety model:
//   - Object and global state is guarded by a mutex held only for the
//     duration of a single read or update, never across a host callback.
//   - Callers that need call-level serialization wrap the engine in a
//     session.Session.
type Engine struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
	names   NameSource
	clock   *Clock
	depth   *DepthQuota

	maxDepth int

	mu        sync.Mutex
	objects   map[uint64]*object
	globals   map[string]wire.Value
	callbacks session.Callbacks
	closed    bool
}

var (
	_ session.Backend      = (*Engine)(nil)
	_ session.CallbackHost = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog sets the class and function declarations.
// Default: catalog.Default().
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMaxCallbackDepth sets how deeply host callbacks may nest.
//
// Default: 64 (DefaultMaxCallbackDepth)
func WithMaxCallbackDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithNameSource sets the generator for binding names.
func WithNameSource(n NameSource) Option {
	return func(e *Engine) {
		e.names = n
	}
}

// WithClock sets the handle id clock, e.g. to continue after restored ids.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// New creates an Engine with an empty global namespace.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger:   slog.Default(),
		names:    uuidNames{prefix: "tw"},
		clock:    NewClock(),
		maxDepth: DefaultMaxCallbackDepth,
		objects:  make(map[uint64]*object),
		globals:  make(map[string]wire.Value),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	e.depth = NewDepthQuota(e.maxDepth)
	return e
}

// MaxCallbackDepth reports the host callback nesting limit.
func (e *Engine) MaxCallbackDepth() int {
	return e.depth.Max()
}

// Catalog returns the declarations the engine serves.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// AttachCallbacks sets the host surface used by host function values and
// the host object builtins.
func (e *Engine) AttachCallbacks(cb session.Callbacks) {
	e.mu.Lock()
	e.callbacks = cb
	e.mu.Unlock()
}

func (e *Engine) host() (session.Callbacks, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.callbacks == nil {
		return nil, &RuntimeError{Code: ErrCodeNoCallbacks, Message: "no host attached"}
	}
	return e.callbacks, nil
}

// Invoke calls a function, or a method of the object behind receiver.
func (e *Engine) Invoke(ctx context.Context, name string, receiver *wire.Handle, args []wire.Value, nargout int) ([]wire.Value, error) {
	if nargout < 0 {
		return nil, badArgument(name, "negative nargout %d", nargout)
	}
	if receiver != nil {
		obj, h, err := e.resolve(*receiver)
		if err != nil {
			return nil, err
		}
		m, ok := e.method(obj, name)
		if !ok {
			return nil, undefinedFunction(obj.className + "." + name)
		}
		all := append([]wire.Value{h}, args...)
		return e.callMethod(ctx, obj, h, m, all, nargout)
	}
	return e.call(ctx, name, args, nargout)
}

// call resolves a global name: a method of the leftmost object argument
// whose class defines it, then a catalog function, then a builtin, then a
// class constructor.
func (e *Engine) call(ctx context.Context, name string, args []wire.Value, nargout int) ([]wire.Value, error) {
	for _, a := range args {
		h, ok := a.(wire.Handle)
		if !ok {
			continue
		}
		obj, target, err := e.resolve(h)
		if err != nil {
			continue
		}
		if m, ok := e.method(obj, name); ok {
			dispatched := slices.Clone(args)
			for i, other := range dispatched {
				if other == h {
					dispatched[i] = target
				}
			}
			return e.callMethod(ctx, obj, target, m, dispatched, nargout)
		}
	}

	if fn, ok := e.catalog.Function(name); ok {
		b, ok := builtins[fn.Builtin]
		if !ok {
			return nil, undefinedFunction(fn.Builtin)
		}
		return e.run(ctx, name, fn.Signature, b.fn, args, nargout)
	}
	if b, ok := builtins[name]; ok {
		return e.run(ctx, name, b.sig, b.fn, args, nargout)
	}
	if cls, ok := e.catalog.Class(name); ok {
		if err := checkOutputs(name, catalog.Signature{Outputs: 1}, nargout); err != nil {
			return nil, err
		}
		h, err := e.construct(cls, args)
		if err != nil {
			return nil, err
		}
		return []wire.Value{h}, nil
	}
	return nil, undefinedFunction(name)
}

// callBuiltin runs a builtin by name, skipping object dispatch.
func (e *Engine) callBuiltin(ctx context.Context, name string, args []wire.Value, nargout int) ([]wire.Value, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, undefinedFunction(name)
	}
	return e.run(ctx, name, b.sig, b.fn, args, nargout)
}

func (e *Engine) run(ctx context.Context, name string, sig catalog.Signature, fn builtinFunc, args []wire.Value, nargout int) ([]wire.Value, error) {
	if err := checkOutputs(name, sig, nargout); err != nil {
		return nil, err
	}
	out, err := fn(ctx, e, args, nargout)
	if err != nil {
		return nil, err
	}
	return trimOutputs(name, sig, out, nargout)
}

// checkOutputs rejects nargout above the declared count. One output is
// always accepted, so zero-output callees can be called as expressions.
func checkOutputs(name string, sig catalog.Signature, nargout int) error {
	if sig.Varargout {
		return nil
	}
	if nargout > max(sig.Outputs, 1) {
		return tooManyOutputs(name, nargout, sig.Outputs)
	}
	return nil
}

func trimOutputs(name string, sig catalog.Signature, out []wire.Value, nargout int) ([]wire.Value, error) {
	if nargout == 0 {
		if len(out) > 0 {
			return out[:1], nil
		}
		return nil, nil
	}
	if len(out) < nargout {
		if sig.Outputs == 0 && !sig.Varargout {
			return out, nil
		}
		return nil, tooManyOutputs(name, nargout, len(out))
	}
	return out[:nargout], nil
}

func (e *Engine) method(obj *object, name string) (*catalog.Method, bool) {
	if obj.class == nil {
		return nil, false
	}
	return obj.class.Method(name)
}

// callMethod runs a declared method body. args holds every argument with
// the receiver h among them.
func (e *Engine) callMethod(ctx context.Context, obj *object, h wire.Handle, m *catalog.Method, args []wire.Value, nargout int) ([]wire.Value, error) {
	qualified := obj.className + "." + m.Name
	if err := checkOutputs(qualified, m.Signature, nargout); err != nil {
		return nil, err
	}

	var rest []wire.Value
	receiverSeen := false
	for _, a := range args {
		if !receiverSeen && a == wire.Value(h) {
			receiverSeen = true
			continue
		}
		rest = append(rest, a)
	}

	var (
		out []wire.Value
		err error
	)
	switch m.Body.Op {
	case catalog.OpGet:
		var v wire.Value
		v, err = e.getProp(h, m.Body.Field)
		out = []wire.Value{v}

	case catalog.OpTuple:
		for _, f := range m.Body.Fields {
			v, gerr := e.getProp(h, f)
			if gerr != nil {
				return nil, gerr
			}
			out = append(out, v)
		}

	case catalog.OpSet:
		if len(rest) != 1 {
			return nil, badArgument(qualified, "expected 1 argument, got %d", len(rest))
		}
		var nh wire.Handle
		nh, err = e.setProp(h, m.Body.Field, rest[0])
		if obj.kind == catalog.KindValue {
			out = []wire.Value{nh}
		}

	case catalog.OpAdd:
		out, err = e.addTo(ctx, obj, h, m.Body.Field, rest)

	case catalog.OpAddProp:
		if len(rest) < 1 {
			return nil, badArgument(qualified, "expected a property name")
		}
		name, ok := rest[0].(wire.Char)
		if !ok {
			return nil, badArgument(qualified, "property name must be char")
		}
		var init wire.Value = wire.Empty{}
		if len(rest) > 1 {
			init = rest[1]
		}
		var nh wire.Handle
		nh, err = e.addProp(h, string(name), init)
		if obj.kind == catalog.KindValue {
			out = []wire.Value{nh}
		}

	case catalog.OpDelegate, catalog.OpDelegateAssign:
		field, gerr := e.getProp(h, m.Body.Field)
		if gerr != nil {
			return nil, gerr
		}
		delegated := make([]wire.Value, len(args))
		for i, a := range args {
			if a == wire.Value(h) {
				delegated[i] = field
			} else {
				delegated[i] = a
			}
		}
		name := m.Body.Builtin
		if name == "" {
			name = m.Name
		}
		if m.Body.Op == catalog.OpDelegate {
			out, err = e.callBuiltin(ctx, name, delegated, max(nargout, 1))
			break
		}
		res, cerr := e.callBuiltin(ctx, name, delegated, 1)
		if cerr != nil {
			return nil, cerr
		}
		if len(res) != 1 {
			return nil, badArgument(qualified, "%s returned no value", name)
		}
		var nh wire.Handle
		nh, err = e.setProp(h, m.Body.Field, res[0])
		out = []wire.Value{nh}

	case catalog.OpBuiltin:
		out, err = e.callBuiltin(ctx, m.Body.Builtin, args, max(nargout, 1))

	default:
		return nil, badArgument(qualified, "unknown method body %q", m.Body.Op)
	}
	if err != nil {
		return nil, err
	}
	return trimOutputs(qualified, m.Signature, out, nargout)
}

// addTo implements OpAdd: field += arg (default 1).
func (e *Engine) addTo(ctx context.Context, obj *object, h wire.Handle, field string, rest []wire.Value) ([]wire.Value, error) {
	cur, err := e.getProp(h, field)
	if err != nil {
		return nil, err
	}
	var delta wire.Value = wire.Double(1)
	if len(rest) > 0 {
		delta = rest[0]
	}
	sum, err := e.callBuiltin(ctx, "plus", []wire.Value{cur, delta}, 1)
	if err != nil {
		return nil, err
	}
	nh, err := e.setProp(h, field, sum[0])
	if err != nil {
		return nil, err
	}
	if obj.kind == catalog.KindValue {
		return []wire.Value{nh}, nil
	}
	return sum, nil
}

// DeclaredOutputCount reports the declared output count of a method, a
// catalog function, a builtin or a class constructor.
func (e *Engine) DeclaredOutputCount(_ context.Context, name string, receiver *wire.Handle) (int, bool, error) {
	if receiver != nil {
		obj, _, err := e.resolve(*receiver)
		if err != nil {
			return 0, false, err
		}
		m, ok := e.method(obj, name)
		if !ok {
			return 0, false, undefinedFunction(obj.className + "." + name)
		}
		return m.Outputs, !m.Varargout, nil
	}
	if fn, ok := e.catalog.Function(name); ok {
		return fn.Outputs, !fn.Varargout, nil
	}
	if b, ok := builtins[name]; ok {
		return b.sig.Outputs, !b.sig.Varargout, nil
	}
	if _, ok := e.catalog.Class(name); ok {
		return 1, true, nil
	}
	return 0, false, undefinedFunction(name)
}

// ClassOf returns the class name of an object or value.
func (e *Engine) ClassOf(_ context.Context, v wire.Value) (string, error) {
	return e.classOf(v)
}

func (e *Engine) classOf(v wire.Value) (string, error) {
	if h, ok := v.(wire.Handle); ok {
		e.mu.Lock()
		defer e.mu.Unlock()
		o, ok := e.objects[h.ID]
		if !ok {
			return "", invalidHandle(h.ID)
		}
		return o.className, nil
	}
	return string(wire.ClassOf(v)), nil
}

// IsInstanceOf reports whether v belongs to class. Besides exact class
// names it understands "handle", "numeric", "float" and "integer".
func (e *Engine) IsInstanceOf(_ context.Context, v wire.Value, class string) (bool, error) {
	return e.isa(v, class)
}

func (e *Engine) isa(v wire.Value, class string) (bool, error) {
	name, err := e.classOf(v)
	if err != nil {
		return false, err
	}
	if name == class {
		return true, nil
	}
	if h, ok := v.(wire.Handle); ok {
		if class != "handle" {
			return false, nil
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.objects[h.ID].kind == catalog.KindHandle, nil
	}
	c := wire.Class(name)
	switch class {
	case "numeric":
		return c.IsFloating() || c.IsInteger(), nil
	case "float":
		return c.IsFloating(), nil
	case "integer":
		return c.IsInteger(), nil
	}
	return false, nil
}

// IsObject reports whether v is a handle to a class instance.
func (e *Engine) IsObject(_ context.Context, v wire.Value) (bool, error) {
	return e.isObject(v), nil
}

// IsFunctionHandle reports whether v is an engine or host function value.
func (e *Engine) IsFunctionHandle(_ context.Context, v wire.Value) (bool, error) {
	switch v.(type) {
	case wire.FuncRef, wire.HostFunc:
		return true, nil
	}
	return false, nil
}

// PropertiesOf returns the object's property names in declaration order,
// followed by properties added at run time.
func (e *Engine) PropertiesOf(_ context.Context, h wire.Handle) ([]string, error) {
	return e.propNames(h)
}

// MethodsOf returns the object's method names in declaration order.
func (e *Engine) MethodsOf(_ context.Context, h wire.Handle) ([]string, error) {
	o, err := e.lookup(h)
	if err != nil {
		return nil, err
	}
	return o.methodNames(), nil
}

// FieldNamesOf returns the object's public fields, which for catalog
// classes are its properties.
func (e *Engine) FieldNamesOf(_ context.Context, h wire.Handle) ([]string, error) {
	return e.propNames(h)
}

// ReadGlobal returns a global variable.
func (e *Engine) ReadGlobal(_ context.Context, name string) (wire.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.globals[name]
	if !ok {
		return nil, undefinedVariable(name)
	}
	return v, nil
}

// WriteGlobal sets a global variable.
func (e *Engine) WriteGlobal(_ context.Context, name string, v wire.Value) error {
	if !isIdentifier(name) {
		return badArgument(name, "invalid variable name")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.globals[name] = v
	return nil
}

// Globals returns a snapshot of the global namespace.
func (e *Engine) Globals() map[string]wire.Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]wire.Value, len(e.globals))
	for k, v := range e.globals {
		out[k] = v
	}
	return out
}

func (e *Engine) clearGlobal(name string) {
	e.mu.Lock()
	delete(e.globals, name)
	e.mu.Unlock()
}

// FieldAccess reads a property without following thin wrappers.
func (e *Engine) FieldAccess(_ context.Context, h wire.Handle, name string) (wire.Value, error) {
	return e.getProp(h, name)
}

// FieldAssign sets a property; see setProp for the returned handle.
func (e *Engine) FieldAssign(_ context.Context, h wire.Handle, name string, v wire.Value) (wire.Handle, error) {
	return e.setProp(h, name, v)
}

// EvalInGlobal evaluates statements against the global namespace.
func (e *Engine) EvalInGlobal(ctx context.Context, stmt string) (wire.Value, error) {
	return e.eval(ctx, stmt)
}

// Close drops all objects and globals. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	objects := len(e.objects)
	e.objects = make(map[uint64]*object)
	e.globals = make(map[string]wire.Value)
	e.callbacks = nil
	e.logger.Info("engine closed", "objects", objects)
	return nil
}
