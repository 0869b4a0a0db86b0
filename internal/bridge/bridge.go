package bridge

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/enginebridge/internal/callback"
	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/wire"
)

// Engine is the primitive surface the bridge drives.
// *session.Session satisfies it.
type Engine interface {
	Invoke(ctx context.Context, name string, receiver *wire.Handle, args []wire.Value, nargout int) ([]wire.Value, error)
	DeclaredOutputCount(ctx context.Context, name string, receiver *wire.Handle) (int, bool, error)
	ClassOf(ctx context.Context, v wire.Value) (string, error)
	IsInstanceOf(ctx context.Context, v wire.Value, class string) (bool, error)
	IsObject(ctx context.Context, v wire.Value) (bool, error)
	IsFunctionHandle(ctx context.Context, v wire.Value) (bool, error)
	PropertiesOf(ctx context.Context, h wire.Handle) ([]string, error)
	MethodsOf(ctx context.Context, h wire.Handle) ([]string, error)
	FieldNamesOf(ctx context.Context, h wire.Handle) ([]string, error)
	ReadGlobal(ctx context.Context, name string) (wire.Value, error)
	WriteGlobal(ctx context.Context, name string, v wire.Value) error
	EvalInGlobal(ctx context.Context, stmt string) (wire.Value, error)
	FieldAccess(ctx context.Context, h wire.Handle, name string) (wire.Value, error)
	FieldAssign(ctx context.Context, h wire.Handle, name string, v wire.Value) (wire.Handle, error)
}

// callbackAttacher is implemented by engines that can call into the host.
type callbackAttacher interface {
	AttachCallbacks(cb session.Callbacks) bool
}

// Options holds the engine conventions the bridge relies on.
type Options struct {
	// ThinWrapperClass is the engine class of objects addressed through a
	// global binding rather than a handle.
	ThinWrapperClass string

	// SentinelPrefix and SentinelLength identify strings the engine returns
	// in place of a value: prefix + global name, exactly SentinelLength runes.
	SentinelPrefix string
	SentinelLength int

	// SmallArrayLimit is the element count below which integer and logical
	// arrays are copied into double arrays instead of shared.
	SmallArrayLimit int

	// AdapterName is the engine function that routes host callbacks by id.
	AdapterName string
}

// DefaultOptions returns the conventions of the reference engine.
func DefaultOptions() Options {
	return Options{
		ThinWrapperClass: "thinwrapper",
		SentinelPrefix:   "!$",
		SentinelLength:   34,
		SmallArrayLimit:  1000,
		AdapterName:      "invoke_by_id",
	}
}

// NameSource generates collision-free identifiers for engine globals.
// Implemented by uuidNames (production) and testutil.SequenceGenerator
// (tests).
type NameSource interface {
	Generate() string
}

// uuidNames yields prefix + 32 hex digits, a valid engine identifier.
type uuidNames struct {
	prefix string
}

func (n uuidNames) Generate() string {
	return n.prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Bridge converts host values, builds proxies for engine objects, and
// exposes engine functions as host callables.
//
// Thread-safety: a Bridge is safe for concurrent use; the Engine serializes
// the underlying calls.
type Bridge struct {
	engine   Engine
	registry *callback.Registry
	names    NameSource
	opts     Options
	logger   *slog.Logger
	adapter  *Adapter
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithRegistry sets the callback registry. Default: a new registry.
func WithRegistry(r *callback.Registry) Option {
	return func(b *Bridge) {
		b.registry = r
	}
}

// WithNameSource sets the generator for temporary global names.
func WithNameSource(n NameSource) Option {
	return func(b *Bridge) {
		b.names = n
	}
}

// WithOptions replaces the engine conventions.
func WithOptions(o Options) Option {
	return func(b *Bridge) {
		b.opts = o
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

// New creates a Bridge over an engine. If the engine can call into the
// host, the bridge's Adapter is attached to it.
func New(e Engine, opts ...Option) *Bridge {
	b := &Bridge{
		engine: e,
		names:  uuidNames{prefix: "obj"},
		opts:   DefaultOptions(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.registry == nil {
		b.registry = callback.NewRegistry(callback.WithLogger(b.logger))
	}
	b.adapter = &Adapter{bridge: b}
	if att, ok := e.(callbackAttacher); ok {
		att.AttachCallbacks(b.adapter)
	}
	return b
}

// Registry returns the callback registry.
func (b *Bridge) Registry() *callback.Registry {
	return b.registry
}

// Adapter returns the callback surface for the engine.
func (b *Bridge) Adapter() *Adapter {
	return b.adapter
}

// Options returns the engine conventions in use.
func (b *Bridge) Options() Options {
	return b.opts
}

// Function returns a callable for a global engine function.
func (b *Bridge) Function(name string) *Callable {
	return &Callable{bridge: b, name: name}
}

// Call invokes a global engine function expecting one result. Kwarg and
// Nargout values in args are treated as markers (see Callable.Call).
func (b *Bridge) Call(ctx context.Context, name string, args ...any) (any, error) {
	return b.Function(name).Call(ctx, args...)
}

// Global reads and decodes a variable from the engine's global namespace.
func (b *Bridge) Global(ctx context.Context, name string) (any, error) {
	v, err := b.engine.ReadGlobal(ctx, name)
	if err != nil {
		return nil, err
	}
	return b.Decode(ctx, v)
}

// SetGlobal encodes a host value into the engine's global namespace.
func (b *Bridge) SetGlobal(ctx context.Context, name string, v any) error {
	wv, err := b.Encode(ctx, v)
	if err != nil {
		return err
	}
	return b.engine.WriteGlobal(ctx, name, wv)
}

// Eval evaluates statements in the engine's global namespace and decodes
// the value of the last expression.
func (b *Bridge) Eval(ctx context.Context, stmt string) (any, error) {
	v, err := b.engine.EvalInGlobal(ctx, stmt)
	if err != nil {
		return nil, err
	}
	return b.Decode(ctx, v)
}

// TypeOf returns the engine class name of a host value once encoded.
func (b *Bridge) TypeOf(ctx context.Context, v any) (string, error) {
	wv, err := b.Encode(ctx, v)
	if err != nil {
		return "", err
	}
	return b.engine.ClassOf(ctx, wv)
}

// RegisterClass makes a host constructor available to the engine.
// Pass the returned factory to an engine function to hand it over.
func (b *Bridge) RegisterClass(typename string, ctor any) (*callback.ClassFactory, error) {
	return b.registry.RegisterClass(typename, ctor)
}

// Unregister drops a host callable previously encoded for the engine.
func (b *Bridge) Unregister(id string) bool {
	return b.registry.Unregister(id)
}
