package callback

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Registry maps opaque ids to host callables, and instance keys to host
// class instances created from the engine side.
//
// Registrations are never removed implicitly: a callable stays reachable
// until Unregister, an instance until RemoveObject.
//
// Thread-safety: all methods are safe for concurrent use. Callables run
// without the registry lock held, so they may register further callables.
type Registry struct {
	mu        sync.RWMutex
	funcs     map[string]any
	instances map[string]any

	ids    IDGenerator
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator sets the id source. Default: UUIDGenerator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) {
		r.ids = g
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs:     make(map[string]any),
		instances: make(map[string]any),
		ids:       UUIDGenerator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores a callable (a Go func or an Invoker) and returns its id.
func (r *Registry) Register(fn any) (string, error) {
	if err := checkCallable(fn); err != nil {
		return "", err
	}
	id := r.ids.Generate()

	r.mu.Lock()
	r.funcs[id] = fn
	r.mu.Unlock()

	r.logger.Debug("callback registered", "id", id, "type", fmt.Sprintf("%T", fn))
	return id, nil
}

// Unregister removes a callable. Returns false if id was not registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[id]; !ok {
		return false
	}
	delete(r.funcs, id)
	return true
}

// Lookup returns the callable registered under id.
func (r *Registry) Lookup(id string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[id]
	return fn, ok
}

// Len returns the number of registered callables.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}

// Call invokes the callable registered under id. String arguments that name
// a stored instance are replaced by the instance.
func (r *Registry) Call(ctx context.Context, id string, args []any, kwargs map[string]any) (any, error) {
	fn, ok := r.Lookup(id)
	if !ok {
		return nil, missError("callback", id)
	}
	return call(ctx, fn, r.ResolveInstances(args), kwargs)
}

// RegisterClass wraps a host constructor so that the engine can create
// instances. ctor follows the same parameter conventions as any callable
// and must return the instance (optionally followed by an error).
func (r *Registry) RegisterClass(typename string, ctor any) (*ClassFactory, error) {
	if typename == "" {
		return nil, &Error{Code: ErrCodeNotCallable, Message: "class typename is empty"}
	}
	if err := checkCallable(ctor); err != nil {
		return nil, err
	}
	return &ClassFactory{Typename: typename, ctor: ctor, registry: r}, nil
}

// Instance returns the stored instance for key.
func (r *Registry) Instance(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.instances[key]
	return obj, ok
}

// Instances returns the number of stored instances.
func (r *Registry) Instances() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// RemoveObject drops a stored instance.
func (r *Registry) RemoveObject(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[key]; !ok {
		return missError("object", key)
	}
	delete(r.instances, key)
	return nil
}

// ObjectProperty reads a property of a stored instance: a map entry, an
// exported struct field, or a niladic exported method.
func (r *Registry) ObjectProperty(ctx context.Context, key, name string) (any, error) {
	obj, ok := r.Instance(key)
	if !ok {
		return nil, missError("object", key)
	}

	rv := reflect.ValueOf(obj)
	if m := methodByName(rv, name); m.IsValid() && m.Type().NumIn() == 0 {
		return callValue(ctx, m, nil, nil)
	}

	target := reflect.Indirect(rv)
	switch target.Kind() {
	case reflect.Map:
		if target.Type().Key().Kind() == reflect.String {
			v := target.MapIndex(reflect.ValueOf(name).Convert(target.Type().Key()))
			if v.IsValid() {
				return v.Interface(), nil
			}
		}
	case reflect.Struct:
		for _, field := range []string{name, exportedName(name)} {
			sf, ok := target.Type().FieldByName(field)
			if ok && sf.IsExported() {
				return target.FieldByIndex(sf.Index).Interface(), nil
			}
		}
	}
	return nil, &Error{Code: ErrCodeNoMember, ID: key, Message: fmt.Sprintf("no property %q", name)}
}

// CallObjectMethod calls an exported method of a stored instance.
func (r *Registry) CallObjectMethod(ctx context.Context, key, method string, args []any, kwargs map[string]any) (any, error) {
	obj, ok := r.Instance(key)
	if !ok {
		return nil, missError("object", key)
	}
	m := methodByName(reflect.ValueOf(obj), method)
	if !m.IsValid() {
		return nil, &Error{Code: ErrCodeNoMember, ID: key, Message: fmt.Sprintf("no method %q", method)}
	}
	return callValue(ctx, m, r.ResolveInstances(args), kwargs)
}

// ResolveInstances returns args with every string that is a stored instance
// key replaced by the instance.
func (r *Registry) ResolveInstances(args []any) []any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.instances) == 0 {
		return args
	}
	var out []any
	for i, a := range args {
		s, ok := a.(string)
		if !ok {
			continue
		}
		obj, ok := r.instances[s]
		if !ok {
			continue
		}
		if out == nil {
			out = append([]any(nil), args...)
		}
		out[i] = obj
	}
	if out == nil {
		return args
	}
	return out
}

func (r *Registry) store(typename string, obj any) string {
	key := typename + r.ids.Generate()
	r.mu.Lock()
	r.instances[key] = obj
	r.mu.Unlock()
	r.logger.Debug("host instance stored", "key", key)
	return key
}

func methodByName(rv reflect.Value, name string) reflect.Value {
	for _, n := range []string{name, exportedName(name)} {
		if m := rv.MethodByName(n); m.IsValid() {
			return m
		}
	}
	return reflect.Value{}
}

// exportedName upper-cases the first letter: "area" -> "Area".
func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}

// ClassFactory constructs host class instances on behalf of the engine.
// Calling it stores the new instance and returns the instance key, which the
// engine uses in later CallObjectMethod, ObjectProperty and RemoveObject calls.
type ClassFactory struct {
	Typename string

	ctor     any
	registry *Registry
}

// Invoke constructs an instance and returns its key.
func (f *ClassFactory) Invoke(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	obj, err := call(ctx, f.ctor, f.registry.ResolveInstances(args), kwargs)
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", f.Typename, err)
	}
	if _, multi := obj.(Results); multi {
		return nil, argError("constructor for %s returned more than one value", f.Typename)
	}
	return f.registry.store(f.Typename, obj), nil
}

// IsInstanceKey reports whether key was produced by this factory.
func (f *ClassFactory) IsInstanceKey(key string) bool {
	if !strings.HasPrefix(key, f.Typename) {
		return false
	}
	_, ok := f.registry.Instance(key)
	return ok
}
