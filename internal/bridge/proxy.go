package bridge

import (
	"context"
	"fmt"
	"regexp"
	"runtime"
	"slices"
	"sync"

	"github.com/roach88/enginebridge/internal/wire"
)

// Kind is how an object's identity is held across calls.
type Kind int

const (
	// Reference objects are mutated in place; the handle never changes.
	Reference Kind = iota

	// Value objects are copied on assignment; mutation yields a new handle
	// which the proxy adopts.
	Value

	// ThinWrapper objects live in an engine global named by the proxy's
	// binding and are manipulated by evaluating statements against it.
	ThinWrapper
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Reference:
		return "reference"
	case Value:
		return "value"
	case ThinWrapper:
		return "thinwrapper"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// objectStringField is the thin wrapper property holding the binding name.
const objectStringField = "ObjectString"

// anchorTags matches the hyperlink markup engines embed in display text.
var anchorTags = regexp.MustCompile(`</?a[^>]*>`)

// Object is a host proxy for a live engine object.
//
// Attribute and method names are read once at construction (Refresh
// re-reads attribute names). Attribute values are never cached: every Get
// goes to the engine.
//
// Thread-safety: methods are safe for concurrent use.
type Object struct {
	bridge *Bridge
	kind   Kind
	class  string

	mu          sync.Mutex
	handle      wire.Handle
	binding     string
	attrs       []string
	methods     map[string]*Callable
	methodNames []string

	closeOnce sync.Once
	closeErr  error
	cleanup   runtime.Cleanup
}

// clearBinding is the state a thin wrapper's finalizer needs; it must not
// reference the Object itself.
type clearBinding struct {
	bridge  *Bridge
	binding string
}

// newObject builds a proxy, asking the engine for the object's kind, its
// attribute names and its method names.
func (b *Bridge) newObject(ctx context.Context, h wire.Handle) (*Object, error) {
	class, err := b.engine.ClassOf(ctx, h)
	if err != nil {
		return nil, err
	}
	o := &Object{bridge: b, class: class, handle: h}

	if class == b.opts.ThinWrapperClass {
		o.kind = ThinWrapper
		v, err := b.engine.FieldAccess(ctx, h, objectStringField)
		if err != nil {
			return nil, err
		}
		binding, ok := v.(wire.Char)
		if !ok {
			return nil, unexpectedValue("thin wrapper binding", v)
		}
		o.binding = string(binding)
	} else {
		isHandle, err := b.engine.IsInstanceOf(ctx, h, "handle")
		if err != nil {
			return nil, err
		}
		if isHandle {
			o.kind = Reference
		} else {
			o.kind = Value
		}
	}

	attrs, err := o.readAttributeNames(ctx)
	if err != nil {
		return nil, err
	}
	o.attrs = attrs

	methodNames, err := o.readMethodNames(ctx)
	if err != nil {
		return nil, err
	}
	o.methodNames = methodNames
	o.methods = make(map[string]*Callable, len(methodNames))
	for _, name := range methodNames {
		o.methods[name] = &Callable{bridge: b, name: name, owner: o}
	}

	if o.kind == ThinWrapper {
		o.cleanup = runtime.AddCleanup(o, func(cb clearBinding) {
			if err := cb.bridge.clear(context.Background(), cb.binding); err != nil {
				cb.bridge.logger.Warn("thin wrapper cleanup failed", "binding", cb.binding, "error", err)
			}
		}, clearBinding{bridge: b, binding: o.binding})
	}

	b.logger.Debug("object proxy created", "class", class, "kind", o.kind, "handle", h.ID)
	return o, nil
}

func (o *Object) readAttributeNames(ctx context.Context) ([]string, error) {
	if o.kind == ThinWrapper {
		return o.bridge.evalNames(ctx, fmt.Sprintf("fieldnames(%s)", o.binding))
	}
	return o.bridge.engine.FieldNamesOf(ctx, o.Handle())
}

func (o *Object) readMethodNames(ctx context.Context) ([]string, error) {
	if o.kind == ThinWrapper {
		return o.bridge.evalNames(ctx, fmt.Sprintf("methods(%s)", o.binding))
	}
	return o.bridge.engine.MethodsOf(ctx, o.Handle())
}

// evalNames evaluates an expression yielding a cell of names.
func (b *Bridge) evalNames(ctx context.Context, expr string) ([]string, error) {
	v, err := b.engine.EvalInGlobal(ctx, expr)
	if err != nil {
		return nil, err
	}
	cell, ok := v.(wire.Cell)
	if !ok {
		if _, empty := v.(wire.Empty); empty {
			return nil, nil
		}
		return nil, unexpectedValue(expr, v)
	}
	names := make([]string, 0, len(cell))
	for _, e := range cell {
		s, ok := e.(wire.Char)
		if !ok {
			return nil, unexpectedValue(expr, e)
		}
		names = append(names, string(s))
	}
	return names, nil
}

func (b *Bridge) clear(ctx context.Context, binding string) error {
	_, err := b.engine.EvalInGlobal(ctx, fmt.Sprintf("clear('%s')", binding))
	return err
}

// Handle returns the object's current handle. For value objects it changes
// after every mutation.
func (o *Object) Handle() wire.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.handle
}

// Kind returns how the object's identity is held.
func (o *Object) Kind() Kind {
	return o.kind
}

// Class returns the engine class name read at construction.
func (o *Object) Class() string {
	return o.class
}

// Binding returns the global name addressing a thin wrapper, or "".
func (o *Object) Binding() string {
	return o.binding
}

// Attributes returns the attribute names in engine order.
func (o *Object) Attributes() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.attrs)
}

// Methods returns the method names in engine order.
func (o *Object) Methods() []string {
	return slices.Clone(o.methodNames)
}

// Method returns the bound callable for a method.
func (o *Object) Method(name string) (*Callable, bool) {
	c, ok := o.methods[name]
	return c, ok
}

func (o *Object) hasAttribute(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Contains(o.attrs, name)
}

// Get reads an attribute (always from the engine) or returns the bound
// callable for a method. Attributes shadow methods of the same name.
func (o *Object) Get(ctx context.Context, name string) (any, error) {
	if o.hasAttribute(name) {
		var (
			v   wire.Value
			err error
		)
		if o.kind == ThinWrapper {
			v, err = o.bridge.engine.EvalInGlobal(ctx, fmt.Sprintf("%s.%s", o.binding, name))
		} else {
			v, err = o.bridge.engine.FieldAccess(ctx, o.Handle(), name)
		}
		if err != nil {
			return nil, err
		}
		return o.bridge.Decode(ctx, v)
	}
	if c, ok := o.methods[name]; ok {
		return c, nil
	}
	return nil, attributeNotFound(o.class, name)
}

// Set assigns an attribute. Value objects adopt the handle of the modified
// copy; thin wrappers assign through a temporary global.
func (o *Object) Set(ctx context.Context, name string, v any) error {
	wv, err := o.bridge.Encode(ctx, v)
	if err != nil {
		return err
	}

	if o.kind == ThinWrapper {
		tmp := o.bridge.names.Generate()
		if err := o.bridge.engine.WriteGlobal(ctx, tmp, wv); err != nil {
			return err
		}
		stmt := fmt.Sprintf("%s.%s = %s; clear('%s')", o.binding, name, tmp, tmp)
		_, err := o.bridge.engine.EvalInGlobal(ctx, stmt)
		return err
	}

	newHandle, err := o.bridge.engine.FieldAssign(ctx, o.Handle(), name, wv)
	if err != nil {
		return err
	}
	if o.kind == Value {
		o.mu.Lock()
		o.handle = newHandle
		o.mu.Unlock()
	}
	return nil
}

// Call invokes a method expecting one result.
func (o *Object) Call(ctx context.Context, method string, args ...any) (any, error) {
	c, ok := o.methods[method]
	if !ok {
		return nil, attributeNotFound(o.class, method)
	}
	return c.Call(ctx, args...)
}

// Refresh re-reads the attribute names from the engine.
func (o *Object) Refresh(ctx context.Context) error {
	attrs, err := o.readAttributeNames(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.attrs = attrs
	o.mu.Unlock()
	return nil
}

// Properties lists the object's public properties as the engine reports
// them. Unlike Attributes it always asks the engine.
func (o *Object) Properties(ctx context.Context) ([]string, error) {
	if o.kind == ThinWrapper {
		return o.bridge.evalNames(ctx, fmt.Sprintf("fieldnames(%s)", o.binding))
	}
	return o.bridge.engine.PropertiesOf(ctx, o.Handle())
}

// Index returns element i (0-based) of the object.
func (o *Object) Index(ctx context.Context, i int) (any, error) {
	out, err := o.bridge.engine.Invoke(ctx, "subsref", nil, []wire.Value{o.Handle(), parenSubscript(i)}, 1)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return o.bridge.Decode(ctx, out[0])
}

// SetIndex assigns element i (0-based). The object adopts the handle the
// engine returns; thin wrappers assign through their binding and keep the
// wrapper handle.
func (o *Object) SetIndex(ctx context.Context, i int, v any) error {
	wv, err := o.bridge.Encode(ctx, v)
	if err != nil {
		return err
	}

	if o.kind == ThinWrapper {
		tmp := o.bridge.names.Generate()
		if err := o.bridge.engine.WriteGlobal(ctx, tmp, wv); err != nil {
			return err
		}
		stmt := fmt.Sprintf("%s(%d) = %s; clear('%s')", o.binding, i+1, tmp, tmp)
		_, err := o.bridge.engine.EvalInGlobal(ctx, stmt)
		return err
	}

	out, err := o.bridge.engine.Invoke(ctx, "subsasgn", nil, []wire.Value{o.Handle(), parenSubscript(i), wv}, 1)
	if err != nil {
		return err
	}
	if len(out) != 1 {
		return unexpectedValue("subsasgn", out)
	}
	h, ok := out[0].(wire.Handle)
	if !ok {
		return unexpectedValue("subsasgn", out[0])
	}
	o.mu.Lock()
	o.handle = h
	o.mu.Unlock()
	return nil
}

// parenSubscript builds the engine's () subscript for 0-based host index i.
func parenSubscript(i int) wire.Struct {
	return wire.Struct{
		"type": wire.Char("()"),
		"subs": wire.Cell{wire.Double(float64(i + 1))},
	}
}

// Len returns the engine's element count for the object.
func (o *Object) Len(ctx context.Context) (int, error) {
	out, err := o.bridge.engine.Invoke(ctx, "numel", nil, []wire.Value{o.Handle()}, 1)
	if err != nil {
		return 0, err
	}
	if len(out) == 1 {
		if n, ok := out[0].(wire.Double); ok {
			return int(n), nil
		}
	}
	return 0, unexpectedValue("numel", out)
}

// Display returns the engine's display text with hyperlink markup removed.
func (o *Object) Display(ctx context.Context) (string, error) {
	out, err := o.bridge.engine.Invoke(ctx, "display_string", nil, []wire.Value{o.Handle()}, 1)
	if err != nil {
		return "", err
	}
	if len(out) == 1 {
		if s, ok := out[0].(wire.Char); ok {
			return anchorTags.ReplaceAllString(string(s), ""), nil
		}
	}
	return "", unexpectedValue("display_string", out)
}

// String returns a short description without calling the engine.
func (o *Object) String() string {
	if o.kind == ThinWrapper {
		return fmt.Sprintf("<%s object (%s) bound to %s>", o.class, o.kind, o.binding)
	}
	return fmt.Sprintf("<%s object (%s) handle %d>", o.class, o.kind, o.Handle().ID)
}

// Close releases a thin wrapper's global binding. It issues exactly one
// clear per object, whether called explicitly or run by the garbage
// collector, and is a no-op for other kinds.
func (o *Object) Close(ctx context.Context) error {
	if o.kind != ThinWrapper {
		return nil
	}
	o.closeOnce.Do(func() {
		o.cleanup.Stop()
		o.closeErr = o.bridge.clear(ctx, o.binding)
	})
	return o.closeErr
}
