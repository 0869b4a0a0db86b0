package engine

import (
	"slices"

	"github.com/roach88/enginebridge/internal/catalog"
	"github.com/roach88/enginebridge/internal/wire"
)

// ThinWrapperClass is the class of objects that stand in for an object held
// in a global variable. Their ObjectString property names the global.
const ThinWrapperClass = "thinwrapper"

// ObjectStringProperty is the thin wrapper property holding the global name.
const ObjectStringProperty = "ObjectString"

// object is a live class instance.
type object struct {
	id        uint64
	class     *catalog.Class // nil for thin wrappers
	className string
	kind      catalog.Kind
	names     []string // property order
	props     map[string]wire.Value
	deleted   bool
}

func (o *object) clone(id uint64) *object {
	c := &object{
		id:        id,
		class:     o.class,
		className: o.className,
		kind:      o.kind,
		names:     slices.Clone(o.names),
		props:     make(map[string]wire.Value, len(o.props)),
	}
	for k, v := range o.props {
		c.props[k] = v
	}
	return c
}

func (o *object) methodNames() []string {
	if o.class == nil {
		return nil
	}
	return o.class.MethodNames()
}

// construct creates an instance of a catalog class. args are name/value
// pairs overriding property defaults.
func (e *Engine) construct(cls *catalog.Class, args []wire.Value) (wire.Handle, error) {
	if len(args)%2 != 0 {
		return wire.Handle{}, badArgument(cls.Name, "constructor arguments must be name/value pairs")
	}
	o := &object{
		id:        e.clock.Next(),
		class:     cls,
		className: cls.Name,
		kind:      cls.Kind,
		props:     make(map[string]wire.Value, len(cls.Properties)),
	}
	for _, p := range cls.Properties {
		o.names = append(o.names, p.Name)
		o.props[p.Name] = p.Default
	}
	for i := 0; i < len(args); i += 2 {
		name, ok := args[i].(wire.Char)
		if !ok {
			return wire.Handle{}, badArgument(cls.Name, "property name must be char, got %s", wire.ClassOf(args[i]))
		}
		if _, ok := o.props[string(name)]; !ok {
			return wire.Handle{}, noProperty(cls.Name, string(name))
		}
		o.props[string(name)] = args[i+1]
	}

	e.mu.Lock()
	e.objects[o.id] = o
	e.mu.Unlock()

	e.logger.Debug("object created", "class", cls.Name, "handle", o.id)
	return wire.Handle{ID: o.id}, nil
}

// wrap creates a thin wrapper for h, binding it to a fresh global.
func (e *Engine) wrap(h wire.Handle) (wire.Handle, error) {
	if _, err := e.lookup(h); err != nil {
		return wire.Handle{}, err
	}
	binding := e.names.Generate()
	o := &object{
		id:        e.clock.Next(),
		className: ThinWrapperClass,
		kind:      catalog.KindHandle,
		names:     []string{ObjectStringProperty},
		props:     map[string]wire.Value{ObjectStringProperty: wire.Char(binding)},
	}

	e.mu.Lock()
	e.globals[binding] = h
	e.objects[o.id] = o
	e.mu.Unlock()

	return wire.Handle{ID: o.id}, nil
}

// lookup returns the live object behind h.
func (e *Engine) lookup(h wire.Handle) (*object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookupLocked(h)
}

func (e *Engine) lookupLocked(h wire.Handle) (*object, error) {
	o, ok := e.objects[h.ID]
	if !ok || o.deleted {
		return nil, invalidHandle(h.ID)
	}
	return o, nil
}

// resolve is lookup that follows a thin wrapper to the object its binding
// holds.
func (e *Engine) resolve(h wire.Handle) (*object, wire.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.lookupLocked(h)
	if err != nil {
		return nil, h, err
	}
	if o.className != ThinWrapperClass {
		return o, h, nil
	}
	binding := string(o.props[ObjectStringProperty].(wire.Char))
	g, ok := e.globals[binding]
	if !ok {
		return nil, h, undefinedVariable(binding)
	}
	inner, ok := g.(wire.Handle)
	if !ok {
		return nil, h, badArgument(binding, "thin wrapper binding does not hold an object")
	}
	target, err := e.lookupLocked(inner)
	if err != nil {
		return nil, h, err
	}
	return target, inner, nil
}

// isObject reports whether v is a handle to a known object, deleted or not.
func (e *Engine) isObject(v wire.Value) bool {
	h, ok := v.(wire.Handle)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok = e.objects[h.ID]
	return ok
}

func (e *Engine) getProp(h wire.Handle, name string) (wire.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	v, ok := o.props[name]
	if !ok {
		return nil, noProperty(o.className, name)
	}
	return v, nil
}

// setProp assigns a property. Handle objects change in place and keep h;
// value objects are copied and the copy's handle is returned.
func (e *Engine) setProp(h wire.Handle, name string, v wire.Value) (wire.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.lookupLocked(h)
	if err != nil {
		return h, err
	}
	if _, ok := o.props[name]; !ok {
		return h, noProperty(o.className, name)
	}
	if o.kind == catalog.KindValue {
		o = o.clone(e.clock.Next())
		e.objects[o.id] = o
		h = wire.Handle{ID: o.id}
	}
	o.props[name] = v
	return h, nil
}

// addProp adds a property (if absent) with an initial value, copying value
// objects like setProp.
func (e *Engine) addProp(h wire.Handle, name string, v wire.Value) (wire.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.lookupLocked(h)
	if err != nil {
		return h, err
	}
	if o.kind == catalog.KindValue {
		o = o.clone(e.clock.Next())
		e.objects[o.id] = o
		h = wire.Handle{ID: o.id}
	}
	if _, ok := o.props[name]; !ok {
		o.names = append(o.names, name)
	}
	o.props[name] = v
	return h, nil
}

func (e *Engine) propNames(h wire.Handle) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.lookupLocked(h)
	if err != nil {
		return nil, err
	}
	return slices.Clone(o.names), nil
}

func (e *Engine) deleteObject(h wire.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, err := e.lookupLocked(h)
	if err != nil {
		return err
	}
	o.deleted = true
	return nil
}
