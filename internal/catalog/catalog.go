package catalog

import "github.com/roach88/enginebridge/internal/wire"

// Kind is how instances of a class behave on assignment.
type Kind string

const (
	// KindHandle instances are shared; mutation is visible through every handle.
	KindHandle Kind = "handle"

	// KindValue instances are copied on mutation; each copy gets a new handle.
	KindValue Kind = "value"
)

// Op is the behavior of a declared method body.
type Op string

const (
	OpGet            Op = "get"             // return Field
	OpSet            Op = "set"             // Field = arg 1
	OpAdd            Op = "add"             // Field += arg 1 (default 1), return the new value
	OpTuple          Op = "tuple"           // return each of Fields
	OpAddProp        Op = "addprop"         // add a property named by arg 1
	OpDelegate       Op = "delegate"        // call the builtin of the same name on Field
	OpDelegateAssign Op = "delegate_assign" // same, storing the result back into Field
	OpBuiltin        Op = "builtin"         // call Builtin with the receiver first
)

// Signature is a declared output count. Varargout marks a variable output
// list, whose count cannot be determined ahead of a call.
type Signature struct {
	Outputs   int
	Varargout bool
}

// Catalog is a compiled set of class and function declarations, in
// declaration order.
type Catalog struct {
	Classes   []*Class
	Functions []*Function

	classes   map[string]*Class
	functions map[string]*Function
}

// Class returns the class declared under name.
func (c *Catalog) Class(name string) (*Class, bool) {
	cls, ok := c.classes[name]
	return cls, ok
}

// Function returns the function declared under name.
func (c *Catalog) Function(name string) (*Function, bool) {
	fn, ok := c.functions[name]
	return fn, ok
}

func (c *Catalog) index() {
	c.classes = make(map[string]*Class, len(c.Classes))
	for _, cls := range c.Classes {
		c.classes[cls.Name] = cls
	}
	c.functions = make(map[string]*Function, len(c.Functions))
	for _, fn := range c.Functions {
		c.functions[fn.Name] = fn
	}
}

// Class declares an engine class.
type Class struct {
	Name       string
	Kind       Kind
	Properties []Property
	Methods    []Method
}

// Method returns the method declared under name.
func (c *Class) Method(name string) (*Method, bool) {
	for i := range c.Methods {
		if c.Methods[i].Name == name {
			return &c.Methods[i], true
		}
	}
	return nil, false
}

// MethodNames returns the method names in declaration order.
func (c *Class) MethodNames() []string {
	names := make([]string, len(c.Methods))
	for i, m := range c.Methods {
		names[i] = m.Name
	}
	return names
}

// Property is a declared property and its initial value.
type Property struct {
	Name    string
	Default wire.Value
}

// Method is a declared method.
type Method struct {
	Name string
	Signature
	Body Body
}

// Body is a declarative method implementation.
type Body struct {
	Op      Op
	Field   string
	Fields  []string
	Builtin string
}

// Function declares a global engine function backed by a builtin.
type Function struct {
	Name string
	Signature
	Builtin string
}
