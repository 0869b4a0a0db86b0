package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/enginebridge/internal/catalog"
	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/wire"
)

type builtinFunc func(ctx context.Context, e *Engine, args []wire.Value, nargout int) ([]wire.Value, error)

type builtin struct {
	sig catalog.Signature
	fn  builtinFunc
}

var (
	sig0      = catalog.Signature{Outputs: 0}
	sig1      = catalog.Signature{Outputs: 1}
	varargout = catalog.Signature{Varargout: true}
)

// IndirectPrefix starts the strings make_indirect returns in place of a
// value. The rest of the string names the global holding the value.
const IndirectPrefix = "!$"

// indirectNameLength makes every indirect string exactly 34 characters.
const indirectNameLength = 32

// builtins is filled in init to break the initialization cycle through
// feval and Engine.call.
var builtins map[string]builtin

func init() {
	builtins = map[string]builtin{
		"plus":     {sig1, arith(func(x, y float64) float64 { return x + y })},
		"minus":    {sig1, arith(func(x, y float64) float64 { return x - y })},
		"times":    {sig1, arith(func(x, y float64) float64 { return x * y })},
		"rdivide":  {sig1, arith(func(x, y float64) float64 { return x / y })},
		"power":    {sig1, arith(math.Pow)},
		"mtimes":   {sig1, bMtimes},
		"mrdivide": {sig1, bMrdivide},
		"mpower":   {sig1, bMpower},

		"eq": {sig1, compare(func(x, y float64) bool { return x == y })},
		"ne": {sig1, compare(func(x, y float64) bool { return x != y })},
		"lt": {sig1, compare(func(x, y float64) bool { return x < y })},
		"gt": {sig1, compare(func(x, y float64) bool { return x > y })},
		"le": {sig1, compare(func(x, y float64) bool { return x <= y })},
		"ge": {sig1, compare(func(x, y float64) bool { return x >= y })},

		"and":     {sig1, compare(func(x, y float64) bool { return x != 0 && y != 0 })},
		"or":      {sig1, compare(func(x, y float64) bool { return x != 0 || y != 0 })},
		"not":     {sig1, unary(wire.ClassLogical, func(x float64) float64 { return boolf(x == 0) })},
		"logical": {sig1, unary(wire.ClassLogical, func(x float64) float64 { return boolf(x != 0) })},
		"uplus":   {sig1, unary("", func(x float64) float64 { return x })},
		"uminus":  {sig1, unary("", func(x float64) float64 { return -x })},
		"abs":     {sig1, unary("", math.Abs)},

		"sum":    {sig1, bSum},
		"minmax": {catalog.Signature{Outputs: 2}, bMinMax},
		"stats":  {catalog.Signature{Outputs: 3}, bStats},
		"zeros":  {sig1, fill(0)},
		"ones":   {sig1, fill(1)},
		"cast":   {sig1, bCast},
		"true":   {sig1, constant(wire.Logical(true))},
		"false":  {sig1, constant(wire.Logical(false))},

		"numel":    {sig1, bNumel},
		"isempty":  {sig1, bIsEmpty},
		"class":    {sig1, bClass},
		"isa":      {sig1, bIsa},
		"isobject": {sig1, bIsObject},

		"fieldnames": {sig1, bFieldnames},
		"methods":    {sig1, bMethods},
		"struct":     {sig1, bStruct},
		"cell":       {sig1, bCell},

		"feval":           {varargout, bFeval},
		"deal":            {varargout, bDeal},
		"noop":            {sig0, bNoop},
		"get_method_refs": {sig1, bGetMethodRefs},
		"str2func":        {sig1, bStr2func},

		"subsref":        {sig1, bSubsref},
		"subsasgn":       {sig1, bSubsasgn},
		"display_string": {sig1, bDisplayString},
		"delete":         {sig0, bDelete},
		"thinwrap":       {sig1, bThinwrap},
		"make_indirect":  {sig1, bMakeIndirect},

		"invoke_by_id":    {sig1, bInvokeByID(false)},
		"invoke_by_id_kw": {sig1, bInvokeByID(true)},
		"call_obj_method": {sig1, bCallObjMethod},
		"get_obj_prop":    {sig1, bGetObjProp},
		"remove_object":   {sig0, bRemoveObject},
	}
}

// Builtins returns the builtin names in sorted order.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func one(v wire.Value) []wire.Value {
	return []wire.Value{v}
}

func nargs(name string, args []wire.Value, lo, hi int) error {
	if len(args) < lo || (hi >= 0 && len(args) > hi) {
		if lo == hi {
			return badArgument(name, "expected %d arguments, got %d", lo, len(args))
		}
		return badArgument(name, "expected %d to %d arguments, got %d", lo, hi, len(args))
	}
	return nil
}

func charArg(name string, v wire.Value) (string, error) {
	s, ok := v.(wire.Char)
	if !ok {
		return "", badArgument(name, "expected char argument, got %s", wire.ClassOf(v))
	}
	return string(s), nil
}

func handleArg(name string, v wire.Value) (wire.Handle, error) {
	h, ok := v.(wire.Handle)
	if !ok {
		return wire.Handle{}, badArgument(name, "expected an object, got %s", wire.ClassOf(v))
	}
	return h, nil
}

func scalarArg(name string, v wire.Value) (float64, error) {
	a, err := toArray(name, v)
	if err != nil {
		return 0, err
	}
	if !isScalar(a) {
		return 0, badArgument(name, "expected a scalar")
	}
	return a.Data[0], nil
}

func arith(f func(x, y float64) float64) builtinFunc {
	return func(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
		if err := nargs("arithmetic", args, 2, 2); err != nil {
			return nil, err
		}
		a, err := toArray("arithmetic", args[0])
		if err != nil {
			return nil, err
		}
		b, err := toArray("arithmetic", args[1])
		if err != nil {
			return nil, err
		}
		out, err := elementwise("arithmetic", a, b, arithClass(a, b), f)
		if err != nil {
			return nil, err
		}
		return one(fromArray(out)), nil
	}
}

func compare(f func(x, y float64) bool) builtinFunc {
	return func(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
		if err := nargs("comparison", args, 2, 2); err != nil {
			return nil, err
		}
		ha, aok := args[0].(wire.Handle)
		hb, bok := args[1].(wire.Handle)
		if aok && bok {
			same := boolf(ha == hb)
			return one(wire.Logical(f(same, 1))), nil
		}
		a, err := toArray("comparison", args[0])
		if err != nil {
			return nil, err
		}
		b, err := toArray("comparison", args[1])
		if err != nil {
			return nil, err
		}
		out, err := elementwise("comparison", a, b, wire.ClassLogical, func(x, y float64) float64 {
			return boolf(f(x, y))
		})
		if err != nil {
			return nil, err
		}
		return one(fromArray(out)), nil
	}
}

// unary maps f over a numeric operand. An empty class keeps the operand's
// class, with logical promoted to double.
func unary(class wire.Class, f func(x float64) float64) builtinFunc {
	return func(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
		if err := nargs("unary", args, 1, 1); err != nil {
			return nil, err
		}
		a, err := toArray("unary", args[0])
		if err != nil {
			return nil, err
		}
		c := class
		if c == "" {
			c = a.Class
			if c == wire.ClassLogical {
				c = wire.ClassDouble
			}
		}
		return one(fromArray(mapArray(a, c, f))), nil
	}
}

func bMtimes(ctx context.Context, e *Engine, args []wire.Value, nargout int) ([]wire.Value, error) {
	if err := nargs("mtimes", args, 2, 2); err != nil {
		return nil, err
	}
	a, err := toArray("mtimes", args[0])
	if err != nil {
		return nil, err
	}
	b, err := toArray("mtimes", args[1])
	if err != nil {
		return nil, err
	}
	if isScalar(a) || isScalar(b) {
		return arith(func(x, y float64) float64 { return x * y })(ctx, e, args, nargout)
	}
	out, err := matmul("mtimes", a, b)
	if err != nil {
		return nil, err
	}
	return one(fromArray(out)), nil
}

func bMrdivide(ctx context.Context, e *Engine, args []wire.Value, nargout int) ([]wire.Value, error) {
	if err := nargs("mrdivide", args, 2, 2); err != nil {
		return nil, err
	}
	b, err := toArray("mrdivide", args[1])
	if err != nil {
		return nil, err
	}
	if !isScalar(b) {
		return nil, badArgument("mrdivide", "matrix division is not supported")
	}
	return arith(func(x, y float64) float64 { return x / y })(ctx, e, args, nargout)
}

func bMpower(ctx context.Context, e *Engine, args []wire.Value, nargout int) ([]wire.Value, error) {
	if err := nargs("mpower", args, 2, 2); err != nil {
		return nil, err
	}
	for _, a := range args {
		arr, err := toArray("mpower", a)
		if err != nil {
			return nil, err
		}
		if !isScalar(arr) {
			return nil, badArgument("mpower", "matrix power is not supported")
		}
	}
	return arith(math.Pow)(ctx, e, args, nargout)
}

func bSum(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("sum", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := toArray("sum", args[0])
	if err != nil {
		return nil, err
	}
	var total float64
	for _, x := range a.Data {
		total += x
	}
	return one(wire.Double(total)), nil
}

func bMinMax(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("minmax", args, 1, 1); err != nil {
		return nil, err
	}
	a, err := toArray("minmax", args[0])
	if err != nil {
		return nil, err
	}
	if len(a.Data) == 0 {
		return nil, badArgument("minmax", "empty input")
	}
	return []wire.Value{wire.Double(slices.Min(a.Data)), wire.Double(slices.Max(a.Data))}, nil
}

func bStats(ctx context.Context, e *Engine, args []wire.Value, nargout int) ([]wire.Value, error) {
	mm, err := bMinMax(ctx, e, args, 2)
	if err != nil {
		return nil, err
	}
	a, _ := toArray("stats", args[0])
	var total float64
	for _, x := range a.Data {
		total += x
	}
	return append(mm, wire.Double(total/float64(len(a.Data)))), nil
}

func fill(value float64) builtinFunc {
	return func(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
		if err := nargs("fill", args, 1, 2); err != nil {
			return nil, err
		}
		rows, err := scalarArg("fill", args[0])
		if err != nil {
			return nil, err
		}
		cols := rows
		if len(args) == 2 {
			if cols, err = scalarArg("fill", args[1]); err != nil {
				return nil, err
			}
		}
		shape := []int{int(rows), int(cols)}
		data := make([]float64, wire.NumElements(shape))
		for i := range data {
			data[i] = value
		}
		return one(fromArray(wire.Array{Class: wire.ClassDouble, Shape: shape, Data: data})), nil
	}
}

func bCast(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("cast", args, 2, 2); err != nil {
		return nil, err
	}
	a, err := toArray("cast", args[0])
	if err != nil {
		return nil, err
	}
	name, err := charArg("cast", args[1])
	if err != nil {
		return nil, err
	}
	class := wire.Class(name)
	switch {
	case class == wire.ClassLogical:
		return one(fromArray(mapArray(a, class, func(x float64) float64 { return boolf(x != 0) }))), nil
	case class.IsInteger() || class.IsFloating():
		return one(fromArray(mapArray(a, class, func(x float64) float64 { return x }))), nil
	}
	return nil, badArgument("cast", "unsupported class %q", name)
}

func constant(v wire.Value) builtinFunc {
	return func(context.Context, *Engine, []wire.Value, int) ([]wire.Value, error) {
		return one(v), nil
	}
}

func numel(v wire.Value) int {
	switch val := v.(type) {
	case wire.Empty:
		return 0
	case wire.Array:
		return wire.NumElements(val.Shape)
	case wire.Buffer:
		return wire.NumElements(val.Shape)
	case wire.Cell:
		return len(val)
	case wire.Char:
		return len([]rune(string(val)))
	default:
		return 1
	}
}

func bNumel(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("numel", args, 1, 1); err != nil {
		return nil, err
	}
	return one(wire.Double(numel(args[0]))), nil
}

func bIsEmpty(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("isempty", args, 1, 1); err != nil {
		return nil, err
	}
	return one(wire.Logical(numel(args[0]) == 0)), nil
}

func bClass(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("class", args, 1, 1); err != nil {
		return nil, err
	}
	name, err := e.classOf(args[0])
	if err != nil {
		return nil, err
	}
	return one(wire.Char(name)), nil
}

func bIsa(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("isa", args, 2, 2); err != nil {
		return nil, err
	}
	class, err := charArg("isa", args[1])
	if err != nil {
		return nil, err
	}
	ok, err := e.isa(args[0], class)
	if err != nil {
		return nil, err
	}
	return one(wire.Logical(ok)), nil
}

func bIsObject(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("isobject", args, 1, 1); err != nil {
		return nil, err
	}
	return one(wire.Logical(e.isObject(args[0]))), nil
}

func names(list []string) wire.Cell {
	cell := make(wire.Cell, len(list))
	for i, n := range list {
		cell[i] = wire.Char(n)
	}
	return cell
}

func bFieldnames(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("fieldnames", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case wire.Struct:
		return one(names(v.SortedKeys())), nil
	case wire.Handle:
		_, target, err := e.resolve(v)
		if err != nil {
			return nil, err
		}
		list, err := e.propNames(target)
		if err != nil {
			return nil, err
		}
		return one(names(list)), nil
	}
	return nil, badArgument("fieldnames", "expected a struct or object, got %s", wire.ClassOf(args[0]))
}

func bMethods(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("methods", args, 1, 1); err != nil {
		return nil, err
	}
	switch v := args[0].(type) {
	case wire.Char:
		cls, ok := e.catalog.Class(string(v))
		if !ok {
			return nil, undefinedFunction(string(v))
		}
		return one(names(cls.MethodNames())), nil
	case wire.Handle:
		obj, _, err := e.resolve(v)
		if err != nil {
			return nil, err
		}
		return one(names(obj.methodNames())), nil
	}
	return nil, badArgument("methods", "expected a class name or object, got %s", wire.ClassOf(args[0]))
}

func bStruct(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if len(args)%2 != 0 {
		return nil, badArgument("struct", "arguments must be name/value pairs")
	}
	st := make(wire.Struct, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		name, err := charArg("struct", args[i])
		if err != nil {
			return nil, err
		}
		st[name] = args[i+1]
	}
	return one(st), nil
}

func bCell(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("cell", args, 1, 1); err != nil {
		return nil, err
	}
	n, err := scalarArg("cell", args[0])
	if err != nil {
		return nil, err
	}
	cell := make(wire.Cell, int(n))
	for i := range cell {
		cell[i] = wire.Empty{}
	}
	return one(cell), nil
}

// bFeval calls a function given by name, engine function reference or host
// function value.
func bFeval(ctx context.Context, e *Engine, args []wire.Value, nargout int) ([]wire.Value, error) {
	if len(args) == 0 {
		return nil, badArgument("feval", "expected a function")
	}
	switch f := args[0].(type) {
	case wire.Char:
		return e.call(ctx, string(f), args[1:], nargout)
	case wire.FuncRef:
		return e.Invoke(ctx, f.Name, f.Receiver, args[1:], nargout)
	case wire.HostFunc:
		routed := append([]wire.Value{wire.Char(f.ID)}, args[1:]...)
		return e.call(ctx, f.Adapter, routed, nargout)
	}
	return nil, badArgument("feval", "expected a function, got %s", wire.ClassOf(args[0]))
}

func bDeal(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	return slices.Clone(args), nil
}

func bNoop(context.Context, *Engine, []wire.Value, int) ([]wire.Value, error) {
	return nil, nil
}

func bGetMethodRefs(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("get_method_refs", args, 1, 2); err != nil {
		return nil, err
	}
	name, err := charArg("get_method_refs", args[0])
	if err != nil {
		return nil, err
	}
	ref := wire.FuncRef{Name: name}
	if len(args) == 2 {
		h, err := handleArg("get_method_refs", args[1])
		if err != nil {
			return nil, err
		}
		obj, _, err := e.resolve(h)
		if err != nil {
			return nil, err
		}
		if _, ok := e.method(obj, name); !ok {
			return nil, undefinedFunction(obj.className + "." + name)
		}
		ref.Receiver = &h
	}
	return one(ref), nil
}

func bStr2func(_ context.Context, _ *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("str2func", args, 1, 1); err != nil {
		return nil, err
	}
	name, err := charArg("str2func", args[0])
	if err != nil {
		return nil, err
	}
	return one(wire.FuncRef{Name: strings.TrimPrefix(name, "@")}), nil
}

func bDelete(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("delete", args, 1, 1); err != nil {
		return nil, err
	}
	h, err := handleArg("delete", args[0])
	if err != nil {
		return nil, err
	}
	return nil, e.deleteObject(h)
}

func bThinwrap(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("thinwrap", args, 1, 1); err != nil {
		return nil, err
	}
	h, err := handleArg("thinwrap", args[0])
	if err != nil {
		return nil, err
	}
	tw, err := e.wrap(h)
	if err != nil {
		return nil, err
	}
	return one(tw), nil
}

// bMakeIndirect stores its argument in a fresh global and returns the
// indirect string naming it.
func bMakeIndirect(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("make_indirect", args, 1, 1); err != nil {
		return nil, err
	}
	name := e.names.Generate()
	if len(name) > indirectNameLength {
		name = name[len(name)-indirectNameLength:]
	}
	name += strings.Repeat("_", indirectNameLength-len(name))

	e.mu.Lock()
	e.globals[name] = args[0]
	e.mu.Unlock()
	return one(wire.Char(IndirectPrefix + name)), nil
}

// hostCall runs fn against the attached host, within the callback depth
// limit.
func (e *Engine) hostCall(id string, fn func(cb session.Callbacks) (wire.Value, error)) ([]wire.Value, error) {
	cb, err := e.host()
	if err != nil {
		return nil, err
	}
	release, err := e.depth.Enter(id)
	if err != nil {
		return nil, err
	}
	defer release()

	e.logger.Debug("host callback", "id", id, "depth", e.depth.Current())
	v, err := fn(cb)
	if err != nil {
		return nil, hostError(id, err)
	}
	if v == nil {
		v = wire.Empty{}
	}
	return one(v), nil
}

func bInvokeByID(keywords bool) builtinFunc {
	return func(ctx context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
		lo := 1
		if keywords {
			lo = 2
		}
		if err := nargs("invoke_by_id", args, lo, -1); err != nil {
			return nil, err
		}
		id, err := charArg("invoke_by_id", args[0])
		if err != nil {
			return nil, err
		}
		if keywords {
			if _, ok := args[len(args)-1].(wire.Struct); !ok {
				return nil, badArgument("invoke_by_id_kw", "last argument must be a struct")
			}
		}
		return e.hostCall(id, func(cb session.Callbacks) (wire.Value, error) {
			return cb.InvokeByID(ctx, id, args[1:], keywords)
		})
	}
}

func bCallObjMethod(ctx context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("call_obj_method", args, 2, -1); err != nil {
		return nil, err
	}
	key, err := charArg("call_obj_method", args[0])
	if err != nil {
		return nil, err
	}
	method, err := charArg("call_obj_method", args[1])
	if err != nil {
		return nil, err
	}
	return e.hostCall(key, func(cb session.Callbacks) (wire.Value, error) {
		return cb.CallObjectMethod(ctx, key, method, args[2:])
	})
}

func bGetObjProp(ctx context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("get_obj_prop", args, 2, 2); err != nil {
		return nil, err
	}
	key, err := charArg("get_obj_prop", args[0])
	if err != nil {
		return nil, err
	}
	name, err := charArg("get_obj_prop", args[1])
	if err != nil {
		return nil, err
	}
	return e.hostCall(key, func(cb session.Callbacks) (wire.Value, error) {
		return cb.ObjectProperty(ctx, key, name)
	})
}

func bRemoveObject(ctx context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("remove_object", args, 1, 1); err != nil {
		return nil, err
	}
	key, err := charArg("remove_object", args[0])
	if err != nil {
		return nil, err
	}
	_, err = e.hostCall(key, func(cb session.Callbacks) (wire.Value, error) {
		return nil, cb.RemoveObject(ctx, key)
	})
	return nil, err
}

func bDisplayString(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("display_string", args, 1, 1); err != nil {
		return nil, err
	}
	s, err := e.display(args[0])
	if err != nil {
		return nil, err
	}
	return one(wire.Char(s)), nil
}

// display renders a value the way the engine prints it. Object headers
// carry hyperlink markup.
func (e *Engine) display(v wire.Value) (string, error) {
	h, ok := v.(wire.Handle)
	if !ok {
		return e.formatValue(v), nil
	}
	obj, target, err := e.resolve(h)
	if err != nil {
		return "", err
	}
	list, err := e.propNames(target)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "  <a href=\"matlab:helpPopup %s\" style=\"font-weight:bold\">%s</a> with properties:\n", obj.className, obj.className)
	for _, name := range list {
		pv, err := e.getProp(target, name)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\n    %s: %s", name, e.formatValue(pv))
	}
	return b.String(), nil
}

func (e *Engine) formatValue(v wire.Value) string {
	switch val := v.(type) {
	case wire.Empty:
		return "[]"
	case wire.Double:
		return formatNumber(float64(val))
	case wire.Logical:
		if val {
			return "1"
		}
		return "0"
	case wire.Complex:
		return fmt.Sprintf("%s%+gi", formatNumber(real(val)), imag(val))
	case wire.Char:
		return "'" + string(val) + "'"
	case wire.Buffer:
		a, err := val.ToArray()
		if err != nil {
			return "[buffer]"
		}
		return e.formatValue(a)
	case wire.Array:
		if isScalar(val) {
			return formatNumber(val.Data[0])
		}
		if len(val.Shape) == 2 && val.Shape[0] == 1 && len(val.Data) <= 10 {
			parts := make([]string, len(val.Data))
			for i, x := range val.Data {
				parts[i] = formatNumber(x)
			}
			return "[" + strings.Join(parts, " ") + "]"
		}
		return fmt.Sprintf("[%s %s]", dims(val.Shape), val.Class)
	case wire.Cell:
		return fmt.Sprintf("{1x%d cell}", len(val))
	case wire.Struct:
		return "[1x1 struct]"
	case wire.Handle:
		name, err := e.classOf(val)
		if err != nil {
			return "[deleted object]"
		}
		return "[1x1 " + name + "]"
	case wire.FuncRef:
		return "@" + val.Name
	case wire.HostFunc:
		return "@" + val.Adapter
	}
	return fmt.Sprintf("%v", v)
}

func formatNumber(f float64) string {
	return fmt.Sprintf("%g", f)
}

func dims(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "x")
}
