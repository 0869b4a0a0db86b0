package callback

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Invoker is a host callable that converts its own arguments.
// A *ClassFactory is an Invoker.
type Invoker interface {
	Invoke(ctx context.Context, args []any, kwargs map[string]any) (any, error)
}

// Results carries the return values of a host callable that returned more
// than one value (not counting a trailing error).
type Results []any

// Floats is implemented by host array values that can be passed where a
// numeric slice parameter is expected.
type Floats interface {
	Float64s() ([]float64, error)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	kwargsType  = reflect.TypeOf(map[string]any(nil))
)

// checkCallable reports whether fn can be registered.
func checkCallable(fn any) error {
	if _, ok := fn.(Invoker); ok {
		return nil
	}
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return &Error{Code: ErrCodeNotCallable, Message: fmt.Sprintf("%T is not a function", fn)}
	}
	if reflect.ValueOf(fn).IsNil() {
		return &Error{Code: ErrCodeNotCallable, Message: "nil function"}
	}
	return nil
}

// call invokes a registered callable.
func call(ctx context.Context, fn any, args []any, kwargs map[string]any) (any, error) {
	if inv, ok := fn.(Invoker); ok {
		return inv.Invoke(ctx, args, kwargs)
	}
	return callValue(ctx, reflect.ValueOf(fn), args, kwargs)
}

// callValue calls a function or bound method value with argument conversion.
//
// Parameter conventions:
//   - a leading context.Context receives ctx
//   - a trailing map[string]any (non-variadic) receives keyword args;
//     otherwise keyword args are appended as sorted name/value pairs
//   - a trailing error result is returned as the call's error
//   - more than one remaining result is returned as Results
func callValue(ctx context.Context, fn reflect.Value, args []any, kwargs map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Code: ErrCodePanic, Message: fmt.Sprint(r)}
		}
	}()

	ft := fn.Type()
	params := ft.NumIn()
	in := make([]reflect.Value, 0, params+len(args))

	first := 0
	if params > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		first = 1
	}

	last := params
	acceptsKwargs := !ft.IsVariadic() && params > first && ft.In(params-1) == kwargsType
	if acceptsKwargs {
		last = params - 1
	} else if len(kwargs) > 0 {
		args = append(append([]any(nil), args...), flattenKwargs(kwargs)...)
	}

	fixed := last - first
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) > fixed) {
		return nil, argError("expected %d arguments, got %d", fixed, len(args))
	}

	for i := 0; i < fixed; i++ {
		v, err := convertArg(args[i], ft.In(first+i))
		if err != nil {
			return nil, argError("argument %d: %v", i+1, err)
		}
		in = append(in, v)
	}
	if ft.IsVariadic() {
		elem := ft.In(params - 1).Elem()
		for i := fixed; i < len(args); i++ {
			v, err := convertArg(args[i], elem)
			if err != nil {
				return nil, argError("argument %d: %v", i+1, err)
			}
			in = append(in, v)
		}
	}
	if acceptsKwargs {
		kw := kwargs
		if kw == nil {
			kw = map[string]any{}
		}
		in = append(in, reflect.ValueOf(kw))
	}

	return collectResults(fn.Call(in), ft)
}

func collectResults(out []reflect.Value, ft reflect.Type) (any, error) {
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if errVal := out[n-1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		res := make(Results, len(out))
		for i, v := range out {
			res[i] = v.Interface()
		}
		return res, nil
	}
}

func flattenKwargs(kwargs map[string]any) []any {
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, kwargs[k])
	}
	return out
}

// convertArg converts a decoded host value to the parameter type t.
func convertArg(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %v", t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	switch {
	case isNumeric(rv.Kind()) && isNumeric(t.Kind()):
		return convertNumber(rv, t)

	case t.Kind() == reflect.Bool && isNumeric(rv.Kind()):
		return reflect.ValueOf(rv.Convert(reflect.TypeOf(float64(0))).Float() != 0), nil

	case t.Kind() == reflect.Slice:
		if fl, ok := v.(Floats); ok {
			data, err := fl.Float64s()
			if err != nil {
				return reflect.Value{}, err
			}
			items := make([]any, len(data))
			for i, f := range data {
				items[i] = f
			}
			return convertSlice(items, t)
		}
		if rv.Kind() == reflect.Slice {
			items := make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
			return convertSlice(items, t)
		}

	case t.Kind() == reflect.Map && t.Key().Kind() == reflect.String &&
		rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		m := reflect.MakeMapWithSize(t, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, err := convertArg(iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("value for key %q: %v", iter.Key().String(), err)
			}
			m.SetMapIndex(reflect.ValueOf(iter.Key().String()).Convert(t.Key()), elem)
		}
		return m, nil
	}

	return reflect.Value{}, fmt.Errorf("cannot use %T as %v", v, t)
}

func convertSlice(items []any, t reflect.Type) (reflect.Value, error) {
	slice := reflect.MakeSlice(t, len(items), len(items))
	for i, item := range items {
		elem, err := convertArg(item, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %v", i, err)
		}
		slice.Index(i).Set(elem)
	}
	return slice, nil
}

func convertNumber(rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Convert(t), nil
	}
	// integer target: engine numbers arrive as float64 and must be integral
	if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return reflect.Value{}, fmt.Errorf("%v is not an integer", f)
		}
	}
	return rv.Convert(t), nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
