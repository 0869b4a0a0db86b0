package bridge

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/roach88/enginebridge/internal/callback"
	"github.com/roach88/enginebridge/internal/wire"
)

// Encode converts a host value to its engine form.
//
// Rules, first match wins:
//  1. nil -> Empty
//  2. bool -> Logical
//  3. wire.Value -> unchanged
//  4. *Object -> its handle
//  5. *Callable -> function reference
//  6. NDArray -> small integer/logical arrays copied to double, else shared Buffer
//  7. numeric slices and Range -> 1xN double; []any of numbers likewise,
//     otherwise element-wise Cell
//  8. Go numbers -> Double, complex -> Complex
//  9. string -> Char
//  10. ClassFactory, Invoker or func -> registered, HostFunc
//  11. maps with string keys -> Struct
//  12. Tuple (and callback.Results) -> Cell
//  13. other slices and arrays -> element-wise Cell
//
// Anything else fails with an ARGUMENT_ENCODING error.
func (b *Bridge) Encode(ctx context.Context, v any) (wire.Value, error) {
	switch val := v.(type) {
	case nil:
		return wire.Empty{}, nil
	case bool:
		return wire.Logical(val), nil
	case wire.Value:
		return val, nil
	case *Object:
		if val == nil {
			return nil, encodingError(v)
		}
		return val.Handle(), nil
	case *Callable:
		if val == nil {
			return nil, encodingError(v)
		}
		return val.funcRef(ctx)
	case NDArray:
		return b.encodeArray(val)
	case Range:
		return wire.Row(val.Values()...), nil
	case []any:
		return b.encodeList(ctx, val)
	case Tuple:
		return b.encodeCell(ctx, val)
	case callback.Results:
		return b.encodeCell(ctx, val)
	case string:
		return wire.Char(val), nil
	case *callback.ClassFactory:
		if val == nil {
			return nil, encodingError(v)
		}
		return b.encodeCallback(val)
	case callback.Invoker:
		return b.encodeCallback(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return wire.Double(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return wire.Double(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return wire.Double(rv.Float()), nil
	case reflect.Complex64, reflect.Complex128:
		return wire.Complex(rv.Complex()), nil
	case reflect.String:
		return wire.Char(rv.String()), nil
	case reflect.Func:
		if rv.IsNil() {
			return nil, encodingError(v)
		}
		return b.encodeCallback(v)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return b.encodeStruct(ctx, rv)
		}
	case reflect.Slice, reflect.Array:
		if isNumericKind(rv.Type().Elem().Kind()) {
			return encodeNumericSlice(rv), nil
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return b.encodeCell(ctx, items)
	}
	return nil, encodingError(v)
}

// EncodeAll encodes a list of host values.
func (b *Bridge) EncodeAll(ctx context.Context, vs []any) ([]wire.Value, error) {
	out := make([]wire.Value, len(vs))
	for i, v := range vs {
		wv, err := b.Encode(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = wv
	}
	return out, nil
}

func (b *Bridge) encodeArray(a NDArray) (wire.Value, error) {
	class, n, err := classOfSlice(a.Data)
	if err != nil {
		return nil, &Error{Code: ErrCodeArgumentEncoding, Message: err.Error()}
	}
	shape := a.Shape
	if shape == nil {
		shape = []int{1, n}
	}
	if a.Class != "" {
		class = a.Class
	}
	if n < b.opts.SmallArrayLimit && (class.IsInteger() || class == wire.ClassLogical) {
		data, err := a.Float64s()
		if err != nil {
			return nil, &Error{Code: ErrCodeArgumentEncoding, Message: err.Error()}
		}
		return wire.Array{Class: wire.ClassDouble, Shape: slices.Clone(shape), Data: data}, nil
	}
	return wire.Buffer{Class: class, Shape: shape, Data: a.Data}, nil
}

// encodeList applies rule 7 to a heterogeneous list: all numbers make a
// double row, anything else makes a cell.
func (b *Bridge) encodeList(ctx context.Context, items []any) (wire.Value, error) {
	data := make([]float64, 0, len(items))
	for _, item := range items {
		f, ok := asFloat(item)
		if !ok {
			return b.encodeCell(ctx, items)
		}
		data = append(data, f)
	}
	return wire.Row(data...), nil
}

func (b *Bridge) encodeCell(ctx context.Context, items []any) (wire.Value, error) {
	cell := make(wire.Cell, len(items))
	for i, item := range items {
		wv, err := b.Encode(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("cell element %d: %w", i+1, err)
		}
		cell[i] = wv
	}
	return cell, nil
}

func (b *Bridge) encodeStruct(ctx context.Context, rv reflect.Value) (wire.Value, error) {
	st := make(wire.Struct, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		wv, err := b.Encode(ctx, iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		st[key] = wv
	}
	return st, nil
}

func (b *Bridge) encodeCallback(fn any) (wire.Value, error) {
	id, err := b.registry.Register(fn)
	if err != nil {
		return nil, &Error{Code: ErrCodeArgumentEncoding, Message: err.Error()}
	}
	return wire.HostFunc{ID: id, Adapter: b.opts.AdapterName}, nil
}

func encodeNumericSlice(rv reflect.Value) wire.Value {
	data := make([]float64, rv.Len())
	for i := range data {
		f, _ := asFloat(rv.Index(i).Interface())
		data[i] = f
	}
	return wire.Row(data...)
}

// asFloat reports whether v is a Go number (not bool) and converts it.
func asFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// Decode converts an engine value to its host form.
//
// Rules, first match wins:
//  1. Cell -> Tuple
//  2. Array, Buffer -> NDArray
//  3. Struct -> map[string]any
//  4. Char that is a global sentinel -> the decoded global; other Char -> string
//  5. Handle the engine reports as an object -> *Object
//  6. FuncRef the engine reports as a function handle -> *Callable
//  7. Logical -> bool, Double -> float64, Complex -> complex128, Empty -> nil;
//     anything else is returned unchanged
func (b *Bridge) Decode(ctx context.Context, v wire.Value) (any, error) {
	switch val := v.(type) {
	case wire.Cell:
		out := make(Tuple, len(val))
		for i, e := range val {
			d, err := b.Decode(ctx, e)
			if err != nil {
				return nil, fmt.Errorf("cell element %d: %w", i+1, err)
			}
			out[i] = d
		}
		return out, nil
	case wire.Array:
		return NDArray{Class: val.Class, Shape: val.Shape, Data: val.Data}, nil
	case wire.Buffer:
		return NDArray{Class: val.Class, Shape: val.Shape, Data: val.Data}, nil
	case wire.Struct:
		out := make(map[string]any, len(val))
		for _, k := range val.SortedKeys() {
			d, err := b.Decode(ctx, val[k])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = d
		}
		return out, nil
	case wire.Char:
		if name, ok := b.sentinelName(string(val)); ok {
			g, err := b.engine.ReadGlobal(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("resolve sentinel %q: %w", name, err)
			}
			return b.Decode(ctx, g)
		}
		return string(val), nil
	case wire.Handle:
		isObj, err := b.engine.IsObject(ctx, val)
		if err != nil {
			return nil, err
		}
		if isObj {
			return b.newObject(ctx, val)
		}
		return val, nil
	case wire.FuncRef:
		isFn, err := b.engine.IsFunctionHandle(ctx, val)
		if err != nil {
			return nil, err
		}
		if isFn {
			ref := val
			return &Callable{bridge: b, name: val.Name, ref: &ref}, nil
		}
		return val, nil
	case wire.Logical:
		return bool(val), nil
	case wire.Double:
		return float64(val), nil
	case wire.Complex:
		return complex128(val), nil
	case wire.Empty, nil:
		return nil, nil
	default:
		return v, nil
	}
}

// DecodeAll decodes a list of engine values.
func (b *Bridge) DecodeAll(ctx context.Context, vs []wire.Value) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		d, err := b.Decode(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i+1, err)
		}
		out[i] = d
	}
	return out, nil
}

// sentinelName reports whether s is an indirection sentinel and returns the
// global it names. Only the prefix and exact rune count are checked, so a
// genuine string of that shape is indistinguishable from a sentinel.
func (b *Bridge) sentinelName(s string) (string, bool) {
	if b.opts.SentinelPrefix == "" || b.opts.SentinelLength <= 0 {
		return "", false
	}
	if utf8.RuneCountInString(s) != b.opts.SentinelLength || !strings.HasPrefix(s, b.opts.SentinelPrefix) {
		return "", false
	}
	return s[len(b.opts.SentinelPrefix):], true
}

// flattenKwargs turns keyword args into trailing name/value pairs: ordered
// keywords first, then map entries sorted by name.
func flattenKwargs(ordered []Kwarg, kwargs map[string]any) []any {
	out := make([]any, 0, 2*(len(ordered)+len(kwargs)))
	for _, k := range ordered {
		out = append(out, k.Name, k.Value)
	}
	names := make([]string, 0, len(kwargs))
	for k := range kwargs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		out = append(out, k, kwargs[k])
	}
	return out
}
