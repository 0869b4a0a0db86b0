package engine

import (
	"context"
	"slices"

	"github.com/roach88/enginebridge/internal/wire"
)

// subscript is one level of a subscript chain: "()", "{}" or ".".
type subscript struct {
	kind  string
	index []int  // 1-based, for "()" and "{}"
	field string // for "."
}

// parseSubscripts accepts a single {type, subs} struct or a cell of them.
func parseSubscripts(name string, v wire.Value) ([]subscript, error) {
	switch s := v.(type) {
	case wire.Struct:
		sub, err := parseSubscript(name, s)
		if err != nil {
			return nil, err
		}
		return []subscript{sub}, nil
	case wire.Cell:
		out := make([]subscript, 0, len(s))
		for _, e := range s {
			st, ok := e.(wire.Struct)
			if !ok {
				return nil, badArgument(name, "subscript chain must hold structs")
			}
			sub, err := parseSubscript(name, st)
			if err != nil {
				return nil, err
			}
			out = append(out, sub)
		}
		if len(out) == 0 {
			return nil, badArgument(name, "empty subscript chain")
		}
		return out, nil
	}
	return nil, badArgument(name, "invalid subscript of class %s", wire.ClassOf(v))
}

func parseSubscript(name string, st wire.Struct) (subscript, error) {
	kind, ok := st["type"].(wire.Char)
	if !ok {
		return subscript{}, badArgument(name, "subscript type must be char")
	}
	sub := subscript{kind: string(kind)}
	switch sub.kind {
	case ".":
		f, ok := st["subs"].(wire.Char)
		if !ok {
			return subscript{}, badArgument(name, "field subscript must be char")
		}
		sub.field = string(f)
	case "()", "{}":
		var subs []wire.Value
		switch v := st["subs"].(type) {
		case wire.Cell:
			subs = v
		case nil:
			return subscript{}, badArgument(name, "missing subscript indices")
		default:
			subs = []wire.Value{v}
		}
		for _, s := range subs {
			f, err := scalarArg(name, s)
			if err != nil {
				return subscript{}, err
			}
			if f < 1 || f != float64(int(f)) {
				return subscript{}, badArgument(name, "index must be a positive integer, got %g", f)
			}
			sub.index = append(sub.index, int(f))
		}
		if len(sub.index) == 0 || len(sub.index) > 2 {
			return subscript{}, badArgument(name, "expected 1 or 2 indices")
		}
	default:
		return subscript{}, badArgument(name, "unknown subscript type %q", sub.kind)
	}
	return sub, nil
}

// linear converts 1-based subscripts to a 0-based linear index.
func linear(name string, index []int, shape []int, n int) (int, error) {
	i := index[0] - 1
	if len(index) == 2 {
		rows := 1
		if len(shape) > 0 {
			rows = shape[0]
		}
		if index[0] > rows {
			return 0, badArgument(name, "index (%d,%d) exceeds dimensions %v", index[0], index[1], shape)
		}
		i = (index[0] - 1) + (index[1]-1)*rows
	}
	if i >= n {
		return 0, badArgument(name, "index %d exceeds %d elements", i+1, n)
	}
	return i, nil
}

func bSubsref(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("subsref", args, 2, 2); err != nil {
		return nil, err
	}
	subs, err := parseSubscripts("subsref", args[1])
	if err != nil {
		return nil, err
	}
	v := args[0]
	for _, s := range subs {
		if v, err = e.subsref(v, s); err != nil {
			return nil, err
		}
	}
	return one(v), nil
}

func (e *Engine) subsref(v wire.Value, s subscript) (wire.Value, error) {
	const name = "subsref"
	if s.kind == "." {
		switch val := v.(type) {
		case wire.Struct:
			f, ok := val[s.field]
			if !ok {
				return nil, noProperty("struct", s.field)
			}
			return f, nil
		case wire.Handle:
			_, target, err := e.resolve(val)
			if err != nil {
				return nil, err
			}
			return e.getProp(target, s.field)
		}
		return nil, badArgument(name, "field access on %s", wire.ClassOf(v))
	}

	switch val := v.(type) {
	case wire.Cell:
		i, err := linear(name, s.index, []int{1, len(val)}, len(val))
		if err != nil {
			return nil, err
		}
		if s.kind == "{}" {
			return val[i], nil
		}
		return wire.Cell{val[i]}, nil
	case wire.Char:
		runes := []rune(string(val))
		i, err := linear(name, s.index, []int{1, len(runes)}, len(runes))
		if err != nil {
			return nil, err
		}
		return wire.Char(string(runes[i])), nil
	}
	if s.kind == "{}" {
		return nil, badArgument(name, "brace indexing on %s", wire.ClassOf(v))
	}
	if _, ok := v.(wire.Handle); ok {
		if _, err := linear(name, s.index, []int{1, 1}, 1); err != nil {
			return nil, err
		}
		return v, nil
	}
	a, err := toArray(name, v)
	if err != nil {
		return nil, err
	}
	i, err := linear(name, s.index, a.Shape, len(a.Data))
	if err != nil {
		return nil, err
	}
	return fromArray(wire.Array{Class: a.Class, Shape: []int{1, 1}, Data: []float64{a.Data[i]}}), nil
}

func bSubsasgn(_ context.Context, e *Engine, args []wire.Value, _ int) ([]wire.Value, error) {
	if err := nargs("subsasgn", args, 3, 3); err != nil {
		return nil, err
	}
	subs, err := parseSubscripts("subsasgn", args[1])
	if err != nil {
		return nil, err
	}
	if len(subs) != 1 {
		return nil, badArgument("subsasgn", "chained assignment is not supported")
	}
	v, err := e.subsasgn(args[0], subs[0], args[2])
	if err != nil {
		return nil, err
	}
	return one(v), nil
}

// subsasgn returns base with the subscripted element replaced.
func (e *Engine) subsasgn(base wire.Value, s subscript, v wire.Value) (wire.Value, error) {
	const name = "subsasgn"
	if s.kind == "." {
		switch val := base.(type) {
		case wire.Struct, nil, wire.Empty:
			st := wire.Struct{}
			if old, ok := val.(wire.Struct); ok {
				for k, f := range old {
					st[k] = f
				}
			}
			st[s.field] = v
			return st, nil
		case wire.Handle:
			_, target, err := e.resolve(val)
			if err != nil {
				return nil, err
			}
			nh, err := e.setProp(target, s.field, v)
			if err != nil {
				return nil, err
			}
			if target != val {
				return val, nil
			}
			return nh, nil
		}
		return nil, badArgument(name, "field assignment on %s", wire.ClassOf(base))
	}

	if cell, ok := base.(wire.Cell); ok {
		out := slices.Clone(cell)
		i := s.index[len(s.index)-1] - 1
		if len(s.index) == 2 && s.index[0] != 1 {
			return nil, badArgument(name, "cells are 1xN")
		}
		for len(out) <= i {
			out = append(out, wire.Empty{})
		}
		if s.kind == "()" {
			if c, ok := v.(wire.Cell); ok && len(c) == 1 {
				v = c[0]
			}
		}
		out[i] = v
		return out, nil
	}
	if s.kind == "{}" {
		return nil, badArgument(name, "brace assignment on %s", wire.ClassOf(base))
	}

	a, err := toArray(name, base)
	if err != nil {
		return nil, err
	}
	x, err := scalarArg(name, v)
	if err != nil {
		return nil, err
	}
	data := slices.Clone(a.Data)
	shape := slices.Clone(a.Shape)
	i := s.index[0] - 1
	if len(s.index) == 2 {
		if i, err = linear(name, s.index, shape, len(data)); err != nil {
			return nil, err
		}
	}
	if i >= len(data) {
		isRow := len(shape) == 2 && (shape[0] == 1 || len(data) == 0)
		if !isRow || len(s.index) == 2 {
			return nil, badArgument(name, "index %d exceeds %d elements", i+1, len(data))
		}
		for len(data) <= i {
			data = append(data, 0)
		}
		shape = []int{1, len(data)}
	}
	data[i] = roundTo(a.Class, x)
	return fromArray(wire.Array{Class: a.Class, Shape: shape, Data: data}), nil
}
