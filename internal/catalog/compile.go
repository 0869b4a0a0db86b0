package catalog

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/enginebridge/internal/wire"
)

// Compile converts a CUE value (already unified with the schema) into a
// Catalog. Classes are read from the top-level "class" struct and functions
// from "function", both in declaration order.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cat := &Catalog{}

	classesVal := v.LookupPath(cue.ParsePath("class"))
	if classesVal.Exists() {
		iter, err := classesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			cls, err := compileClass(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			cat.Classes = append(cat.Classes, cls)
		}
	}

	funcsVal := v.LookupPath(cue.ParsePath("function"))
	if funcsVal.Exists() {
		iter, err := funcsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fn, err := compileFunction(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			cat.Functions = append(cat.Functions, fn)
		}
	}

	cat.index()
	return cat, nil
}

func compileClass(name string, v cue.Value) (*Class, error) {
	cls := &Class{Name: name, Kind: KindValue}

	kind, err := stringField(v, "kind")
	if err != nil {
		return nil, err
	}
	if kind != "" {
		cls.Kind = Kind(kind)
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if propsVal.Exists() {
		iter, err := propsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			def, err := Value(iter.Value())
			if err != nil {
				return nil, err
			}
			cls.Properties = append(cls.Properties, Property{
				Name:    iter.Selector().Unquoted(),
				Default: def,
			})
		}
	}

	methodsVal := v.LookupPath(cue.ParsePath("methods"))
	if methodsVal.Exists() {
		iter, err := methodsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			m, err := compileMethod(name, iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			cls.Methods = append(cls.Methods, m)
		}
	}

	return cls, nil
}

func compileMethod(class, name string, v cue.Value) (Method, error) {
	m := Method{Name: name}

	sig, err := compileSignature(v)
	if err != nil {
		return m, err
	}
	m.Signature = sig

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return m, &CompileError{
			Field:   fmt.Sprintf("class.%s.methods.%s.body", class, name),
			Message: "method body is required",
			Pos:     v.Pos(),
		}
	}

	op, err := stringField(bodyVal, "op")
	if err != nil {
		return m, err
	}
	m.Body.Op = Op(op)
	if m.Body.Field, err = stringField(bodyVal, "field"); err != nil {
		return m, err
	}
	if m.Body.Builtin, err = stringField(bodyVal, "builtin"); err != nil {
		return m, err
	}

	fieldsVal := bodyVal.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		list, err := fieldsVal.List()
		if err != nil {
			return m, formatCUEError(err)
		}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return m, formatCUEError(err)
			}
			m.Body.Fields = append(m.Body.Fields, s)
		}
	}

	if err := checkBody(m.Body); err != nil {
		return m, &CompileError{
			Field:   fmt.Sprintf("class.%s.methods.%s.body", class, name),
			Message: err.Error(),
			Pos:     bodyVal.Pos(),
		}
	}
	return m, nil
}

func checkBody(b Body) error {
	switch b.Op {
	case OpGet, OpSet, OpAdd, OpDelegate, OpDelegateAssign:
		if b.Field == "" {
			return fmt.Errorf("op %q requires field", b.Op)
		}
	case OpTuple:
		if len(b.Fields) == 0 {
			return fmt.Errorf("op %q requires fields", b.Op)
		}
	case OpBuiltin:
		if b.Builtin == "" {
			return fmt.Errorf("op %q requires builtin", b.Op)
		}
	case OpAddProp:
	default:
		return fmt.Errorf("unknown op %q", b.Op)
	}
	return nil
}

func compileFunction(name string, v cue.Value) (*Function, error) {
	fn := &Function{Name: name}
	sig, err := compileSignature(v)
	if err != nil {
		return nil, err
	}
	fn.Signature = sig
	if fn.Builtin, err = stringField(v, "builtin"); err != nil {
		return nil, err
	}
	if fn.Builtin == "" {
		return nil, &CompileError{
			Field:   fmt.Sprintf("function.%s.builtin", name),
			Message: "builtin is required",
			Pos:     v.Pos(),
		}
	}
	return fn, nil
}

func compileSignature(v cue.Value) (Signature, error) {
	var sig Signature

	outVal := v.LookupPath(cue.ParsePath("outputs"))
	if outVal.Exists() {
		outVal, _ = outVal.Default()
		n, err := outVal.Int64()
		if err != nil {
			return sig, formatCUEError(err)
		}
		sig.Outputs = int(n)
	} else {
		sig.Outputs = 1
	}

	varVal := v.LookupPath(cue.ParsePath("varargout"))
	if varVal.Exists() {
		varVal, _ = varVal.Default()
		b, err := varVal.Bool()
		if err != nil {
			return sig, formatCUEError(err)
		}
		sig.Varargout = b
	}
	return sig, nil
}

// stringField reads an optional string field, resolving defaults.
func stringField(v cue.Value, name string) (string, error) {
	f := v.LookupPath(cue.ParsePath(name))
	if !f.Exists() {
		return "", nil
	}
	f, _ = f.Default()
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// Value converts a concrete CUE value to an engine value.
//
//	null        -> Empty
//	bool        -> Logical
//	number      -> Double
//	string      -> Char
//	[numbers]   -> 1xN double array
//	[other]     -> Cell
//	struct      -> Struct
func Value(v cue.Value) (wire.Value, error) {
	v, _ = v.Default()
	switch v.Kind() {
	case cue.NullKind:
		return wire.Empty{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return wire.Logical(b), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return wire.Double(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return wire.Char(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var elems []wire.Value
		numeric := true
		for iter.Next() {
			e, err := Value(iter.Value())
			if err != nil {
				return nil, err
			}
			if _, ok := e.(wire.Double); !ok {
				numeric = false
			}
			elems = append(elems, e)
		}
		if numeric {
			data := make([]float64, len(elems))
			for i, e := range elems {
				data[i] = float64(e.(wire.Double))
			}
			return wire.Row(data...), nil
		}
		return wire.Cell(elems), nil
	case cue.StructKind:
		st := wire.Struct{}
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			e, err := Value(iter.Value())
			if err != nil {
				return nil, err
			}
			st[iter.Selector().Unquoted()] = e
		}
		return st, nil
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a catalog error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
