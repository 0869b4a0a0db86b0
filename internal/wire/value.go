package wire

import (
	"bytes"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface representing the engine's native value forms.
// Only the types declared in this file implement it.
type Value interface {
	wireValue() // Sealed - only these types implement it
}

// Class names an engine element type or container class.
type Class string

const (
	ClassDouble         Class = "double"
	ClassSingle         Class = "single"
	ClassLogical        Class = "logical"
	ClassChar           Class = "char"
	ClassInt8           Class = "int8"
	ClassUint8          Class = "uint8"
	ClassInt16          Class = "int16"
	ClassUint16         Class = "uint16"
	ClassInt32          Class = "int32"
	ClassUint32         Class = "uint32"
	ClassInt64          Class = "int64"
	ClassUint64         Class = "uint64"
	ClassCell           Class = "cell"
	ClassStruct         Class = "struct"
	ClassFunctionHandle Class = "function_handle"
)

// IsInteger reports whether c is one of the integer element classes.
func (c Class) IsInteger() bool {
	switch c {
	case ClassInt8, ClassUint8, ClassInt16, ClassUint16,
		ClassInt32, ClassUint32, ClassInt64, ClassUint64:
		return true
	}
	return false
}

// IsFloating reports whether c is a floating-point element class.
func (c Class) IsFloating() bool {
	return c == ClassDouble || c == ClassSingle
}

// Empty is the 0x0 double array. Host nil encodes to Empty.
type Empty struct{}

func (Empty) wireValue() {}

// Logical is a scalar logical value.
type Logical bool

func (Logical) wireValue() {}

// Double is a scalar double, the engine's general-purpose numeric type.
type Double float64

func (Double) wireValue() {}

// Complex is a scalar complex double.
type Complex complex128

func (Complex) wireValue() {}

// Char is a character row vector (text).
type Char string

func (Char) wireValue() {}

// Array is a homogeneous numeric array owned by the wire value.
// Data holds NumElements(Shape) elements in column-major order.
type Array struct {
	Class Class
	Shape []int
	Data  []float64
}

func (Array) wireValue() {}

// Len returns the number of elements in the array.
func (a Array) Len() int {
	return len(a.Data)
}

// Buffer is a numeric array backed by host memory that is shared, not
// copied, across the boundary. Data is a typed Go slice ([]float64,
// []float32, []int8 ... []uint64, []bool).
type Buffer struct {
	Class Class
	Shape []int
	Data  any
}

func (Buffer) wireValue() {}

// Float64s copies the buffer contents into a new []float64.
func (b Buffer) Float64s() ([]float64, error) {
	switch d := b.Data.(type) {
	case []float64:
		return slices.Clone(d), nil
	case []float32:
		return convertSlice(d), nil
	case []int:
		return convertSlice(d), nil
	case []int8:
		return convertSlice(d), nil
	case []uint8:
		return convertSlice(d), nil
	case []int16:
		return convertSlice(d), nil
	case []uint16:
		return convertSlice(d), nil
	case []int32:
		return convertSlice(d), nil
	case []uint32:
		return convertSlice(d), nil
	case []int64:
		return convertSlice(d), nil
	case []uint64:
		return convertSlice(d), nil
	case []bool:
		out := make([]float64, len(d))
		for i, v := range d {
			if v {
				out[i] = 1
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported buffer element type %T", b.Data)
	}
}

// ToArray materializes the buffer as an owned Array of the same class.
func (b Buffer) ToArray() (Array, error) {
	data, err := b.Float64s()
	if err != nil {
		return Array{}, err
	}
	return Array{Class: b.Class, Shape: slices.Clone(b.Shape), Data: data}, nil
}

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func convertSlice[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// Cell is an ordered heterogeneous container (1xN).
type Cell []Value

func (Cell) wireValue() {}

// Struct is a named-field container.
// Use SortedKeys() for deterministic iteration.
type Struct map[string]Value

func (Struct) wireValue() {}

// Handle is an opaque reference to a live engine object.
type Handle struct {
	ID uint64
}

func (Handle) wireValue() {}

// FuncRef is an engine function reference. Receiver is set when the
// reference was resolved as a method bound to an object.
type FuncRef struct {
	Name     string
	Receiver *Handle
}

func (FuncRef) wireValue() {}

// HostFunc asks the engine to call back into the host through the adapter
// function named Adapter, passing ID as the first argument.
type HostFunc struct {
	ID      string
	Adapter string
}

func (HostFunc) wireValue() {}

// Row creates a 1xN double array.
func Row(vals ...float64) Array {
	return Array{Class: ClassDouble, Shape: []int{1, len(vals)}, Data: vals}
}

// NumElements returns the element count implied by a shape.
func NumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// ClassOf returns the engine class name for a non-object value.
// Handles report "" because their class lives in the engine.
func ClassOf(v Value) Class {
	switch val := v.(type) {
	case Empty, Double, Complex:
		return ClassDouble
	case Logical:
		return ClassLogical
	case Char:
		return ClassChar
	case Array:
		return val.Class
	case Buffer:
		return val.Class
	case Cell:
		return ClassCell
	case Struct:
		return ClassStruct
	case FuncRef, HostFunc:
		return ClassFunctionHandle
	default:
		return ""
	}
}

// Equal reports whether two values have the same canonical form.
func Equal(a, b Value) bool {
	ab, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (s Struct) SortedKeys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
// Go's default string comparison uses UTF-8 which produces a different order
// for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	return slices.Compare(a16, b16)
}
