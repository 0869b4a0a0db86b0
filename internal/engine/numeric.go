package engine

import (
	"math"
	"slices"

	"github.com/roach88/enginebridge/internal/wire"
)

// toArray views a numeric or logical value as an array.
func toArray(name string, v wire.Value) (wire.Array, error) {
	switch val := v.(type) {
	case wire.Double:
		return wire.Array{Class: wire.ClassDouble, Shape: []int{1, 1}, Data: []float64{float64(val)}}, nil
	case wire.Logical:
		f := 0.0
		if val {
			f = 1
		}
		return wire.Array{Class: wire.ClassLogical, Shape: []int{1, 1}, Data: []float64{f}}, nil
	case wire.Empty:
		return wire.Array{Class: wire.ClassDouble, Shape: []int{0, 0}}, nil
	case wire.Array:
		return val, nil
	case wire.Buffer:
		a, err := val.ToArray()
		if err != nil {
			return wire.Array{}, badArgument(name, "%v", err)
		}
		return a, nil
	default:
		return wire.Array{}, badArgument(name, "operand of class %s is not numeric", wire.ClassOf(v))
	}
}

// fromArray returns scalars as Double or Logical and 0x0 doubles as Empty.
func fromArray(a wire.Array) wire.Value {
	n := wire.NumElements(a.Shape)
	switch {
	case n == 1 && a.Class == wire.ClassDouble:
		return wire.Double(a.Data[0])
	case n == 1 && a.Class == wire.ClassLogical:
		return wire.Logical(a.Data[0] != 0)
	case n == 0 && a.Class == wire.ClassDouble && len(a.Shape) == 2 && a.Shape[0] == 0 && a.Shape[1] == 0:
		return wire.Empty{}
	}
	return a
}

func isScalar(a wire.Array) bool {
	return wire.NumElements(a.Shape) == 1
}

// arithClass is the result class of an arithmetic operation: an integer
// operand's class wins, otherwise double.
func arithClass(a, b wire.Array) wire.Class {
	if a.Class.IsInteger() {
		return a.Class
	}
	if b.Class.IsInteger() {
		return b.Class
	}
	if a.Class == wire.ClassSingle || b.Class == wire.ClassSingle {
		return wire.ClassSingle
	}
	return wire.ClassDouble
}

// elementwise applies f across a and b, expanding scalar operands.
func elementwise(name string, a, b wire.Array, class wire.Class, f func(x, y float64) float64) (wire.Array, error) {
	var shape []int
	switch {
	case isScalar(a):
		shape = b.Shape
	case isScalar(b):
		shape = a.Shape
	case slices.Equal(a.Shape, b.Shape):
		shape = a.Shape
	default:
		return wire.Array{}, badArgument(name, "array dimensions must agree (%v vs %v)", a.Shape, b.Shape)
	}
	n := wire.NumElements(shape)
	out := make([]float64, n)
	for i := range out {
		x := a.Data[0]
		if !isScalar(a) {
			x = a.Data[i]
		}
		y := b.Data[0]
		if !isScalar(b) {
			y = b.Data[i]
		}
		out[i] = roundTo(class, f(x, y))
	}
	return wire.Array{Class: class, Shape: slices.Clone(shape), Data: out}, nil
}

func mapArray(a wire.Array, class wire.Class, f func(x float64) float64) wire.Array {
	out := make([]float64, len(a.Data))
	for i, x := range a.Data {
		out[i] = roundTo(class, f(x))
	}
	return wire.Array{Class: class, Shape: slices.Clone(a.Shape), Data: out}
}

// roundTo rounds results held in integer classes.
func roundTo(class wire.Class, f float64) float64 {
	if class.IsInteger() {
		return math.Round(f)
	}
	return f
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// matmul multiplies column-major matrices a (m x k) and b (k x n).
func matmul(name string, a, b wire.Array) (wire.Array, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 || a.Shape[1] != b.Shape[0] {
		return wire.Array{}, badArgument(name, "inner matrix dimensions must agree (%v * %v)", a.Shape, b.Shape)
	}
	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	out := make([]float64, m*n)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			var sum float64
			for p := 0; p < k; p++ {
				sum += a.Data[i+p*m] * b.Data[p+j*k]
			}
			out[i+j*m] = sum
		}
	}
	class := arithClass(a, b)
	for i := range out {
		out[i] = roundTo(class, out[i])
	}
	return wire.Array{Class: class, Shape: []int{m, n}, Data: out}, nil
}
