package bridge

import (
	"fmt"

	"github.com/roach88/enginebridge/internal/wire"
)

// NDArray is a host n-dimensional numeric array. Data is a typed slice
// ([]float64, []float32, []int8 ... []uint64, []bool) holding the elements
// in column-major order.
//
// Arrays decoded from the engine alias the engine's buffer when the engine
// shared one; mutate a copy if that matters.
type NDArray struct {
	Class wire.Class
	Shape []int
	Data  any
}

// NewNDArray wraps a typed slice. Shape defaults to 1xN.
func NewNDArray(data any, shape ...int) (NDArray, error) {
	class, n, err := classOfSlice(data)
	if err != nil {
		return NDArray{}, err
	}
	if len(shape) == 0 {
		shape = []int{1, n}
	}
	if wire.NumElements(shape) != n {
		return NDArray{}, fmt.Errorf("shape %v does not hold %d elements", shape, n)
	}
	return NDArray{Class: class, Shape: shape, Data: data}, nil
}

// Len returns the number of elements.
func (a NDArray) Len() int {
	_, n, err := classOfSlice(a.Data)
	if err != nil {
		return 0
	}
	return n
}

// Float64s copies the elements into a []float64.
func (a NDArray) Float64s() ([]float64, error) {
	return wire.Buffer{Class: a.Class, Shape: a.Shape, Data: a.Data}.Float64s()
}

func classOfSlice(data any) (wire.Class, int, error) {
	switch d := data.(type) {
	case []float64:
		return wire.ClassDouble, len(d), nil
	case []float32:
		return wire.ClassSingle, len(d), nil
	case []int8:
		return wire.ClassInt8, len(d), nil
	case []uint8:
		return wire.ClassUint8, len(d), nil
	case []int16:
		return wire.ClassInt16, len(d), nil
	case []uint16:
		return wire.ClassUint16, len(d), nil
	case []int32:
		return wire.ClassInt32, len(d), nil
	case []uint32:
		return wire.ClassUint32, len(d), nil
	case []int64:
		return wire.ClassInt64, len(d), nil
	case []int:
		return wire.ClassInt64, len(d), nil
	case []uint64:
		return wire.ClassUint64, len(d), nil
	case []bool:
		return wire.ClassLogical, len(d), nil
	default:
		return "", 0, fmt.Errorf("unsupported array element type %T", data)
	}
}

// Range is the integer sequence Start, Start+Step, ... stopping before Stop.
// A zero Step means 1.
type Range struct {
	Start, Stop, Step int
}

// Values expands the range.
func (r Range) Values() []float64 {
	step := r.Step
	if step == 0 {
		step = 1
	}
	var out []float64
	if step > 0 {
		for v := r.Start; v < r.Stop; v += step {
			out = append(out, float64(v))
		}
	} else {
		for v := r.Start; v > r.Stop; v += step {
			out = append(out, float64(v))
		}
	}
	return out
}

// Tuple is an ordered heterogeneous group. It always encodes to a cell,
// and every engine cell decodes to a Tuple.
type Tuple []any

// Kwarg marks a keyword argument in a variadic argument list.
type Kwarg struct {
	Name  string
	Value any
}

// KW is shorthand for Kwarg{Name: name, Value: v}.
func KW(name string, v any) Kwarg {
	return Kwarg{Name: name, Value: v}
}

// Nargout in a variadic argument list overrides the requested output count.
type Nargout int
