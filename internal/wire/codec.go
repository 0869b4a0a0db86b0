package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical options so equal values encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// envelope is the storage form of a Value. Exactly one payload group is
// populated, selected by T.
type envelope struct {
	T      string              `cbor:"t"`
	Class  string              `cbor:"c,omitempty"`
	Shape  []int               `cbor:"s,omitempty"`
	Data   []float64           `cbor:"d,omitempty"`
	Bool   bool                `cbor:"b,omitempty"`
	Re     float64             `cbor:"re,omitempty"`
	Im     float64             `cbor:"im,omitempty"`
	Text   string              `cbor:"x,omitempty"`
	Elems  []envelope          `cbor:"e,omitempty"`
	Fields map[string]envelope `cbor:"f,omitempty"`
	ID     uint64              `cbor:"h,omitempty"`
	Recv   *uint64             `cbor:"r,omitempty"`
}

// Marshal serializes a wire value to canonical CBOR bytes.
// Buffers are materialized; the decoded form is an owned Array.
func Marshal(v Value) ([]byte, error) {
	env, err := toEnvelope(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal: %w", err)
	}
	return cborEncMode.Marshal(env)
}

// Unmarshal deserializes a wire value from CBOR bytes.
func Unmarshal(data []byte) (Value, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("wire: unmarshal: %w", err)
	}
	v, err := fromEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("wire: unmarshal: %w", err)
	}
	return v, nil
}

func toEnvelope(v Value) (envelope, error) {
	switch val := v.(type) {
	case Empty:
		return envelope{T: "empty"}, nil
	case Logical:
		return envelope{T: "logical", Bool: bool(val)}, nil
	case Double:
		return envelope{T: "double", Re: float64(val)}, nil
	case Complex:
		return envelope{T: "complex", Re: real(val), Im: imag(val)}, nil
	case Char:
		return envelope{T: "char", Text: string(val)}, nil
	case Array:
		return envelope{T: "array", Class: string(val.Class), Shape: val.Shape, Data: val.Data}, nil
	case Buffer:
		arr, err := val.ToArray()
		if err != nil {
			return envelope{}, err
		}
		return toEnvelope(arr)
	case Cell:
		elems := make([]envelope, len(val))
		for i, e := range val {
			env, err := toEnvelope(e)
			if err != nil {
				return envelope{}, fmt.Errorf("cell[%d]: %w", i, err)
			}
			elems[i] = env
		}
		return envelope{T: "cell", Elems: elems}, nil
	case Struct:
		fields := make(map[string]envelope, len(val))
		for k, e := range val {
			env, err := toEnvelope(e)
			if err != nil {
				return envelope{}, fmt.Errorf("field %q: %w", k, err)
			}
			fields[k] = env
		}
		return envelope{T: "struct", Fields: fields}, nil
	case Handle:
		return envelope{T: "handle", ID: val.ID}, nil
	case FuncRef:
		env := envelope{T: "funcref", Text: val.Name}
		if val.Receiver != nil {
			id := val.Receiver.ID
			env.Recv = &id
		}
		return env, nil
	case HostFunc:
		return envelope{T: "hostfunc", Text: val.ID, Class: val.Adapter}, nil
	default:
		return envelope{}, fmt.Errorf("unsupported wire value: %T", v)
	}
}

func fromEnvelope(env envelope) (Value, error) {
	switch env.T {
	case "empty":
		return Empty{}, nil
	case "logical":
		return Logical(env.Bool), nil
	case "double":
		return Double(env.Re), nil
	case "complex":
		return Complex(complex(env.Re, env.Im)), nil
	case "char":
		return Char(env.Text), nil
	case "array":
		data := env.Data
		if data == nil {
			data = []float64{}
		}
		return Array{Class: Class(env.Class), Shape: env.Shape, Data: data}, nil
	case "cell":
		out := make(Cell, len(env.Elems))
		for i, e := range env.Elems {
			v, err := fromEnvelope(e)
			if err != nil {
				return nil, fmt.Errorf("cell[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case "struct":
		out := make(Struct, len(env.Fields))
		for k, e := range env.Fields {
			v, err := fromEnvelope(e)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	case "handle":
		return Handle{ID: env.ID}, nil
	case "funcref":
		ref := FuncRef{Name: env.Text}
		if env.Recv != nil {
			ref.Receiver = &Handle{ID: *env.Recv}
		}
		return ref, nil
	case "hostfunc":
		return HostFunc{ID: env.Text, Adapter: env.Class}, nil
	default:
		return nil, fmt.Errorf("unknown value tag %q", env.T)
	}
}

// ContainsHandle reports whether v holds a handle, a bound function
// reference or a host callback anywhere in its tree. Such values are only
// meaningful inside the session that issued them.
func ContainsHandle(v Value) bool {
	switch val := v.(type) {
	case Handle, HostFunc:
		return true
	case FuncRef:
		return val.Receiver != nil
	case Cell:
		for _, e := range val {
			if ContainsHandle(e) {
				return true
			}
		}
	case Struct:
		for _, e := range val {
			if ContainsHandle(e) {
				return true
			}
		}
	}
	return false
}
