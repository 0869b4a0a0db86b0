package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces RFC 8785 style canonical JSON for a wire value
// or a plain Go tree (string, bool, integers, float64, []any, map[string]any).
// CRITICAL: This is the ONLY serialization used for digests.
//
// Wire values are written as tagged objects ({"t":"double","v":1}) so that
// values of different classes never collide. Differences from json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. Non-finite floats are written as the strings "NaN", "Infinity", "-Infinity"
//  5. null is forbidden (Empty has its own tag)
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("null is forbidden in canonical JSON")
	case Value:
		tagged, err := taggedForm(val)
		if err != nil {
			return err
		}
		return writeObject(buf, tagged)
	case string:
		return writeString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
		return nil
	case float64:
		return writeNumber(buf, val)
	case []int:
		buf.WriteByte('[')
		for i, n := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(strconv.Itoa(n))
		}
		buf.WriteByte(']')
		return nil
	case []float64:
		buf.WriteByte('[')
		for i, f := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNumber(buf, f); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		return writeObject(buf, val)
	default:
		return fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// taggedForm lowers a wire value to the plain tree that is serialized.
func taggedForm(v Value) (map[string]any, error) {
	switch val := v.(type) {
	case Empty:
		return map[string]any{"t": "empty"}, nil
	case Logical:
		return map[string]any{"t": "logical", "v": bool(val)}, nil
	case Double:
		return map[string]any{"t": "double", "v": float64(val)}, nil
	case Complex:
		c := complex128(val)
		return map[string]any{"t": "complex", "re": real(c), "im": imag(c)}, nil
	case Char:
		return map[string]any{"t": "char", "v": string(val)}, nil
	case Array:
		return map[string]any{"t": "array", "class": string(val.Class), "shape": shapeOrEmpty(val.Shape), "v": dataOrEmpty(val.Data)}, nil
	case Buffer:
		arr, err := val.ToArray()
		if err != nil {
			return nil, err
		}
		return taggedForm(arr)
	case Cell:
		elems := make([]any, len(val))
		for i, e := range val {
			if e == nil {
				return nil, fmt.Errorf("cell[%d]: null is forbidden in canonical JSON", i)
			}
			elems[i] = e
		}
		return map[string]any{"t": "cell", "v": elems}, nil
	case Struct:
		fields := make(map[string]any, len(val))
		for k, e := range val {
			if e == nil {
				return nil, fmt.Errorf("struct field %q: null is forbidden in canonical JSON", k)
			}
			fields[k] = e
		}
		return map[string]any{"t": "struct", "v": fields}, nil
	case Handle:
		return map[string]any{"t": "handle", "id": val.ID}, nil
	case FuncRef:
		out := map[string]any{"t": "funcref", "name": val.Name}
		if val.Receiver != nil {
			out["receiver"] = val.Receiver.ID
		}
		return out, nil
	case HostFunc:
		return map[string]any{"t": "hostfunc", "id": val.ID, "adapter": val.Adapter}, nil
	default:
		return nil, fmt.Errorf("unsupported wire value: %T", v)
	}
}

func shapeOrEmpty(shape []int) []int {
	if shape == nil {
		return []int{}
	}
	return shape
}

func dataOrEmpty(data []float64) []float64 {
	if data == nil {
		return []float64{}
	}
	return data
}

// writeNumber formats a float the way ECMAScript Number.prototype.toString
// does for the common cases: integral values below 1e21 have no exponent or
// fraction, everything else uses the shortest round-trip representation.
func writeNumber(buf *bytes.Buffer, f float64) error {
	switch {
	case math.IsNaN(f):
		buf.WriteString(`"NaN"`)
		return nil
	case math.IsInf(f, 1):
		buf.WriteString(`"Infinity"`)
		return nil
	case math.IsInf(f, -1):
		buf.WriteString(`"-Infinity"`)
		return nil
	}
	if f == 0 {
		// -0 serializes as 0
		buf.WriteByte('0')
		return nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	abs := math.Abs(f)
	if abs >= 1e-6 && abs < 1e21 {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	// Go pads exponents to two digits; ECMAScript does not.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	s = strings.Replace(s, "e-0", "e-", 1)
	s = strings.Replace(s, "e+0", "e+", 1)
	buf.WriteString(s)
	return nil
}

// writeString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped; <, >, & and
// U+2028/U+2029 are written literally.
func writeString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	out := bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'})
	buf.Write(unescapeLineSeparators(out))
	return nil
}

// unescapeLineSeparators reverts encoding/json's \u2028 and \u2029 escapes.
// An escape preceded by an odd number of backslashes is literal text and is
// left alone.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}

// writeObject marshals an object with RFC 8785 key ordering.
func writeObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// CRITICAL: RFC 8785 UTF-16 code unit ordering
	slices.SortFunc(keys, compareKeysRFC8785)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
