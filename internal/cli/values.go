package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/enginebridge/internal/bridge"
	"github.com/roach88/enginebridge/internal/harness"
)

// parseArg reads a command-line argument as a YAML value, so 3 is a
// number, [1, 2] a list, {a: 1} a struct and anything else a string.
func parseArg(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return s, nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("argument %q: %w", s, err)
	}
	return v, nil
}

// parseArgs parses positional arguments and name=value keyword arguments
// into a bridge argument list.
func parseArgs(positional, keywords []string, nargout int) ([]any, error) {
	args := make([]any, 0, len(positional)+len(keywords)+1)
	for _, a := range positional {
		v, err := parseArg(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	// Flag order is kept; Callable collapses repeated names.
	for _, k := range keywords {
		name, raw, ok := strings.Cut(k, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("keyword %q: want name=value", k)
		}
		v, err := parseArg(raw)
		if err != nil {
			return nil, err
		}
		args = append(args, bridge.KW(name, v))
	}

	if nargout >= 0 {
		args = append(args, bridge.Nargout(nargout))
	}
	return args, nil
}

// jsonValue converts a decoded result into something encoding/json can
// write. Proxies render as their descriptions.
func jsonValue(v any) any {
	switch x := harness.Normalize(v).(type) {
	case complex128:
		return map[string]any{"re": real(x), "im": imag(x)}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonValue(e)
		}
		return out
	case nil:
		return nil
	default:
		return x
	}
}

// formatValue renders a decoded result for text output.
func formatValue(v any) string {
	switch x := harness.Normalize(v).(type) {
	case nil:
		return "[]"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case complex128:
		return strconv.FormatComplex(x, 'g', -1, 128)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte('\n')
			}
			fmt.Fprintf(&sb, "%s: %s", k, formatValue(x[k]))
		}
		return sb.String()
	default:
		return fmt.Sprint(x)
	}
}
