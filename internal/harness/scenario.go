package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// Scenarios drive the bridge through a sequence of steps and assert on the
// resulting trace of engine calls and on the values the steps bound.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a directory of .cue declarations for the engine.
	// Relative paths resolve against the scenario file. Empty uses the
	// built-in catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// Setup steps run before the traced steps. Any failure aborts the run
	// and their calls are not part of the trace.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps are the traced steps.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final bindings.
	// Supported types: trace_contains, trace_order, trace_count, binding_equals
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one bridge operation. Exactly one of Call, New, Get, Set, Method,
// Global and Eval is set.
//
// Object operations name their target as "binding.member", e.g.
// "counter.increment". Arguments written as "$name" are replaced by the
// value bound to name.
type Step struct {
	// Call invokes a global engine function.
	Call string `yaml:"call,omitempty"`

	// New constructs an object of the named class.
	New string `yaml:"new,omitempty"`

	// Get reads an attribute ("binding.attr").
	Get string `yaml:"get,omitempty"`

	// Set assigns Value to an attribute ("binding.attr").
	Set string `yaml:"set,omitempty"`

	// Method calls a method ("binding.method").
	Method string `yaml:"method,omitempty"`

	// Global reads a global variable, or writes Value to it when Value is
	// present.
	Global string `yaml:"global,omitempty"`

	// Eval evaluates statements in the global namespace.
	Eval string `yaml:"eval,omitempty"`

	Args   []any          `yaml:"args,omitempty"`
	Kwargs map[string]any `yaml:"kwargs,omitempty"`
	Value  any            `yaml:"value,omitempty"`

	// Outputs is how many results the step consumes (call and method
	// steps). Default 1; 0 discards results.
	Outputs *int `yaml:"outputs,omitempty"`

	// Nargout overrides the output count passed to the engine.
	Nargout *int `yaml:"nargout,omitempty"`

	// Bind stores the step's result under a name for later steps and
	// binding_equals assertions.
	Bind string `yaml:"bind,omitempty"`

	// Expect validates the step's outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies a step's expected outcome.
type Expect struct {
	// Value is compared with the decoded result. Numbers compare as
	// float64, lists as lists, and objects by their String form.
	Value any `yaml:"value,omitempty"`

	// Class is the expected class of an object result.
	Class string `yaml:"class,omitempty"`

	// Error is a substring the step's error must contain. Setting it
	// makes success a failure.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final bindings.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call with Op and Name (and Nargout, if set) was made
	// - "trace_order": Calls appear in order
	// - "trace_count": a call with Op and Name was made exactly Count times
	// - "binding_equals": the value bound to Binding equals Value
	Type string `yaml:"type"`

	Op      string `yaml:"op,omitempty"`
	Name    string `yaml:"name,omitempty"`
	Nargout *int   `yaml:"nargout,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Calls is the expected order as "op:name" entries (used by trace_order).
	Calls []string `yaml:"calls,omitempty"`

	Binding string `yaml:"binding,omitempty"`
	Value   any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBindingEquals = "binding_equals"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative catalog path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and step/assertion shapes.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must contain at least one step")
	}
	for i := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), &s.Setup[i]); err != nil {
			return err
		}
	}
	for i := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), &s.Steps[i]); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// Kind returns which operation the step performs.
func (s *Step) Kind() string {
	switch {
	case s.Call != "":
		return "call"
	case s.New != "":
		return "new"
	case s.Get != "":
		return "get"
	case s.Set != "":
		return "set"
	case s.Method != "":
		return "method"
	case s.Global != "":
		return "global"
	case s.Eval != "":
		return "eval"
	}
	return ""
}

func validateStep(where string, s *Step) error {
	n := 0
	for _, v := range []string{s.Call, s.New, s.Get, s.Set, s.Method, s.Global, s.Eval} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("%s: exactly one of call, new, get, set, method, global, eval is required", where)
	}

	switch s.Kind() {
	case "get", "set", "method":
		target := s.Get + s.Set + s.Method
		if _, _, ok := splitTarget(target); !ok {
			return fmt.Errorf("%s: target %q must be binding.member", where, target)
		}
	}
	if s.Kind() == "set" && s.Value == nil {
		return fmt.Errorf("%s: set requires a value", where)
	}
	if s.Outputs != nil && *s.Outputs < 0 {
		return fmt.Errorf("%s: outputs must be non-negative", where)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
		for _, c := range a.Calls {
			if !strings.Contains(c, ":") {
				return fmt.Errorf("assertions[%d]: call %q must be op:name", index, c)
			}
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBindingEquals:
		if a.Binding == "" {
			return fmt.Errorf("assertions[%d]: binding is required for binding_equals", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// splitTarget splits "binding.member" at the first dot.
func splitTarget(target string) (binding, member string, ok bool) {
	binding, member, ok = strings.Cut(target, ".")
	if !ok || binding == "" || member == "" {
		return "", "", false
	}
	return binding, member, true
}
