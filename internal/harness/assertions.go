package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %q nargout=%d", event.Seq, event.Op, event.Name, event.Nargout)
			if event.Depth > 0 {
				fmt.Fprintf(&buf, " depth=%d", event.Depth)
			}
			if event.Error != "" {
				fmt.Fprintf(&buf, " error=%q", event.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err.Error()))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertBindingEquals:
		return assertBindingEquals(result.Bindings, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// matches reports whether event is the call an assertion names. An empty
// Name matches any name.
func matches(event TraceEvent, a Assertion) bool {
	if event.Op != a.Op {
		return false
	}
	if a.Name != "" && event.Name != a.Name {
		return false
	}
	return a.Nargout == nil || event.Nargout == *a.Nargout
}

func describeCall(a Assertion) string {
	s := a.Op
	if a.Name != "" {
		s += " " + a.Name
	}
	if a.Nargout != nil {
		s += fmt.Sprintf(" with nargout %d", *a.Nargout)
	}
	return s
}

// assertTraceContains checks that at least one call matches.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeCall(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed); each
// entry matches the first occurrence after the previous entry's match.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	pos := 0
	for _, want := range a.Calls {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Key() == want {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual:   fmt.Sprintf("%s not found after the preceding calls", want),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that matching calls occur exactly Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describeCall(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertBindingEquals compares a bound value with the expected value.
func assertBindingEquals(bindings map[string]any, a Assertion) error {
	got, ok := bindings[a.Binding]
	if !ok {
		return &AssertionError{
			Type:     AssertBindingEquals,
			Expected: fmt.Sprintf("binding %s = %v", a.Binding, Normalize(a.Value)),
			Actual:   "binding not set",
		}
	}
	if !ValuesEqual(got, a.Value) {
		return &AssertionError{
			Type:     AssertBindingEquals,
			Expected: fmt.Sprintf("binding %s = %v", a.Binding, Normalize(a.Value)),
			Actual:   fmt.Sprintf("%v", Normalize(got)),
		}
	}
	return nil
}
