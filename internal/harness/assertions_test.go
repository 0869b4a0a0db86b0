package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, Op: "nargout", Name: "minmax"},
		{Seq: 2, Op: "invoke", Name: "minmax", Nargout: 1},
		{Seq: 3, Op: "field_access", Name: "count"},
		{Seq: 4, Op: "invoke", Name: "total", Nargout: 1, Depth: 1},
		{Seq: 5, Op: "field_access", Name: "count", Error: "stale"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	tests := []struct {
		name    string
		a       Assertion
		wantErr bool
	}{
		{"op and name", Assertion{Op: "invoke", Name: "total"}, false},
		{"any name", Assertion{Op: "nargout"}, false},
		{"nargout matches", Assertion{Op: "invoke", Name: "minmax", Nargout: intp(1)}, false},
		{"nargout differs", Assertion{Op: "invoke", Name: "minmax", Nargout: intp(2)}, true},
		{"missing", Assertion{Op: "eval", Name: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceContains(trace, tt.a)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"invoke:minmax", "invoke:total"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Calls: []string{"field_access:count", "field_access:count"}}),
		"repeated entries match successive occurrences")
	assert.Error(t, assertTraceOrder(trace, Assertion{Calls: []string{"invoke:total", "invoke:minmax"}}))
	assert.Error(t, assertTraceOrder(trace, Assertion{Calls: []string{"invoke:minmax", "eval:x"}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "field_access", Name: "count", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "invoke", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: "eval", Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: "invoke", Name: "total", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 occurrences of invoke total")
	assert.Contains(t, err.Error(), "Actual: 1 occurrences")
}

func TestAssertBindingEquals(t *testing.T) {
	bindings := map[string]any{"n": 2.0}

	assert.NoError(t, assertBindingEquals(bindings, Assertion{Binding: "n", Value: 2}))
	assert.Error(t, assertBindingEquals(bindings, Assertion{Binding: "n", Value: 3}))

	err := assertBindingEquals(bindings, Assertion{Binding: "m", Value: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binding not set")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 occurrences of invoke f",
		Actual:   "0 occurrences",
		Trace:    sampleTrace()[3:],
	}

	want := "Assertion failed: trace_count\n" +
		"  Expected: 1 occurrences of invoke f\n" +
		"  Actual: 0 occurrences\n" +
		"\nFull trace:\n" +
		"  [4] invoke \"total\" nargout=1 depth=1\n" +
		"  [5] field_access \"count\" nargout=0 error=\"stale\"\n"
	assert.Equal(t, want, err.Error())
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Bindings["n"] = 1.0

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Op: "invoke", Name: "total"},
		{Type: AssertTraceCount, Op: "eval", Count: 1},
		{Type: AssertBindingEquals, Binding: "n", Value: 1},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]")
	assert.Contains(t, errs[1], `assertions[3]: unknown assertion type "bogus"`)
}
