package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/counter.yaml")
	require.NoError(t, err)

	assert.Equal(t, "counter_lifecycle", s.Name)
	require.Len(t, s.Steps, 6)
	assert.Equal(t, "new", s.Steps[0].Kind())
	assert.Equal(t, "c", s.Steps[0].Bind)
	assert.Equal(t, "method", s.Steps[1].Kind())
	require.NotNil(t, s.Steps[1].Outputs)
	assert.Equal(t, 0, *s.Steps[1].Outputs)
	assert.Equal(t, []any{[]any{3, 1, 2}}, s.Steps[5].Args)
	require.Len(t, s.Assertions, 4)
	assert.Equal(t, AssertTraceOrder, s.Assertions[2].Type)
}

func TestLoadScenario_ResolvesCatalogPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: relative
catalog: decls
steps:
  - eval: "1"
`), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "decls"), s.Catalog)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\nsteps:\n  - eval: '1'\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "steps:\n  - eval: '1'\n",
			wantErr: "name is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\nsteps: []\n",
			wantErr: "at least one step",
		},
		{
			name:    "two operations",
			yaml:    "name: x\nsteps:\n  - eval: '1'\n    call: f\n",
			wantErr: "exactly one of",
		},
		{
			name:    "no operation",
			yaml:    "name: x\nsteps:\n  - bind: y\n",
			wantErr: "exactly one of",
		},
		{
			name:    "bad target",
			yaml:    "name: x\nsteps:\n  - get: counter\n",
			wantErr: "binding.member",
		},
		{
			name:    "set without value",
			yaml:    "name: x\nsteps:\n  - set: c.count\n",
			wantErr: "set requires a value",
		},
		{
			name:    "negative outputs",
			yaml:    "name: x\nsteps:\n  - call: f\n    outputs: -1\n",
			wantErr: "outputs must be non-negative",
		},
		{
			name:    "bad setup step",
			yaml:    "name: x\nsetup:\n  - {}\nsteps:\n  - eval: '1'\n",
			wantErr: "setup[0]",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\nsteps:\n  - eval: '1'\nassertions:\n  - type: final_state\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "assertion without type",
			yaml:    "name: x\nsteps:\n  - eval: '1'\nassertions:\n  - op: invoke\n",
			wantErr: "type is required",
		},
		{
			name:    "trace_contains without op",
			yaml:    "name: x\nsteps:\n  - eval: '1'\nassertions:\n  - type: trace_contains\n",
			wantErr: "op is required",
		},
		{
			name:    "trace_order entry without op",
			yaml:    "name: x\nsteps:\n  - eval: '1'\nassertions:\n  - type: trace_order\n    calls: [increment]\n",
			wantErr: "must be op:name",
		},
		{
			name:    "binding_equals without binding",
			yaml:    "name: x\nsteps:\n  - eval: '1'\nassertions:\n  - type: binding_equals\n    value: 1\n",
			wantErr: "binding is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitTarget(t *testing.T) {
	b, m, ok := splitTarget("c.count")
	assert.True(t, ok)
	assert.Equal(t, "c", b)
	assert.Equal(t, "count", m)

	_, _, ok = splitTarget("c.inner.deep")
	assert.True(t, ok, "only the first dot separates")

	for _, bad := range []string{"c", ".count", "c.", ""} {
		_, _, ok := splitTarget(bad)
		assert.False(t, ok, bad)
	}
}
