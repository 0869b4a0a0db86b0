package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enginebridge/internal/wire"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()

	counter, ok := cat.Class("Counter")
	require.True(t, ok)
	assert.Equal(t, KindHandle, counter.Kind)
	require.Len(t, counter.Properties, 2)
	assert.Equal(t, "count", counter.Properties[0].Name)
	assert.Equal(t, wire.Double(0), counter.Properties[0].Default)
	assert.Equal(t, wire.Char("counter"), counter.Properties[1].Default)

	inc, ok := counter.Method("increment")
	require.True(t, ok)
	assert.Equal(t, 0, inc.Outputs)
	assert.Equal(t, OpAdd, inc.Body.Op)

	value, ok := counter.Method("value")
	require.True(t, ok)
	assert.Equal(t, 1, value.Outputs, "outputs defaults to 1")

	snap, _ := counter.Method("snapshot")
	assert.Equal(t, []string{"count", "label"}, snap.Body.Fields)

	point, ok := cat.Class("Point")
	require.True(t, ok)
	assert.Equal(t, KindValue, point.Kind)

	vec, _ := cat.Class("Vector")
	assert.Equal(t, wire.Row(1, 2, 3), vec.Properties[0].Default)

	pass, ok := cat.Function("pass")
	require.True(t, ok)
	assert.True(t, pass.Varargout)
	assert.Equal(t, "deal", pass.Builtin)

	stats, _ := cat.Function("stats")
	assert.Equal(t, Signature{Outputs: 3}, stats.Signature)
}

func TestDeclarationOrderPreserved(t *testing.T) {
	cat := Default()
	counter, _ := cat.Class("Counter")
	names := counter.MethodNames()
	require.GreaterOrEqual(t, len(names), 4)
	assert.Equal(t, []string{"increment", "value", "rename", "snapshot"}, names[:4])

	var classNames []string
	for _, c := range cat.Classes {
		classNames = append(classNames, c.Name)
	}
	assert.Equal(t, []string{"Counter", "Point", "Bag", "Vector"}, classNames)
}

func TestParseDefaultsKindToValue(t *testing.T) {
	cat, err := Parse([]byte(`
		class: Plain: properties: a: "x"
	`), "plain.cue")
	require.NoError(t, err)

	cls, ok := cat.Class("Plain")
	require.True(t, ok)
	assert.Equal(t, KindValue, cls.Kind)
	assert.Empty(t, cls.Methods)
}

func TestParseRejectsUnknownOp(t *testing.T) {
	_, err := Parse([]byte(`
		class: Bad: methods: m: body: {op: "teleport"}
	`), "bad.cue")
	require.Error(t, err)
}

func TestParseRejectsMissingField(t *testing.T) {
	_, err := Parse([]byte(`
		class: Bad: methods: m: body: {op: "get"}
	`), "bad.cue")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "class.Bad.methods.m.body", ce.Field)
	assert.Contains(t, ce.Message, "requires field")
}

func TestParseRejectsNegativeOutputs(t *testing.T) {
	_, err := Parse([]byte(`
		function: f: {outputs: -1, builtin: "noop"}
	`), "neg.cue")
	require.Error(t, err)
}

func TestValueConversion(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		n: null
		b: true
		i: 3
		f: 2.5
		s: "hi"
		row: [1, 2]
		mixed: [1, "a"]
		st: {a: 1, b: "x"}
	`)
	require.NoError(t, v.Err())

	tests := []struct {
		path string
		want wire.Value
	}{
		{"n", wire.Empty{}},
		{"b", wire.Logical(true)},
		{"i", wire.Double(3)},
		{"f", wire.Double(2.5)},
		{"s", wire.Char("hi")},
		{"row", wire.Row(1, 2)},
		{"mixed", wire.Cell{wire.Double(1), wire.Char("a")}},
		{"st", wire.Struct{"a": wire.Double(1), "b": wire.Char("x")}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Value(v.LookupPath(cue.ParsePath(tt.path)))
			require.NoError(t, err)
			assert.True(t, wire.Equal(tt.want, got), "got %#v", got)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `package shapes

class: Circle: {
	properties: r: 1
	methods: radius: body: {op: "get", field: "r"}
}

function: area: builtin: "noop"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shapes.cue"), []byte(src), 0o644))

	cat, err := LoadDir(dir)
	require.NoError(t, err)

	circle, ok := cat.Class("Circle")
	require.True(t, ok)
	assert.Equal(t, "r", circle.Properties[0].Name)
	_, ok = cat.Function("area")
	assert.True(t, ok)
}

func TestLoadDirErrors(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	_, err = LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CUE files")
}
