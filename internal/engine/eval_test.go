package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enginebridge/internal/wire"
)

func eval(t *testing.T, e *Engine, src string) wire.Value {
	t.Helper()
	v, err := e.EvalInGlobal(context.Background(), src)
	require.NoError(t, err, "eval %q", src)
	return v
}

func TestEval_Expressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want wire.Value
	}{
		{"number", "42", wire.Double(42)},
		{"exponent literal", "1.5e2", wire.Double(150)},
		{"precedence", "1 + 2 * 3", wire.Double(7)},
		{"parens", "(1 + 2) * 3", wire.Double(9)},
		{"unary minus binds looser than power", "-2 ^ 2", wire.Double(-4)},
		{"division", "9 / 3", wire.Double(3)},
		{"comparison", "1 + 1 == 2", wire.Logical(true)},
		{"not equal", "1 ~= 1", wire.Logical(false)},
		{"not", "~true", wire.Logical(false)},
		{"char", "'hello'", wire.Char("hello")},
		{"escaped quote", "'it''s'", wire.Char("it's")},
		{"double quoted", "\"text\"", wire.Char("text")},
		{"row", "[1, 2 3]", wire.Row(1, 2, 3)},
		{"empty row", "[]", wire.Empty{}},
		{"cell", "{1, 'a'}", wire.Cell{wire.Double(1), wire.Char("a")}},
		{"function call", "total([1 2 3])", wire.Double(6)},
		{"function reference", "@minmax", wire.FuncRef{Name: "minmax"}},
		{"feval reference", "feval(@total, [4 5])", wire.Double(9)},
		{"builtin without parens", "true", wire.Logical(true)},
		{"struct builtin", "struct('a', 1).a", wire.Double(1)},
		{"char index", "'abc'(2)", wire.Char("b")},
		{"no expression", "x = 1;", wire.Empty{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			assert.Equal(t, tt.want, eval(t, e, tt.src))
		})
	}
}

func TestEval_Statements(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, wire.Double(9), eval(t, e, "x = 1 + 2; x * 3"))
	assert.Equal(t, wire.Double(3), e.Globals()["x"])

	// Last expression statement wins; separators may be commas or newlines.
	assert.Equal(t, wire.Double(2), eval(t, e, "1, 2"))
	assert.Equal(t, wire.Double(5), eval(t, e, "y = 4 % four\ny + 1\n"))
}

func TestEval_StructAssignment(t *testing.T) {
	e := newTestEngine(t)

	v := eval(t, e, "s.a = 1; s.b = 'hi'; s")
	assert.Equal(t, wire.Struct{"a": wire.Double(1), "b": wire.Char("hi")}, v)

	v = eval(t, e, "s.inner.deep = 2; s.inner")
	assert.Equal(t, wire.Struct{"deep": wire.Double(2)}, v)
}

func TestEval_IndexedAssignment(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, wire.Row(1, 5, 3), eval(t, e, "v = [1 2 3]; v(2) = 5; v"))
	assert.Equal(t, wire.Row(1, 5, 3, 0, 7), eval(t, e, "v(5) = 7; v"))

	v := eval(t, e, "c = {1, 2}; c(3) = 'z'; c")
	assert.Equal(t, wire.Cell{wire.Double(1), wire.Double(2), wire.Char("z")}, v)
	assert.Equal(t, wire.Char("z"), eval(t, e, "c{3}"))
}

func TestEval_Clear(t *testing.T) {
	e := newTestEngine(t)

	eval(t, e, "a = 1; b = 2; c = 3")
	eval(t, e, "clear('a')")
	assert.NotContains(t, e.Globals(), "a")

	eval(t, e, "clear b c")
	assert.Empty(t, e.Globals())
}

func TestEval_Objects(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, wire.Double(2), eval(t, e, "k = Counter(); increment(k); increment(k); k.count"))
	assert.Equal(t, wire.Double(12), eval(t, e, "k + 10"))
	assert.Equal(t, wire.Logical(true), eval(t, e, "k > 1"))

	eval(t, e, "k.label = 'renamed'")
	assert.Equal(t, wire.Char("renamed"), eval(t, e, "k.label"))

	assert.Equal(t, wire.Double(3), eval(t, e, "p = Point('x', 1); p = shift(p, 2); p.x"))
	assert.Equal(t, wire.Double(20), eval(t, e, "v = Vector(); v(2) = 20; v(2)"))
}

func TestEval_ThinWrapperBinding(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter")
	invoke(t, e, "thinwrap", nil, 1, c)

	assert.Equal(t, wire.Double(0), eval(t, e, "tw0001.count"))
	assert.Equal(t, wire.Cell{wire.Char("count"), wire.Char("label")}, eval(t, e, "fieldnames(tw0001)"))

	methods := eval(t, e, "methods(tw0001)")
	require.IsType(t, wire.Cell{}, methods)
	assert.Contains(t, methods, wire.Char("increment"))

	eval(t, e, "clear('tw0001')")
	assert.NotContains(t, e.Globals(), "tw0001")
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		check func(error) bool
	}{
		{"undefined variable", "nothing_defined", IsUndefined},
		{"undefined function", "nothing_defined(1)", IsUndefined},
		{"missing operand", "x = ", IsSyntax},
		{"unterminated string", "'abc", IsSyntax},
		{"unbalanced paren", "(1 + 2", IsSyntax},
		{"bad character", "1 # 2", IsSyntax},
		{"trailing tokens", "1 2", IsSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			_, err := e.EvalInGlobal(context.Background(), tt.src)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}
}

func TestEval_UndefinedVariableCode(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.EvalInGlobal(context.Background(), "missing + 1")
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUndefinedVariable, re.Code)
	assert.Equal(t, "missing", re.Name)
}

func TestIsIdentifier(t *testing.T) {
	assert.True(t, isIdentifier("x"))
	assert.True(t, isIdentifier("tw0001"))
	assert.True(t, isIdentifier("_private"))
	assert.False(t, isIdentifier(""))
	assert.False(t, isIdentifier("1x"))
	assert.False(t, isIdentifier("a-b"))
	assert.False(t, isIdentifier("a.b"))
}
