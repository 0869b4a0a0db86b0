package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/testutil"
	"github.com/roach88/enginebridge/internal/wire"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithNameSource(testutil.NewSequenceGenerator("tw"))}, opts...)
	e := New(opts...)
	t.Cleanup(func() { e.Close() })
	return e
}

func invoke(t *testing.T, e *Engine, name string, receiver *wire.Handle, nargout int, args ...wire.Value) []wire.Value {
	t.Helper()
	out, err := e.Invoke(context.Background(), name, receiver, args, nargout)
	require.NoError(t, err)
	return out
}

func construct(t *testing.T, e *Engine, class string, args ...wire.Value) wire.Handle {
	t.Helper()
	out := invoke(t, e, class, nil, 1, args...)
	require.Len(t, out, 1)
	h, ok := out[0].(wire.Handle)
	require.True(t, ok, "constructor should return a handle, got %T", out[0])
	return h
}

// recordingHost is a session.Callbacks that records calls.
type recordingHost struct {
	calls   []string
	invoke  func(ctx context.Context, id string, args []wire.Value) (wire.Value, error)
	removed []string
}

func (h *recordingHost) InvokeByID(ctx context.Context, id string, args []wire.Value, hasKeywords bool) (wire.Value, error) {
	h.calls = append(h.calls, id)
	if h.invoke != nil {
		return h.invoke(ctx, id, args)
	}
	if hasKeywords {
		return args[len(args)-1], nil
	}
	return wire.Double(float64(len(args))), nil
}

func (h *recordingHost) CallObjectMethod(_ context.Context, key, method string, args []wire.Value) (wire.Value, error) {
	h.calls = append(h.calls, key+"."+method)
	return wire.Char(method), nil
}

func (h *recordingHost) ObjectProperty(_ context.Context, key, name string) (wire.Value, error) {
	h.calls = append(h.calls, key+"#"+name)
	return wire.Char(name), nil
}

func (h *recordingHost) RemoveObject(_ context.Context, key string) error {
	h.removed = append(h.removed, key)
	return nil
}

var _ session.Callbacks = (*recordingHost)(nil)

func TestEngine_New(t *testing.T) {
	e := New()
	defer e.Close()

	assert.NotNil(t, e.Catalog())
	assert.NotNil(t, e.clock)
	assert.Equal(t, DefaultMaxCallbackDepth, e.depth.Max())
	assert.Empty(t, e.Globals())
}

func TestInvoke_FunctionOutputs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	out := invoke(t, e, "minmax", nil, 2, wire.Row(3, 1, 2))
	assert.Equal(t, []wire.Value{wire.Double(1), wire.Double(3)}, out)

	out = invoke(t, e, "minmax", nil, 1, wire.Row(3, 1, 2))
	assert.Equal(t, []wire.Value{wire.Double(1)}, out)

	_, err := e.Invoke(ctx, "minmax", nil, []wire.Value{wire.Row(3, 1, 2)}, 3)
	require.Error(t, err)
	assert.True(t, IsTooManyOutputs(err))
}

func TestInvoke_NargoutZeroKeepsFirstValue(t *testing.T) {
	e := newTestEngine(t)

	out := invoke(t, e, "stats", nil, 0, wire.Row(1, 2, 3))
	assert.Equal(t, []wire.Value{wire.Double(1)}, out)
}

func TestInvoke_ZeroOutputCalleeAcceptsOne(t *testing.T) {
	e := newTestEngine(t)

	out := invoke(t, e, "noop", nil, 1)
	assert.Empty(t, out)

	_, err := e.Invoke(context.Background(), "noop", nil, nil, 2)
	assert.True(t, IsTooManyOutputs(err))
}

func TestInvoke_Varargout(t *testing.T) {
	e := newTestEngine(t)

	out := invoke(t, e, "pass", nil, 3, wire.Double(1), wire.Char("a"), wire.Logical(true))
	assert.Equal(t, []wire.Value{wire.Double(1), wire.Char("a"), wire.Logical(true)}, out)

	_, err := e.Invoke(context.Background(), "pass", nil, []wire.Value{wire.Double(1)}, 2)
	assert.True(t, IsTooManyOutputs(err), "varargout still needs enough values")
}

func TestInvoke_NegativeNargout(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Invoke(context.Background(), "sum", nil, []wire.Value{wire.Double(1)}, -1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative nargout")
}

func TestInvoke_Undefined(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Invoke(context.Background(), "no_such_function", nil, nil, 1)
	require.Error(t, err)
	assert.True(t, IsUndefined(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeUndefinedFunction, re.Code)
	assert.Equal(t, "no_such_function", re.Name)
}

func TestHandleObject_Methods(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter")

	invoke(t, e, "increment", &c, 0)
	invoke(t, e, "increment", &c, 0, wire.Double(4))
	assert.Equal(t, []wire.Value{wire.Double(5)}, invoke(t, e, "value", &c, 1))

	invoke(t, e, "rename", &c, 0, wire.Char("clicks"))
	out := invoke(t, e, "snapshot", &c, 2)
	assert.Equal(t, []wire.Value{wire.Double(5), wire.Char("clicks")}, out)
}

func TestHandleObject_ConstructorOverrides(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter", wire.Char("count"), wire.Double(7))

	v, err := e.FieldAccess(context.Background(), c, "count")
	require.NoError(t, err)
	assert.Equal(t, wire.Double(7), v)

	_, err = e.Invoke(context.Background(), "Counter", nil, []wire.Value{wire.Char("bogus"), wire.Double(1)}, 1)
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNoProperty, re.Code)
}

func TestValueObject_MutationCopies(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	p := construct(t, e, "Point", wire.Char("x"), wire.Double(1))

	out := invoke(t, e, "shift", &p, 1, wire.Double(2))
	moved, ok := out[0].(wire.Handle)
	require.True(t, ok)
	assert.NotEqual(t, p, moved)

	x, err := e.FieldAccess(ctx, moved, "x")
	require.NoError(t, err)
	assert.Equal(t, wire.Double(3), x)

	x, err = e.FieldAccess(ctx, p, "x")
	require.NoError(t, err)
	assert.Equal(t, wire.Double(1), x, "original is unchanged")

	nh, err := e.FieldAssign(ctx, p, "y", wire.Double(9))
	require.NoError(t, err)
	assert.NotEqual(t, p, nh)
}

func TestHandleObject_FieldAssignKeepsHandle(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter")

	nh, err := e.FieldAssign(context.Background(), c, "label", wire.Char("x"))
	require.NoError(t, err)
	assert.Equal(t, c, nh)
}

func TestObjectDispatch_LeftmostObjectArgument(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter", wire.Char("count"), wire.Double(3))

	out := invoke(t, e, "plus", nil, 1, wire.Double(2), c)
	assert.Equal(t, []wire.Value{wire.Double(5)}, out)

	out = invoke(t, e, "lt", nil, 1, c, wire.Double(10))
	assert.Equal(t, []wire.Value{wire.Logical(true)}, out)

	out = invoke(t, e, "uminus", nil, 1, c)
	assert.Equal(t, []wire.Value{wire.Double(-3)}, out)
}

func TestDelegatedIndexing(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	v := construct(t, e, "Vector")

	assert.Equal(t, []wire.Value{wire.Double(3)}, invoke(t, e, "numel", nil, 1, v))

	subs := wire.Struct{"type": wire.Char("()"), "subs": wire.Cell{wire.Double(2)}}
	assert.Equal(t, []wire.Value{wire.Double(2)}, invoke(t, e, "subsref", nil, 1, v, subs))

	out := invoke(t, e, "subsasgn", nil, 1, v, subs, wire.Double(20))
	nv, ok := out[0].(wire.Handle)
	require.True(t, ok)

	items, err := e.FieldAccess(ctx, nv, "items")
	require.NoError(t, err)
	assert.Equal(t, wire.Row(1, 20, 3), items)
}

func TestAddProp(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	b := construct(t, e, "Bag")

	invoke(t, e, "addprop", &b, 0, wire.Char("color"), wire.Char("red"))
	invoke(t, e, "addprop", &b, 0, wire.Char("size"))

	props, err := e.PropertiesOf(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "size"}, props)

	v, err := e.FieldAccess(ctx, b, "size")
	require.NoError(t, err)
	assert.Equal(t, wire.Empty{}, v)
}

func TestDeletedHandleIsStale(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter")

	invoke(t, e, "delete", nil, 0, c)

	_, err := e.Invoke(context.Background(), "value", &c, nil, 1)
	require.Error(t, err)
	assert.True(t, IsInvalidHandle(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.StaleHandle())

	ok, err := e.IsObject(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, ok, "a deleted object is still an object")
}

func TestThinWrapper(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c := construct(t, e, "Counter")

	out := invoke(t, e, "thinwrap", nil, 1, c)
	tw := out[0].(wire.Handle)

	class, err := e.ClassOf(ctx, tw)
	require.NoError(t, err)
	assert.Equal(t, ThinWrapperClass, class)

	binding, err := e.FieldAccess(ctx, tw, ObjectStringProperty)
	require.NoError(t, err)
	assert.Equal(t, wire.Char("tw0001"), binding)
	assert.Equal(t, c, e.Globals()["tw0001"])

	// Calls through the wrapper reach the wrapped object.
	invoke(t, e, "increment", &tw, 0)
	assert.Equal(t, []wire.Value{wire.Double(1)}, invoke(t, e, "value", &c, 1))

	e.clearGlobal("tw0001")
	_, err = e.Invoke(ctx, "value", &tw, nil, 1)
	require.Error(t, err)
	assert.True(t, IsUndefined(err))
}

func TestDeclaredOutputCount(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c := construct(t, e, "Counter")

	tests := []struct {
		name       string
		receiver   *wire.Handle
		n          int
		determined bool
	}{
		{"snapshot", &c, 2, true},
		{"increment", &c, 0, true},
		{"value", &c, 1, true},
		{"minmax", nil, 2, true},
		{"stats", nil, 3, true},
		{"pass", nil, 0, false},
		{"feval", nil, 0, false},
		{"sum", nil, 1, true},
		{"Counter", nil, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, determined, err := e.DeclaredOutputCount(ctx, tt.name, tt.receiver)
			require.NoError(t, err)
			assert.Equal(t, tt.n, n)
			assert.Equal(t, tt.determined, determined)
		})
	}

	_, _, err := e.DeclaredOutputCount(ctx, "nothing_here", nil)
	assert.True(t, IsUndefined(err))
}

func TestIsInstanceOf(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c := construct(t, e, "Counter")
	p := construct(t, e, "Point")

	tests := []struct {
		name  string
		value wire.Value
		class string
		want  bool
	}{
		{"handle class", c, "handle", true},
		{"value class", p, "handle", false},
		{"exact class", p, "Point", true},
		{"double numeric", wire.Double(1), "numeric", true},
		{"int32 integer", wire.Array{Class: wire.ClassInt32, Shape: []int{1, 1}, Data: []float64{1}}, "integer", true},
		{"char not numeric", wire.Char("a"), "numeric", false},
		{"single float", wire.Array{Class: wire.ClassSingle, Shape: []int{1, 1}, Data: []float64{1}}, "float", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.IsInstanceOf(ctx, tt.value, tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIntrospection(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	c := construct(t, e, "Counter")

	methods, err := e.MethodsOf(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"increment", "value", "rename", "snapshot", "describe"}, methods[:5])

	fields, err := e.FieldNamesOf(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "label"}, fields)

	isFn, err := e.IsFunctionHandle(ctx, wire.FuncRef{Name: "sum"})
	require.NoError(t, err)
	assert.True(t, isFn)

	isFn, err = e.IsFunctionHandle(ctx, wire.Char("sum"))
	require.NoError(t, err)
	assert.False(t, isFn)
}

func TestGlobals(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.WriteGlobal(ctx, "x", wire.Double(1)))
	v, err := e.ReadGlobal(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, wire.Double(1), v)

	_, err = e.ReadGlobal(ctx, "y")
	assert.True(t, IsUndefined(err))

	err = e.WriteGlobal(ctx, "1bad", wire.Double(1))
	require.Error(t, err)
}

func TestHostCallbacks(t *testing.T) {
	e := newTestEngine(t)
	host := &recordingHost{}
	e.AttachCallbacks(host)

	fn := wire.HostFunc{ID: "cb0001", Adapter: "invoke_by_id"}
	out := invoke(t, e, "feval", nil, 1, fn, wire.Double(1), wire.Double(2))
	assert.Equal(t, []wire.Value{wire.Double(2)}, out)

	kw := wire.HostFunc{ID: "cb0002", Adapter: "invoke_by_id_kw"}
	out = invoke(t, e, "feval", nil, 1, kw, wire.Double(1), wire.Struct{"scale": wire.Double(3)})
	assert.Equal(t, []wire.Value{wire.Struct{"scale": wire.Double(3)}}, out)

	out = invoke(t, e, "call_obj_method", nil, 1, wire.Char("obj0001"), wire.Char("area"))
	assert.Equal(t, []wire.Value{wire.Char("area")}, out)

	out = invoke(t, e, "get_obj_prop", nil, 1, wire.Char("obj0001"), wire.Char("width"))
	assert.Equal(t, []wire.Value{wire.Char("width")}, out)

	invoke(t, e, "remove_object", nil, 0, wire.Char("obj0001"))

	assert.Equal(t, []string{"cb0001", "cb0002", "obj0001.area", "obj0001#width"}, host.calls)
	assert.Equal(t, []string{"obj0001"}, host.removed)
	assert.Equal(t, 0, e.depth.Current(), "depth released after callbacks")
}

func TestHostCallbacks_NoHost(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Invoke(context.Background(), "invoke_by_id", nil, []wire.Value{wire.Char("cb0001")}, 1)
	require.Error(t, err)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeNoCallbacks, re.Code)
}

func TestHostCallbacks_ErrorWrapped(t *testing.T) {
	e := newTestEngine(t)
	sentinel := errors.New("host exploded")
	e.AttachCallbacks(&recordingHost{
		invoke: func(context.Context, string, []wire.Value) (wire.Value, error) {
			return nil, sentinel
		},
	})

	_, err := e.Invoke(context.Background(), "invoke_by_id", nil, []wire.Value{wire.Char("cb0001")}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeHostError, re.Code)
}

func TestHostCallbacks_DepthLimit(t *testing.T) {
	e := newTestEngine(t, WithMaxCallbackDepth(2))
	host := &recordingHost{}
	host.invoke = func(ctx context.Context, id string, _ []wire.Value) (wire.Value, error) {
		out, err := e.Invoke(ctx, "invoke_by_id", nil, []wire.Value{wire.Char(id)}, 1)
		if err != nil {
			return nil, err
		}
		return out[0], nil
	}
	e.AttachCallbacks(host)

	_, err := e.Invoke(context.Background(), "invoke_by_id", nil, []wire.Value{wire.Char("cb0001")}, 1)
	require.Error(t, err)
	assert.True(t, IsDepthExceeded(err))
	assert.Len(t, host.calls, 2)
	assert.Equal(t, 0, e.depth.Current())
}

func TestDisplayString(t *testing.T) {
	e := newTestEngine(t)
	c := construct(t, e, "Counter")

	out := invoke(t, e, "describe", &c, 1)
	want := "  <a href=\"matlab:helpPopup Counter\" style=\"font-weight:bold\">Counter</a> with properties:\n" +
		"\n    count: 0" +
		"\n    label: 'counter'"
	assert.Equal(t, []wire.Value{wire.Char(want)}, out)

	out = invoke(t, e, "display_string", nil, 1, wire.Row(1, 2, 3))
	assert.Equal(t, []wire.Value{wire.Char("[1 2 3]")}, out)
}

func TestMakeIndirect(t *testing.T) {
	e := newTestEngine(t)

	out := invoke(t, e, "make_indirect", nil, 1, wire.Double(42))
	s, ok := out[0].(wire.Char)
	require.True(t, ok)
	require.Len(t, string(s), len(IndirectPrefix)+indirectNameLength)
	assert.Equal(t, IndirectPrefix, string(s[:len(IndirectPrefix)]))

	name := string(s[len(IndirectPrefix):])
	assert.Equal(t, wire.Double(42), e.Globals()[name])
}

func TestClose_Idempotent(t *testing.T) {
	e := New()
	c := construct(t, e, "Counter")

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Invoke(context.Background(), "value", &c, nil, 1)
	assert.True(t, IsInvalidHandle(err))
}
