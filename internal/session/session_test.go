package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enginebridge/internal/wire"
)

// fakeBackend records calls and lets tests hook Invoke.
type fakeBackend struct {
	active    atomic.Int32
	maxActive atomic.Int32
	onInvoke  func(ctx context.Context, name string) ([]wire.Value, error)
	globals   map[string]wire.Value
	closed    int
	callbacks Callbacks
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{globals: map[string]wire.Value{}}
}

func (f *fakeBackend) track() func() {
	n := f.active.Add(1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { f.active.Add(-1) }
}

func (f *fakeBackend) Invoke(ctx context.Context, name string, _ *wire.Handle, _ []wire.Value, nargout int) ([]wire.Value, error) {
	defer f.track()()
	if f.onInvoke != nil {
		return f.onInvoke(ctx, name)
	}
	time.Sleep(time.Millisecond)
	out := make([]wire.Value, nargout)
	for i := range out {
		out[i] = wire.Double(float64(i + 1))
	}
	return out, nil
}

func (f *fakeBackend) DeclaredOutputCount(context.Context, string, *wire.Handle) (int, bool, error) {
	return 2, true, nil
}

func (f *fakeBackend) ClassOf(context.Context, wire.Value) (string, error) { return "double", nil }

func (f *fakeBackend) IsInstanceOf(context.Context, wire.Value, string) (bool, error) {
	return false, nil
}

func (f *fakeBackend) IsObject(context.Context, wire.Value) (bool, error) { return false, nil }

func (f *fakeBackend) IsFunctionHandle(context.Context, wire.Value) (bool, error) {
	return false, nil
}

func (f *fakeBackend) PropertiesOf(context.Context, wire.Handle) ([]string, error) { return nil, nil }

func (f *fakeBackend) MethodsOf(context.Context, wire.Handle) ([]string, error) { return nil, nil }

func (f *fakeBackend) FieldNamesOf(context.Context, wire.Handle) ([]string, error) { return nil, nil }

func (f *fakeBackend) ReadGlobal(_ context.Context, name string) (wire.Value, error) {
	defer f.track()()
	v, ok := f.globals[name]
	if !ok {
		return nil, errors.New("undefined variable")
	}
	return v, nil
}

func (f *fakeBackend) WriteGlobal(_ context.Context, name string, v wire.Value) error {
	f.globals[name] = v
	return nil
}

func (f *fakeBackend) EvalInGlobal(context.Context, string) (wire.Value, error) {
	return wire.Empty{}, nil
}

func (f *fakeBackend) FieldAccess(context.Context, wire.Handle, string) (wire.Value, error) {
	return nil, staleErr{}
}

func (f *fakeBackend) FieldAssign(_ context.Context, h wire.Handle, _ string, _ wire.Value) (wire.Handle, error) {
	return h, nil
}

func (f *fakeBackend) Close() error {
	f.closed++
	return nil
}

func (f *fakeBackend) AttachCallbacks(cb Callbacks) {
	f.callbacks = cb
}

type staleErr struct{}

func (staleErr) Error() string     { return "invalid or deleted object" }
func (staleErr) StaleHandle() bool { return true }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionSerializesCalls(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb, WithLogger(quietLogger()))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Invoke(ctx, "f", nil, nil, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fb.maxActive.Load(), "calls must never overlap")
}

func TestSessionReentrantCallback(t *testing.T) {
	fb := newFakeBackend()
	fb.globals["x"] = wire.Double(3)

	var calls []Call
	s := New(fb, WithLogger(quietLogger()), WithObserver(func(c Call) {
		calls = append(calls, c)
	}))

	// the engine calls back into the host, which reads a global
	fb.onInvoke = func(ctx context.Context, name string) ([]wire.Value, error) {
		assert.True(t, s.Held(ctx))
		v, err := s.ReadGlobal(ctx, "x")
		if err != nil {
			return nil, err
		}
		return []wire.Value{v}, nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		out, err := s.Invoke(context.Background(), "outer", nil, nil, 1)
		assert.NoError(t, err)
		assert.Equal(t, []wire.Value{wire.Double(3)}, out)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested call deadlocked")
	}

	require.Len(t, calls, 2)
	assert.Equal(t, Call{Seq: 1, Op: OpReadGlobal, Name: "x", Depth: 1}, calls[0])
	assert.Equal(t, Call{Seq: 2, Op: OpInvoke, Name: "outer", Nargout: 1, Depth: 0}, calls[1])
}

func TestSessionHeldIsPerSession(t *testing.T) {
	a := New(newFakeBackend(), WithLogger(quietLogger()))
	b := New(newFakeBackend(), WithLogger(quietLogger()))

	ctx, _, release := a.enter(context.Background())
	defer release()

	assert.True(t, a.Held(ctx))
	assert.False(t, b.Held(ctx))
	assert.False(t, a.Held(context.Background()))
}

func TestSessionErrorClassification(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb, WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := s.ReadGlobal(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsForeignCall(err))
	assert.False(t, IsStaleHandle(err))
	assert.Contains(t, err.Error(), "read_global missing")

	_, err = s.FieldAccess(ctx, wire.Handle{ID: 1}, "x")
	require.Error(t, err)
	assert.True(t, IsStaleHandle(err))
	assert.True(t, IsForeignCall(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, OpFieldAccess, se.Op)
	assert.ErrorIs(t, err, staleErr{})
}

func TestSessionObserverSeesFailures(t *testing.T) {
	fb := newFakeBackend()
	var got []Call
	s := New(fb, WithLogger(quietLogger()), WithObserver(func(c Call) { got = append(got, c) }))

	_, _ = s.ReadGlobal(context.Background(), "missing")
	require.Len(t, got, 1)
	assert.Error(t, got[0].Err)
	assert.Equal(t, int64(1), got[0].Seq)
}

func TestSessionDeclaredOutputCount(t *testing.T) {
	s := New(newFakeBackend(), WithLogger(quietLogger()))
	n, determined, err := s.DeclaredOutputCount(context.Background(), "f", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, determined)
}

func TestSessionCloseOnce(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb, WithLogger(quietLogger()))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, fb.closed)
	assert.True(t, s.Closed())

	_, err := s.Invoke(context.Background(), "f", nil, nil, 1)
	assert.True(t, IsClosed(err))
	assert.False(t, IsForeignCall(err))
}

func TestSessionAttachCallbacks(t *testing.T) {
	fb := newFakeBackend()
	s := New(fb, WithLogger(quietLogger()))

	var cb Callbacks = noopCallbacks{}
	assert.True(t, s.AttachCallbacks(cb))
	assert.Equal(t, cb, fb.callbacks)
}

type noopCallbacks struct{}

func (noopCallbacks) InvokeByID(context.Context, string, []wire.Value, bool) (wire.Value, error) {
	return wire.Empty{}, nil
}

func (noopCallbacks) CallObjectMethod(context.Context, string, string, []wire.Value) (wire.Value, error) {
	return wire.Empty{}, nil
}

func (noopCallbacks) ObjectProperty(context.Context, string, string) (wire.Value, error) {
	return wire.Empty{}, nil
}

func (noopCallbacks) RemoveObject(context.Context, string) error { return nil }
