package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetDefault restores the package singleton between tests.
func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	defaultFactory = nil
	defaultOpts = nil
	defaultSession = nil
	defaultClosed = false
	defaultMu.Unlock()
}

func TestDefaultStartsLazilyOnce(t *testing.T) {
	resetDefault(t)
	t.Cleanup(func() { resetDefault(t) })

	starts := 0
	fb := newFakeBackend()
	SetFactory(func(context.Context) (Backend, error) {
		starts++
		return fb, nil
	}, WithLogger(quietLogger()))

	assert.Equal(t, 0, starts)

	s1, err := Default(context.Background())
	require.NoError(t, err)
	s2, err := Default(context.Background())
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.Equal(t, 1, starts)
}

func TestDefaultWithoutFactory(t *testing.T) {
	resetDefault(t)
	t.Cleanup(func() { resetDefault(t) })

	_, err := Default(context.Background())
	assert.Error(t, err)
}

func TestDefaultFactoryError(t *testing.T) {
	resetDefault(t)
	t.Cleanup(func() { resetDefault(t) })

	SetFactory(func(context.Context) (Backend, error) {
		return nil, errors.New("engine not found")
	})
	_, err := Default(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine not found")
}

func TestShutdownExactlyOnce(t *testing.T) {
	resetDefault(t)
	t.Cleanup(func() { resetDefault(t) })

	fb := newFakeBackend()
	SetFactory(func(context.Context) (Backend, error) { return fb, nil }, WithLogger(quietLogger()))

	_, err := Default(context.Background())
	require.NoError(t, err)

	require.NoError(t, Shutdown())
	require.NoError(t, Shutdown())
	assert.Equal(t, 1, fb.closed)

	_, err = Default(context.Background())
	assert.True(t, IsClosed(err))
}

func TestSetFactoryIgnoredAfterStart(t *testing.T) {
	resetDefault(t)
	t.Cleanup(func() { resetDefault(t) })

	first := newFakeBackend()
	SetFactory(func(context.Context) (Backend, error) { return first, nil }, WithLogger(quietLogger()))
	s1, err := Default(context.Background())
	require.NoError(t, err)

	SetFactory(func(context.Context) (Backend, error) { return newFakeBackend(), nil })
	s2, err := Default(context.Background())
	require.NoError(t, err)
	assert.Same(t, s1, s2)
}
