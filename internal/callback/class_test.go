package callback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	Name  string
	Count float64
	hits  int
}

func (c *counter) Add(n float64) float64 {
	c.Count += n
	return c.Count
}

func (c *counter) Hits() float64 {
	c.hits++
	return float64(c.hits)
}

func (c *counter) Merge(other *counter) float64 {
	return c.Count + other.Count
}

func TestClassFactoryStoresInstances(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	factory, err := r.RegisterClass("counter", func(name string) *counter {
		return &counter{Name: name}
	})
	require.NoError(t, err)

	// the factory itself is what gets registered and handed to the engine
	id, err := r.Register(factory)
	require.NoError(t, err)
	assert.Equal(t, "cb0001", id)

	key, err := r.Call(ctx, id, []any{"a"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "countercb0002", key)
	assert.True(t, factory.IsInstanceKey(key.(string)))
	assert.False(t, factory.IsInstanceKey("countercb9999"))
	assert.Equal(t, 1, r.Instances())

	obj, ok := r.Instance(key.(string))
	require.True(t, ok)
	assert.Equal(t, "a", obj.(*counter).Name)
}

func TestObjectMethodsAndProperties(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	factory, err := r.RegisterClass("counter", func(name string) *counter {
		return &counter{Name: name}
	})
	require.NoError(t, err)

	k, err := factory.Invoke(ctx, []any{"a"}, nil)
	require.NoError(t, err)
	key := k.(string)

	// lower-case engine names resolve to exported Go members
	got, err := r.CallObjectMethod(ctx, key, "add", []any{2.0}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = r.ObjectProperty(ctx, key, "count")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = r.ObjectProperty(ctx, key, "Name")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	// niladic methods are readable as properties
	got, err = r.ObjectProperty(ctx, key, "hits")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	_, err = r.ObjectProperty(ctx, key, "missing")
	assert.Error(t, err)
	assert.False(t, IsRegistryMiss(err))

	_, err = r.CallObjectMethod(ctx, key, "missing", nil, nil)
	assert.Error(t, err)
}

func TestInstanceKeysResolveAsArguments(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	factory, err := r.RegisterClass("counter", func(name string, start float64) *counter {
		return &counter{Name: name, Count: start}
	})
	require.NoError(t, err)

	a, err := factory.Invoke(ctx, []any{"a", 1.0}, nil)
	require.NoError(t, err)
	b, err := factory.Invoke(ctx, []any{"b", 5.0}, nil)
	require.NoError(t, err)

	got, err := r.CallObjectMethod(ctx, a.(string), "merge", []any{b}, nil)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)

	args := r.ResolveInstances([]any{"plain", b, 3.0})
	assert.Equal(t, "plain", args[0])
	assert.IsType(t, &counter{}, args[1])
	assert.Equal(t, 3.0, args[2])
}

func TestRemoveObject(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	factory, err := r.RegisterClass("counter", func() *counter { return &counter{} })
	require.NoError(t, err)
	k, err := factory.Invoke(ctx, nil, nil)
	require.NoError(t, err)

	require.NoError(t, r.RemoveObject(k.(string)))
	assert.Equal(t, 0, r.Instances())

	err = r.RemoveObject(k.(string))
	assert.True(t, IsRegistryMiss(err))

	_, err = r.ObjectProperty(ctx, k.(string), "Count")
	assert.True(t, IsRegistryMiss(err))
	_, err = r.CallObjectMethod(ctx, k.(string), "Add", []any{1.0}, nil)
	assert.True(t, IsRegistryMiss(err))
}

func TestMapInstanceProperty(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	factory, err := r.RegisterClass("cfg", func() map[string]any {
		return map[string]any{"mode": "fast"}
	})
	require.NoError(t, err)
	k, err := factory.Invoke(ctx, nil, nil)
	require.NoError(t, err)

	got, err := r.ObjectProperty(ctx, k.(string), "mode")
	require.NoError(t, err)
	assert.Equal(t, "fast", got)
}

func TestRegisterClassValidation(t *testing.T) {
	r := newTestRegistry()

	_, err := r.RegisterClass("", func() {})
	assert.Error(t, err)

	_, err = r.RegisterClass("x", "not a function")
	assert.Error(t, err)
}

func TestConstructorError(t *testing.T) {
	r := newTestRegistry()
	factory, err := r.RegisterClass("counter", func(n float64) *counter { return &counter{} })
	require.NoError(t, err)

	_, err = factory.Invoke(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, IsArgumentError(err))
	assert.Equal(t, 0, r.Instances())
}
