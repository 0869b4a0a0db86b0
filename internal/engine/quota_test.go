package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepthQuota_WithinLimit(t *testing.T) {
	q := NewDepthQuota(3)

	var releases []func()
	for i := 0; i < 3; i++ {
		release, err := q.Enter("cb-1")
		require.NoError(t, err, "level %d should be allowed", i+1)
		releases = append(releases, release)
	}
	assert.Equal(t, 3, q.Current())
	assert.Equal(t, 3, q.Max())

	for _, release := range releases {
		release()
	}
	assert.Equal(t, 0, q.Current())
}

func TestDepthQuota_ExceedsLimit(t *testing.T) {
	q := NewDepthQuota(1)

	release, err := q.Enter("outer")
	require.NoError(t, err)

	_, err = q.Enter("inner")
	require.Error(t, err)

	var de *DepthExceededError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "inner", de.ID)
	assert.Equal(t, 2, de.Depth)
	assert.Equal(t, 1, de.Limit)

	// The failed entry does not hold a level.
	assert.Equal(t, 1, q.Current())
	release()

	_, err = q.Enter("again")
	assert.NoError(t, err)
}

func TestDepthQuota_ZeroLimit(t *testing.T) {
	q := NewDepthQuota(0)

	_, err := q.Enter("cb")
	require.Error(t, err)
	assert.True(t, IsDepthExceeded(err))
}

func TestDepthExceededError_Error(t *testing.T) {
	err := &DepthExceededError{ID: "cb-abc", Depth: 65, Limit: 64}

	msg := err.Error()
	assert.Contains(t, msg, "cb-abc")
	assert.Contains(t, msg, "65")
	assert.Contains(t, msg, "64")
}

func TestIsDepthExceeded(t *testing.T) {
	assert.True(t, IsDepthExceeded(&DepthExceededError{ID: "x", Depth: 2, Limit: 1}))
	assert.False(t, IsDepthExceeded(nil))
	assert.False(t, IsDepthExceeded(assert.AnError))
}

func TestEngine_WithMaxCallbackDepth(t *testing.T) {
	e := New()
	assert.Equal(t, DefaultMaxCallbackDepth, e.depth.Max())

	e = New(WithMaxCallbackDepth(8))
	assert.Equal(t, 8, e.depth.Max())
}
