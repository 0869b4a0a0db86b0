package engine

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// DepthQuota bounds how deeply host callbacks may nest.
//
// A host callback may call back into the engine, which may call the host
// again. Each entry into the host takes one level; exceeding the limit fails
// the innermost call instead of recursing without bound.
type DepthQuota struct {
	max     int
	current atomic.Int64
}

// NewDepthQuota creates a quota with the given limit.
func NewDepthQuota(max int) *DepthQuota {
	return &DepthQuota{max: max}
}

// Enter takes one level for the callback id. The returned release must be
// called when the callback returns.
func (q *DepthQuota) Enter(id string) (release func(), err error) {
	depth := q.current.Add(1)
	if int(depth) > q.max {
		q.current.Add(-1)
		return nil, &DepthExceededError{ID: id, Depth: int(depth), Limit: q.max}
	}
	return func() { q.current.Add(-1) }, nil
}

// Current returns the current nesting depth.
func (q *DepthQuota) Current() int {
	return int(q.current.Load())
}

// Max returns the nesting limit.
func (q *DepthQuota) Max() int {
	return q.max
}

// DepthExceededError is returned when host callbacks nest past the limit.
type DepthExceededError struct {
	ID    string // callback that would have exceeded the limit
	Depth int
	Limit int
}

// Error implements the error interface.
func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("callback %s exceeded max nesting depth: %d > %d limit", e.ID, e.Depth, e.Limit)
}

// IsDepthExceeded returns true if the error is a DepthExceededError.
func IsDepthExceeded(err error) bool {
	var de *DepthExceededError
	return errors.As(err, &de)
}
