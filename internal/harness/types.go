package harness

import "github.com/roach88/enginebridge/internal/session"

// TraceEvent is one engine call made while the scenario's steps ran.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	Name    string `json:"name"`
	Nargout int    `json:"nargout"`
	Depth   int    `json:"depth"`
	Error   string `json:"error,omitempty"`
}

// Key returns the "op:name" form used by trace_order.
func (e TraceEvent) Key() string {
	return e.Op + ":" + e.Name
}

func traceEvent(c session.Call) TraceEvent {
	ev := TraceEvent{
		Seq:     c.Seq,
		Op:      c.Op,
		Name:    c.Name,
		Nargout: c.Nargout,
		Depth:   c.Depth,
	}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	return ev
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step and assertion held.
	Pass bool `json:"pass"`

	// Trace contains the engine calls of the traced steps, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Bindings holds the values steps bound, decoded.
	Bindings map[string]any `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Bindings: make(map[string]any),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
