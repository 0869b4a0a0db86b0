package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/enginebridge/internal/bridge"
	"github.com/roach88/enginebridge/internal/callback"
	"github.com/roach88/enginebridge/internal/catalog"
	"github.com/roach88/enginebridge/internal/engine"
	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a fresh reference engine with deterministic
// binding, callback and temporary names.
type Harness struct {
	bridge  *bridge.Bridge
	result  *Result
	tracing bool
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh engine for isolation.
//
// Execution flow:
// 1. Load the catalog and start an engine session
// 2. Execute setup steps (untraced; any failure aborts)
// 3. Execute traced steps, checking each step's expect clause
// 4. Evaluate assertions against the trace and bindings
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	cat := catalog.Default()
	if scenario.Catalog != "" {
		var err error
		cat, err = catalog.LoadDir(scenario.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	// Suppress logs in tests
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &Harness{result: NewResult()}

	eng := engine.New(
		engine.WithCatalog(cat),
		engine.WithLogger(logger),
		engine.WithNameSource(testutil.NewSequenceGenerator("tw")),
	)
	sess := session.New(eng, session.WithLogger(logger), session.WithObserver(h.observe))
	defer sess.Close()

	registry := callback.NewRegistry(
		callback.WithIDGenerator(testutil.NewSequenceGenerator("cb")),
		callback.WithLogger(logger),
	)
	h.bridge = bridge.New(sess,
		bridge.WithRegistry(registry),
		bridge.WithNameSource(testutil.NewSequenceGenerator("tmp")),
		bridge.WithLogger(logger),
	)

	for i := range scenario.Setup {
		step := &scenario.Setup[i]
		got, err := h.execute(ctx, step)
		if msg := h.check(step, got, err); msg != "" {
			return nil, fmt.Errorf("failed to execute setup[%d] (%s): %s", i, step.Kind(), msg)
		}
	}

	h.tracing = true
	for i := range scenario.Steps {
		step := &scenario.Steps[i]
		got, err := h.execute(ctx, step)
		if msg := h.check(step, got, err); msg != "" {
			h.result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Kind(), msg))
		}
	}
	h.tracing = false

	for _, errMsg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(errMsg)
	}

	return h.result, nil
}

func (h *Harness) observe(c session.Call) {
	if h.tracing {
		h.result.Trace = append(h.result.Trace, traceEvent(c))
	}
}

// execute performs one step and returns its decoded result.
func (h *Harness) execute(ctx context.Context, step *Step) (any, error) {
	switch step.Kind() {
	case "call":
		return h.invoke(ctx, h.bridge.Function(step.Call), step)
	case "new":
		return h.invoke(ctx, h.bridge.Function(step.New), step)
	case "get":
		obj, member, err := h.target(step.Get)
		if err != nil {
			return nil, err
		}
		return obj.Get(ctx, member)
	case "set":
		obj, member, err := h.target(step.Set)
		if err != nil {
			return nil, err
		}
		v, err := h.resolve(step.Value)
		if err != nil {
			return nil, err
		}
		return nil, obj.Set(ctx, member, v)
	case "method":
		obj, member, err := h.target(step.Method)
		if err != nil {
			return nil, err
		}
		m, err := obj.Get(ctx, member)
		if err != nil {
			return nil, err
		}
		c, ok := m.(*bridge.Callable)
		if !ok {
			return nil, fmt.Errorf("%s is a property of %s, not a method", member, obj.Class())
		}
		return h.invoke(ctx, c, step)
	case "global":
		if step.Value != nil {
			v, err := h.resolve(step.Value)
			if err != nil {
				return nil, err
			}
			return nil, h.bridge.SetGlobal(ctx, step.Global, v)
		}
		return h.bridge.Global(ctx, step.Global)
	case "eval":
		return h.bridge.Eval(ctx, step.Eval)
	}
	return nil, fmt.Errorf("empty step")
}

// invoke runs a callable with the step's arguments and output count.
func (h *Harness) invoke(ctx context.Context, c *bridge.Callable, step *Step) (any, error) {
	args := make([]any, 0, len(step.Args)+len(step.Kwargs)+1)
	for _, a := range step.Args {
		v, err := h.resolve(a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	names := make([]string, 0, len(step.Kwargs))
	for k := range step.Kwargs {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v, err := h.resolve(step.Kwargs[k])
		if err != nil {
			return nil, err
		}
		args = append(args, bridge.KW(k, v))
	}
	if step.Nargout != nil {
		args = append(args, bridge.Nargout(*step.Nargout))
	}

	n := 1
	if step.Outputs != nil {
		n = *step.Outputs
	}
	switch n {
	case 0:
		return nil, c.Exec(ctx, args...)
	case 1:
		return c.Call(ctx, args...)
	default:
		out, err := c.CallN(ctx, n, args...)
		if err != nil {
			return nil, err
		}
		return bridge.Tuple(out), nil
	}
}

// target resolves "binding.member" to a bound object.
func (h *Harness) target(s string) (*bridge.Object, string, error) {
	name, member, ok := splitTarget(s)
	if !ok {
		return nil, "", fmt.Errorf("target %q must be binding.member", s)
	}
	v, ok := h.result.Bindings[name]
	if !ok {
		return nil, "", fmt.Errorf("unknown binding %q", name)
	}
	obj, ok := v.(*bridge.Object)
	if !ok {
		return nil, "", fmt.Errorf("binding %q is %T, not an object", name, v)
	}
	return obj, member, nil
}

// resolve replaces "$name" references with bound values, recursively.
// "$$" escapes a literal leading dollar sign.
func (h *Harness) resolve(v any) (any, error) {
	switch x := v.(type) {
	case string:
		if strings.HasPrefix(x, "$$") {
			return x[1:], nil
		}
		if name, ok := strings.CutPrefix(x, "$"); ok {
			bound, ok := h.result.Bindings[name]
			if !ok {
				return nil, fmt.Errorf("unknown binding %q", name)
			}
			return bound, nil
		}
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			r, err := h.resolve(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			r, err := h.resolve(e)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	}
	return v, nil
}

// check validates a step's outcome and binds its result. It returns a
// failure message, or "" when the step behaved as expected.
func (h *Harness) check(step *Step, got any, err error) string {
	exp := step.Expect
	if exp != nil && exp.Error != "" {
		if err == nil {
			return fmt.Sprintf("expected error containing %q, got %v", exp.Error, Normalize(got))
		}
		if !strings.Contains(err.Error(), exp.Error) {
			return fmt.Sprintf("expected error containing %q, got %q", exp.Error, err.Error())
		}
		return ""
	}
	if err != nil {
		return err.Error()
	}

	if step.Bind != "" {
		h.result.Bindings[step.Bind] = got
	}
	if exp == nil {
		return ""
	}
	if exp.Class != "" {
		obj, ok := got.(*bridge.Object)
		if !ok {
			return fmt.Sprintf("expected %s object, got %T", exp.Class, got)
		}
		if obj.Class() != exp.Class {
			return fmt.Sprintf("expected %s object, got %s", exp.Class, obj.Class())
		}
	}
	if exp.Value != nil && !ValuesEqual(got, exp.Value) {
		return fmt.Sprintf("expected %v, got %v", Normalize(exp.Value), Normalize(got))
	}
	return ""
}

// ValuesEqual compares a decoded bridge value with a value written in a
// scenario.
func ValuesEqual(got, want any) bool {
	return reflect.DeepEqual(Normalize(got), Normalize(want))
}

// Normalize maps decoded bridge values and YAML values onto a common
// form: numbers become float64, tuples, arrays and lists become []any,
// objects and callables become their String form.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case bridge.Tuple:
		return Normalize([]any(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Normalize(e)
		}
		return out
	case bridge.NDArray:
		f, err := x.Float64s()
		if err != nil {
			return x
		}
		out := make([]any, len(f))
		for i, e := range f {
			out[i] = e
		}
		return out
	case *bridge.Object:
		return x.String()
	case *bridge.Callable:
		return x.String()
	}
	return v
}
