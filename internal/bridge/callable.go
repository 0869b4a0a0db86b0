package bridge

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/enginebridge/internal/wire"
)

// Callable is a host-callable wrapper for an engine function, a method bound
// to an Object, or an engine function reference.
//
// Every invocation goes through Invoke, the single dispatch point into the
// engine.
type Callable struct {
	bridge *Bridge
	name   string

	// ref is set for callables decoded from engine function references.
	ref *wire.FuncRef

	// owner is set for methods; the receiver is the owner's current handle
	// and the owner is refreshed after zero-output calls.
	owner *Object
}

// Request describes one invocation.
type Request struct {
	Args []any

	// Keywords are passed in order after Args. Kwargs follow them sorted by
	// name.
	Keywords []Kwarg
	Kwargs   map[string]any

	// Expected is how many results the caller will consume.
	Expected int

	// Nargout, when non-nil, is passed to the engine as is, bypassing
	// arity resolution.
	Nargout *int
}

// Name returns the engine function or method name.
func (c *Callable) Name() string {
	return c.name
}

// Owner returns the object a method is bound to, or nil.
func (c *Callable) Owner() *Object {
	return c.owner
}

func (c *Callable) target() (string, *wire.Handle) {
	if c.ref != nil {
		return c.ref.Name, c.ref.Receiver
	}
	if c.owner != nil {
		h := c.owner.Handle()
		return c.name, &h
	}
	return c.name, nil
}

// Arity asks the engine for the callee's declared output count.
func (c *Callable) Arity(ctx context.Context) (Arity, error) {
	name, receiver := c.target()
	n, determined, err := c.bridge.engine.DeclaredOutputCount(ctx, name, receiver)
	if err != nil {
		return Arity{}, err
	}
	return Arity{Max: n, Determined: determined}, nil
}

// Invoke runs the callable.
//
// Steps:
//  1. choose nargout (explicit override, or resolved from Expected and the
//     declared arity)
//  2. encode positional args, then keyword args as name/value pairs
//  3. call the engine
//  4. nargout 0: refresh the owner (if any) and return no results
//  5. otherwise decode the results
func (c *Callable) Invoke(ctx context.Context, req Request) ([]any, error) {
	name, receiver := c.target()

	nargout, err := c.nargout(ctx, name, req)
	if err != nil {
		return nil, err
	}

	hostArgs := req.Args
	if len(req.Keywords) > 0 || len(req.Kwargs) > 0 {
		hostArgs = append(append([]any(nil), req.Args...), flattenKwargs(req.Keywords, req.Kwargs)...)
	}
	args, err := c.bridge.EncodeAll(ctx, hostArgs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	out, err := c.bridge.engine.Invoke(ctx, name, receiver, args, nargout)
	if err != nil {
		return nil, err
	}

	if nargout == 0 {
		if c.owner != nil {
			if err := c.owner.Refresh(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return c.bridge.DecodeAll(ctx, out)
}

func (c *Callable) nargout(ctx context.Context, name string, req Request) (int, error) {
	if req.Nargout != nil {
		arity, err := c.Arity(ctx)
		if err != nil {
			return 0, err
		}
		if err := checkOverride(name, *req.Nargout, arity); err != nil {
			return 0, err
		}
		return *req.Nargout, nil
	}
	if req.Expected == 0 {
		return 0, nil
	}
	arity, err := c.Arity(ctx)
	if err != nil {
		return 0, err
	}
	return ResolveNargout(req.Expected, arity), nil
}

// Call invokes the callable expecting one result and returns it (nil when
// the engine returned nothing). Kwarg values in args become keyword
// arguments and a Nargout value overrides the output count.
func (c *Callable) Call(ctx context.Context, args ...any) (any, error) {
	out, err := c.Invoke(ctx, parseArgs(1, args))
	if err != nil || len(out) == 0 {
		return nil, err
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return Tuple(out), nil
}

// CallN invokes the callable expecting n results.
func (c *Callable) CallN(ctx context.Context, n int, args ...any) ([]any, error) {
	return c.Invoke(ctx, parseArgs(n, args))
}

// Exec invokes the callable expecting no results.
func (c *Callable) Exec(ctx context.Context, args ...any) error {
	_, err := c.Invoke(ctx, parseArgs(0, args))
	return err
}

// funcRef returns the engine function reference for this callable, asking
// the engine to resolve names that did not come from a reference.
func (c *Callable) funcRef(ctx context.Context) (wire.Value, error) {
	if c.ref != nil {
		return *c.ref, nil
	}
	var receiver *wire.Handle
	if c.owner != nil {
		h := c.owner.Handle()
		receiver = &h
	}
	args := []wire.Value{wire.Char(c.name)}
	if receiver != nil {
		args = append(args, *receiver)
	}
	out, err := c.bridge.engine.Invoke(ctx, "get_method_refs", nil, args, 1)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, unexpectedValue("get_method_refs", out)
	}
	ref, ok := out[0].(wire.FuncRef)
	if !ok {
		return nil, unexpectedValue("get_method_refs", out[0])
	}
	return ref, nil
}

// String describes the callable.
func (c *Callable) String() string {
	if c.owner != nil {
		return fmt.Sprintf("<method %s of %s>", c.name, c.owner.Class())
	}
	return fmt.Sprintf("<function %s>", c.name)
}

// parseArgs separates Kwarg and Nargout markers from positional args.
// Keywords keep call-site order; a repeated name replaces the earlier value
// in place.
func parseArgs(expected int, args []any) Request {
	req := Request{Expected: expected}
	for _, a := range args {
		switch m := a.(type) {
		case Kwarg:
			i := slices.IndexFunc(req.Keywords, func(k Kwarg) bool { return k.Name == m.Name })
			if i >= 0 {
				req.Keywords[i].Value = m.Value
			} else {
				req.Keywords = append(req.Keywords, m)
			}
		case Nargout:
			n := int(m)
			req.Nargout = &n
		default:
			req.Args = append(req.Args, a)
		}
	}
	return req
}
