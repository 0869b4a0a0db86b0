// Package bridge is the host-facing layer over an engine session.
//
// It converts host values to and from the engine's wire values (Encode and
// Decode), wraps live engine objects in *Object proxies, exposes engine
// functions and methods as *Callable values, resolves how many outputs to
// request from the engine, and routes engine-to-host callbacks through a
// callback.Registry via the Adapter.
//
// A typical call:
//
//	s := session.New(engine.New())
//	b := bridge.New(s)
//	v, err := b.Call(ctx, "plus", 1, 2)
//
// Markers in variadic argument lists:
//
//	b.Call(ctx, "f", x, bridge.KW("tol", 1e-6))   // keyword argument
//	b.Call(ctx, "f", x, bridge.Nargout(2))        // explicit output count
package bridge
