// Package engine implements an in-process reference engine behind the
// session.Backend interface.
//
// The engine serves the classes and functions declared in a catalog (see
// package catalog) plus a fixed table of builtins, and keeps a global
// namespace that statements passed to EvalInGlobal read and write.
//
// OBJECTS:
//
// Every class instance lives in the engine and is known to the host only
// by its wire.Handle. Handle classes mutate in place. Value classes copy on
// every mutation, and the mutating call returns the copy's handle.
//
// A thin wrapper is an object of class "thinwrapper" whose ObjectString
// property names a global variable holding the real object. Calls and
// field reads through a wrapper reach the wrapped object; clearing the
// global invalidates the wrapper.
//
// NAME RESOLUTION:
//
// A call by name dispatches, in order, to a method of the leftmost object
// argument whose class defines the name, a catalog function, a builtin and
// finally a class constructor.
//
// OUTPUT COUNTS:
//
// A callee declaring N outputs accepts nargout up to max(N, 1); asking a
// zero-output function for one output returns no values. Varargout callees
// accept any nargout their body can satisfy.
//
// HOST CALLBACKS:
//
// The invoke_by_id, invoke_by_id_kw, call_obj_method, get_obj_prop and
// remove_object builtins call the session.Callbacks attached with
// AttachCallbacks. Callbacks may re-enter the engine; nesting is bounded by
// a DepthQuota.
//
// Handle ids come from a Clock and are never reused.
package engine
