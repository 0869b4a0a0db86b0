// Package catalog compiles CUE declarations of engine classes and functions.
//
// A catalog declares, for each class, its kind (handle or value), its
// properties with initial values and its methods with declared output counts
// and declarative bodies; and for each global function, its declared output
// count and the builtin that implements it. The reference engine serves
// exactly what the catalog declares.
//
// Example:
//
//	class: Counter: {
//		kind: "handle"
//		properties: count: 0
//		methods: value: body: {op: "get", field: "count"}
//	}
//	function: minmax: {outputs: 2, builtin: "minmax"}
//
// Sources are unified with an embedded schema before compiling, so
// malformed declarations fail with the CUE position of the fault.
package catalog
