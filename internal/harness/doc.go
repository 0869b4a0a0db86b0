// Package harness runs YAML conformance scenarios against the bridge and a
// fresh reference engine.
//
// # Scenario Format
//
//	name: counter_lifecycle
//	description: "What this scenario validates"
//	catalog: ./catalog            # optional, defaults to the built-in one
//	setup:
//	  - global: limit
//	    value: 10
//	steps:
//	  - new: Counter
//	    bind: c
//	    expect: { class: Counter }
//	  - method: c.increment
//	    outputs: 0
//	  - get: c.count
//	    expect: { value: 1 }
//	  - call: minmax
//	    args: [[3, 1, 2]]
//	    outputs: 2
//	    bind: mm
//	assertions:
//	  - type: trace_contains
//	    op: invoke
//	    name: minmax
//	    nargout: 2
//	  - type: trace_order
//	    calls: ["invoke:increment", "field_access:count"]
//	  - type: binding_equals
//	    binding: mm
//	    value: [1, 3]
//
// Arguments written as "$name" refer to values bound by earlier steps.
//
// # Assertion Types
//
//   - trace_contains: a call with the given op and name (and nargout) was made
//   - trace_order: "op:name" calls appear in the given order
//   - trace_count: a call was made exactly N times
//   - binding_equals: a bound value equals the expected value
//
// # Deterministic Testing
//
// Binding names, callback ids and temporary globals come from
// testutil.SequenceGenerator, and handle ids from the engine's logical
// clock, so the same scenario always produces the same trace. Traces can be
// compared against golden files with RunWithGolden.
package harness
