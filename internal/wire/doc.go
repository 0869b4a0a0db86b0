// Package wire provides the value types exchanged with the numerical engine.
//
// This package contains type definitions and their serializations only. All
// other internal packages import wire; wire imports nothing internal. This
// keeps the wire model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is sealed: only the types declared in value.go implement it
//   - Numeric arrays are stored column-major with an explicit shape
//   - Handles and function references are opaque; their meaning lives in
//     the engine that issued them
//   - Canonical JSON (canonical.go) is the only serialization used for
//     digests; CBOR (codec.go) is the storage format
package wire
