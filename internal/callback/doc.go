// Package callback holds host functions that the engine can call back into.
//
// A host callable is registered under an opaque id when it is passed to the
// engine. The engine later invokes it through an adapter function, naming it
// only by id. Host class constructors are registered the same way through a
// ClassFactory; each constructed instance is stored under a key made of the
// class typename and a fresh id.
package callback
