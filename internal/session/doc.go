// Package session owns the single serialized connection to an engine.
//
// Every primitive call (Invoke, ClassOf, ReadGlobal, ...) goes through one
// Session, which holds a mutex for the duration of the call, classifies
// engine failures into typed errors, logs, and reports each completed call
// to registered observers. Host callbacks that run while the engine is busy
// receive the in-flight context and may call back into the same Session
// without deadlocking.
//
// A process normally uses one Session, obtained through Default after a
// Factory has been registered with SetFactory.
package session
