package session

import (
	"context"
	"fmt"
	"sync"
)

// Factory starts a backend for the process-wide session.
type Factory func(ctx context.Context) (Backend, error)

var (
	defaultMu      sync.Mutex
	defaultFactory Factory
	defaultOpts    []Option
	defaultSession *Session
	defaultClosed  bool
)

// SetFactory registers how the process-wide session is started.
// It has no effect once the session exists.
func SetFactory(f Factory, opts ...Option) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultSession != nil {
		return
	}
	defaultFactory = f
	defaultOpts = opts
}

// Default returns the process-wide session, starting it on first use.
// After Shutdown it returns a SESSION_CLOSED error.
func Default(ctx context.Context) (*Session, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClosed {
		return nil, &Error{Code: ErrCodeClosed, Op: "default"}
	}
	if defaultSession != nil {
		return defaultSession, nil
	}
	if defaultFactory == nil {
		return nil, fmt.Errorf("session: no backend factory registered")
	}
	b, err := defaultFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: start backend: %w", err)
	}
	defaultSession = New(b, defaultOpts...)
	return defaultSession, nil
}

// Shutdown closes the process-wide session exactly once.
// Calling Shutdown before the session was started only prevents a later start.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClosed {
		return nil
	}
	defaultClosed = true
	if defaultSession == nil {
		return nil
	}
	return defaultSession.Close()
}
