package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator returns predictable ids for tests: prefix0001,
// prefix0002, ...
//
// This enables deterministic test execution and golden trace comparison.
// The same scenario with a fresh SequenceGenerator produces byte-identical
// binding names, callback ids and instance keys.
//
// Implements callback.IDGenerator and bridge.NameSource.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	seq    int
}

// NewSequenceGenerator creates a generator whose first id is prefix0001.
// If prefix is empty, "id" is used.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s%04d", g.prefix, g.seq)
}

// Count returns how many ids have been generated.
func (g *SequenceGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}

// Reset restarts the sequence. After Reset, the next id is prefix0001.
func (g *SequenceGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}
