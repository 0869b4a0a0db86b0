package callback

import "github.com/google/uuid"

// IDGenerator produces registration ids and instance key suffixes.
// Implemented by UUIDGenerator (production) and testutil.SequenceGenerator
// (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random UUIDv4 ids.
//
// Thread-safety: UUIDGenerator is stateless and safe for concurrent use.
type UUIDGenerator struct{}

// Generate creates a new UUIDv4 and returns it as a hyphenated string.
func (UUIDGenerator) Generate() string {
	return uuid.NewString()
}
