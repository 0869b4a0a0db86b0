package wire

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainValue   = "enginebridge/value/v1"
	DomainJournal = "enginebridge/journal/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00}) // Null separator - CRITICAL for security
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest computes the content address of a wire value.
// Two values with equal canonical forms have equal digests.
func Digest(v Value) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("Digest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}

// JournalID computes the identity of one journaled engine call.
// The ID is stable given the same workspace, sequence number and call.
func JournalID(workspace string, seq int64, op, name string, nargout int) (string, error) {
	obj := map[string]any{
		"workspace": workspace,
		"seq":       seq,
		"op":        op,
		"name":      name,
		"nargout":   nargout,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("JournalID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainJournal, canonical), nil
}

// MustDigest is like Digest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDigest(v Value) string {
	d, err := Digest(v)
	if err != nil {
		panic(err)
	}
	return d
}
