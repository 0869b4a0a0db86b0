package store

import (
	"fmt"

	"github.com/roach88/enginebridge/internal/wire"
)

// marshalValue converts a wire value to its stored form: the CBOR blob,
// the canonical digest and the class name.
func marshalValue(v wire.Value) (blob []byte, digest, class string, err error) {
	blob, err = wire.Marshal(v)
	if err != nil {
		return nil, "", "", fmt.Errorf("marshal value: %w", err)
	}
	digest, err = wire.Digest(v)
	if err != nil {
		return nil, "", "", fmt.Errorf("digest value: %w", err)
	}
	return blob, digest, string(wire.ClassOf(v)), nil
}

// unmarshalValue decodes a stored blob and checks it against its digest.
func unmarshalValue(blob []byte, digest string) (wire.Value, error) {
	v, err := wire.Unmarshal(blob)
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	got, err := wire.Digest(v)
	if err != nil {
		return nil, fmt.Errorf("digest value: %w", err)
	}
	if got != digest {
		return nil, fmt.Errorf("digest mismatch: stored %s, computed %s", digest, got)
	}
	return v, nil
}
