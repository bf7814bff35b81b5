package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const HashLength = 32

// Hash represents a 32-byte digest. Its canonical string form is lowercase hex
// without a prefix, which is also how hashes appear in storage keys.
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// Sha256 hashes the concatenation of the given byte slices.
func Sha256(data ...[]byte) Hash {
	d := sha256.New()
	for _, b := range data {
		d.Write(b)
	}
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string { return hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// MarshalBinary lets hashes serialize as plain byte strings in the canonical
// value encoding.
func (h Hash) MarshalBinary() ([]byte, error) { return h.Bytes(), nil }

func (h *Hash) UnmarshalBinary(b []byte) error {
	if len(b) != HashLength {
		return fmt.Errorf("invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return nil
}

// HashFromHex parses a lowercase or uppercase hex string into a Hash.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != HashLength {
		return h, fmt.Errorf("invalid hash %q: expected %d bytes, got %d", s, HashLength, len(b))
	}
	copy(h[:], b)
	return h, nil
}
