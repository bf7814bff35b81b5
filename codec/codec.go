// Package codec is the canonical binary encoding used for every typed value
// persisted in the state, block and replay protection column families.
// Subspace values are opaque bytes and never pass through here.
package codec

import (
	"errors"
	"fmt"

	ucodec "github.com/ugorji/go/codec"
)

// ErrCoding reports a typed decode failure.
var ErrCoding = errors.New("value coding failed")

var cborHandle = func() *ucodec.CborHandle {
	h := new(ucodec.CborHandle)
	// one canonical byte representation per value
	h.Canonical = true
	return h
}()

// Encode serializes a typed value.
func Encode(v interface{}) ([]byte, error) {
	var out []byte
	if err := ucodec.NewEncoderBytes(&out, cborHandle).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrCoding, err)
	}
	return out, nil
}

// MustEncode is Encode for values that cannot fail to serialize.
func MustEncode(v interface{}) []byte {
	out, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return out
}

// Decode deserializes into the given pointer.
func Decode(data []byte, into interface{}) error {
	if err := ucodec.NewDecoderBytes(data, cborHandle).Decode(into); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrCoding, err)
	}
	return nil
}
