package common

import (
	"errors"
	"fmt"
	"strings"
)

// KeySeparator joins the segments of a storage key.
const KeySeparator = "/"

var ErrEmptyKey = errors.New("empty storage key")

// Key is a hierarchical storage path. Segments are UTF-8 strings joined by
// `/`. The zero value is the empty key.
type Key struct {
	Segments []string
}

// ParseKey splits a string into a Key. Empty segments are rejected so that
// every valid key round-trips through String.
func ParseKey(s string) (Key, error) {
	if s == "" {
		return Key{}, ErrEmptyKey
	}
	segments := strings.Split(s, KeySeparator)
	for _, seg := range segments {
		if seg == "" {
			return Key{}, fmt.Errorf("key %q contains an empty segment", s)
		}
	}
	return Key{Segments: segments}, nil
}

// MustParseKey is ParseKey for static keys known to be well formed.
func MustParseKey(s string) Key {
	k, err := ParseKey(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Key) String() string { return strings.Join(k.Segments, KeySeparator) }

func (k Key) IsEmpty() bool { return len(k.Segments) == 0 }

// Push appends a single segment, returning a new key.
func (k Key) Push(segment string) (Key, error) {
	if segment == "" || strings.Contains(segment, KeySeparator) {
		return Key{}, fmt.Errorf("invalid key segment %q", segment)
	}
	segments := make([]string, 0, len(k.Segments)+1)
	segments = append(segments, k.Segments...)
	segments = append(segments, segment)
	return Key{Segments: segments}, nil
}

// Join concatenates two keys.
func (k Key) Join(other Key) Key {
	segments := make([]string, 0, len(k.Segments)+len(other.Segments))
	segments = append(segments, k.Segments...)
	segments = append(segments, other.Segments...)
	return Key{Segments: segments}
}

// FirstSegment returns the leading segment, or "" for the empty key.
func (k Key) FirstSegment() string {
	if len(k.Segments) == 0 {
		return ""
	}
	return k.Segments[0]
}
