// Package ethdb wraps the embedded ordered key-value store behind the
// interfaces the state engine consumes: named column families, cursors,
// atomic multi-family write transactions and an in-memory write batch.
package ethdb

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by operations that require the key to exist.
// Bucket.Get reports absence as a nil value instead.
var ErrKeyNotFound = errors.New("db: key not found")

// KV is a handle on the store. It is safe for concurrent use.
type KV interface {
	// View runs a read-only transaction. Values obtained inside are copies
	// and remain valid after the callback returns.
	View(ctx context.Context, f func(tx Tx) error) error
	// Update runs a read-write transaction, committed on nil return. A
	// transaction observes and applies writes atomically across all buckets.
	Update(ctx context.Context, f func(tx Tx) error) error
	// Begin starts a transaction whose lifetime the caller owns. Long-lived
	// read transactions back iterators; they never block writers.
	Begin(ctx context.Context, writable bool) (Tx, error)
	// Sync flushes the store to disk, blocking when wait is set.
	Sync(wait bool) error
	Close() error
}

type Tx interface {
	Bucket(name string) Bucket
	Commit() error
	Rollback()
}

type Bucket interface {
	// Get returns a copy of the value, or nil when the key is absent.
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Cursor() Cursor
}

// Cursor iterates a bucket in ascending key order.
type Cursor interface {
	// Seek positions at the first key >= the given key. A nil key result
	// means the range is exhausted.
	Seek(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Close()
}
