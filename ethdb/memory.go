package ethdb

import "context"

// NewMemKV opens a throwaway in-memory store for tests. It is a real LMDB
// environment on a temp dir with syncing disabled, so tests exercise the same
// code paths as a persistent node.
func NewMemKV() KV {
	return NewLMDB().InMem().MustOpen(context.Background())
}
