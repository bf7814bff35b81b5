package state

import (
	"errors"
	"fmt"
)

var (
	// ErrOpen wraps any failure to open or create the store.
	ErrOpen = errors.New("cannot open state database")

	// ErrUnsupportedRollbackDistance rejects rollback targets other than the
	// last height or its immediate predecessor. The pred/ siblings hold a
	// single predecessor, so a deeper rewind is unreconstructible.
	ErrUnsupportedRollbackDistance = errors.New("only a single-block rollback is supported")

	// ErrUnsupportedHeight rejects overwrites at heights other than the last
	// committed one.
	ErrUnsupportedHeight = errors.New("overwrite is only supported at the last committed height")

	// ErrMerkleDecode reports a merkle store blob that could not be parsed.
	ErrMerkleDecode = errors.New("cannot decode merkle tree store")

	// ErrRollback aggregates a failure inside the rollback batch. The batch
	// is discarded, nothing is committed.
	ErrRollback = errors.New("rollback failed")
)

// ErrUnknownKey reports a metadata key required for rollback that is absent
// from storage.
type ErrUnknownKey struct {
	Key string
}

func (e ErrUnknownKey) Error() string {
	return fmt.Sprintf("unknown storage key %q", e.Key)
}
