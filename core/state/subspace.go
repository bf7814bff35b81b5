package state

import (
	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// diffsBucketFor selects where a key's diff rows live: persisted diffs are
// permanent, the rest only survive until the next block commits.
func diffsBucketFor(persistDiffs bool) string {
	if persistDiffs {
		return dbutils.DiffsBucket
	}
	return dbutils.RollbackBucket
}

// ReadSubspaceVal returns the current value of an account subspace key, or
// nil when absent. The cache is filled on read only; writes invalidate it
// once their batch commits.
func (db *StateDB) ReadSubspaceVal(key common.Key) ([]byte, error) {
	keyStr := key.String()
	if db.cache != nil {
		if v, ok := db.cache.HasGet(nil, []byte(keyStr)); ok && len(v) > 0 {
			// callers own the returned slice, the cached one stays private
			return common.CopyBytes(v), nil
		}
	}
	v, err := db.readValueBytes(dbutils.SubspaceBucket, keyStr)
	if err == nil && len(v) > 0 && db.cache != nil {
		db.cache.Set([]byte(keyStr), v)
	}
	return v, err
}

// batchWriteSubspaceDiff records the old/new pair of a subspace change at the
// height where it happened.
func (db *StateDB) batchWriteSubspaceDiff(batch *ethdb.WriteBatch, height types.BlockHeight,
	key common.Key, oldValue, newValue []byte, persistDiffs bool) {
	bucket := diffsBucketFor(persistDiffs)
	oldKey, newKey := dbutils.DiffKeys(key, height)
	if oldValue != nil {
		batch.Put(bucket, []byte(oldKey), oldValue)
	}
	if newValue != nil {
		batch.Put(bucket, []byte(newKey), newValue)
	}
}

// BatchWriteSubspaceVal schedules a subspace write together with its diff
// rows and returns the size difference against the previous value.
func (db *StateDB) BatchWriteSubspaceVal(batch *ethdb.WriteBatch, height types.BlockHeight,
	key common.Key, value []byte, persistDiffs bool) (int64, error) {
	if err := dbutils.ValidateUserKey(key); err != nil {
		return 0, err
	}
	keyStr := key.String()
	current, err := db.readValueBytes(dbutils.SubspaceBucket, keyStr)
	if err != nil {
		return 0, err
	}

	var sizeDiff int64
	if current != nil {
		sizeDiff = int64(len(value)) - int64(len(current))
		db.batchWriteSubspaceDiff(batch, height, key, current, value, persistDiffs)
	} else {
		sizeDiff = int64(len(value))
		db.batchWriteSubspaceDiff(batch, height, key, nil, value, persistDiffs)
	}

	// The batch is pure in-memory state until it is executed; the read cache
	// is invalidated by ExecBatch after the commit lands.
	batch.Put(dbutils.SubspaceBucket, []byte(keyStr), value)
	subspaceWriteCounter.Inc()
	return sizeDiff, nil
}

// BatchDeleteSubspaceVal schedules a subspace deletion with its old diff row
// and returns the length of the deleted value, or 0 when the key was absent.
func (db *StateDB) BatchDeleteSubspaceVal(batch *ethdb.WriteBatch, height types.BlockHeight,
	key common.Key, persistDiffs bool) (int64, error) {
	if err := dbutils.ValidateUserKey(key); err != nil {
		return 0, err
	}
	keyStr := key.String()
	current, err := db.readValueBytes(dbutils.SubspaceBucket, keyStr)
	if err != nil {
		return 0, err
	}

	var prevLen int64
	if current != nil {
		prevLen = int64(len(current))
		db.batchWriteSubspaceDiff(batch, height, key, current, nil, persistDiffs)
	}

	batch.Delete(dbutils.SubspaceBucket, []byte(keyStr))
	subspaceDeleteCounter.Inc()
	return prevLen, nil
}

// WriteSubspaceVal is the non-batched variant, applied immediately.
func (db *StateDB) WriteSubspaceVal(height types.BlockHeight, key common.Key, value []byte, persistDiffs bool) (int64, error) {
	batch := db.NewBatch()
	sizeDiff, err := db.BatchWriteSubspaceVal(batch, height, key, value, persistDiffs)
	if err != nil {
		return 0, err
	}
	if err := db.ExecBatch(batch); err != nil {
		return 0, err
	}
	return sizeDiff, nil
}

// DeleteSubspaceVal is the non-batched variant, applied immediately.
func (db *StateDB) DeleteSubspaceVal(height types.BlockHeight, key common.Key, persistDiffs bool) (int64, error) {
	batch := db.NewBatch()
	prevLen, err := db.BatchDeleteSubspaceVal(batch, height, key, persistDiffs)
	if err != nil {
		return 0, err
	}
	if err := db.ExecBatch(batch); err != nil {
		return 0, err
	}
	return prevLen, nil
}

// ReadDiffsVal reads a persisted diff row of a key at a height.
func (db *StateDB) ReadDiffsVal(key common.Key, height types.BlockHeight, old bool) ([]byte, error) {
	oldKey, newKey := dbutils.DiffKeys(key, height)
	diffKey := newKey
	if old {
		diffKey = oldKey
	}
	return db.readValueBytes(dbutils.DiffsBucket, diffKey)
}

// ReadRollbackVal reads a non-persisted diff row of a key at a height.
func (db *StateDB) ReadRollbackVal(key common.Key, height types.BlockHeight, old bool) ([]byte, error) {
	oldKey, newKey := dbutils.DiffKeys(key, height)
	diffKey := newKey
	if old {
		diffKey = oldKey
	}
	return db.readValueBytes(dbutils.RollbackBucket, diffKey)
}

// PruneNonPersistedDiffs schedules deletion of every diff row the rollback
// family holds for the given height. AddBlockToBatch does not call it; a
// caller that schedules it one block later keeps the family at exactly the
// last block's diffs.
func (db *StateDB) PruneNonPersistedDiffs(batch *ethdb.WriteBatch, height types.BlockHeight) error {
	for _, old := range []bool{true, false} {
		it := db.iterRaw(dbutils.RollbackBucket, dbutils.DiffPrefix(height, old)+common.KeySeparator)
		for it.Next() {
			batch.Delete(dbutils.RollbackBucket, []byte(it.Key()))
			prunedDiffCounter.Inc()
		}
		it.Release()
		if err := it.Err(); err != nil {
			return err
		}
	}
	return nil
}
