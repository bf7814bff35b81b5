package state

import (
	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// ReplayBucket is one of the three stages of a tx hash's lifecycle. A hash is
// written to Last on inclusion; on the next block's commit the caller demotes
// Last into Buffer and Buffer into All, which is what makes the inclusion
// state rewindable by exactly one block.
type ReplayBucket int

const (
	ReplayLast ReplayBucket = iota
	ReplayAll
	ReplayBuffer
)

func (b ReplayBucket) Prefix() string {
	switch b {
	case ReplayLast:
		return dbutils.ReplayLastPrefix
	case ReplayAll:
		return dbutils.ReplayAllPrefix
	default:
		return dbutils.ReplayBufferPrefix
	}
}

func (b ReplayBucket) key(hash common.Hash) []byte {
	return []byte(dbutils.ReplayKey(b.Prefix(), hash))
}

// WriteReplayProtectionEntry schedules a tx hash into the given bucket. The
// value is empty, presence is the signal.
func (db *StateDB) WriteReplayProtectionEntry(batch *ethdb.WriteBatch, bucket ReplayBucket, hash common.Hash) {
	batch.Put(dbutils.ReplayProtectionBucket, bucket.key(hash), []byte{})
}

// DeleteReplayProtectionEntry schedules removal of a tx hash from the given
// bucket. Deleting an absent hash is a no-op.
func (db *StateDB) DeleteReplayProtectionEntry(batch *ethdb.WriteBatch, bucket ReplayBucket, hash common.Hash) {
	batch.Delete(dbutils.ReplayProtectionBucket, bucket.key(hash))
}

// HasReplayProtectionEntry reports whether the hash was included in the last
// block or any block before it. The buffer is transient and not consulted.
func (db *StateDB) HasReplayProtectionEntry(hash common.Hash) (bool, error) {
	for _, bucket := range []ReplayBucket{ReplayLast, ReplayAll} {
		v, err := db.readValueBytes(dbutils.ReplayProtectionBucket, string(bucket.key(hash)))
		if err != nil {
			return false, err
		}
		if v != nil {
			return true, nil
		}
	}
	return false, nil
}

// PruneReplayProtectionBuffer schedules deletion of every buffered hash.
func (db *StateDB) PruneReplayProtectionBuffer(batch *ethdb.WriteBatch) error {
	it := db.IterReplayProtectionBuffer()
	for it.Next() {
		hash, err := common.HashFromHex(it.Key())
		if err != nil {
			it.Release()
			return err
		}
		db.DeleteReplayProtectionEntry(batch, ReplayBuffer, hash)
	}
	it.Release()
	return it.Err()
}
