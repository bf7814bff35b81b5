package state

import (
	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
)

// ReadSubspaceValWithHeight answers what the value of a key was at the given
// block height, walking the persisted diffs:
//
//  1. a new diff at the height itself is the value set there;
//  2. a lone old diff at the height means the key was deleted there;
//  3. otherwise the key did not change at that height and the first later
//     diff decides: an old row carries the value that existed before it, a
//     new row means the key was only created later;
//  4. a key no diff ever mentions up to lastHeight still has its current
//     value.
//
// Only keys written with persisted diffs resolve correctly beyond the single
// rollback window; callers know which class they query.
func (db *StateDB) ReadSubspaceValWithHeight(key common.Key, height, lastHeight types.BlockHeight) ([]byte, error) {
	oldKey, newKey := dbutils.DiffKeys(key, height)

	newVal, err := db.readValueBytes(dbutils.DiffsBucket, newKey)
	if err != nil {
		return nil, err
	}
	if newVal != nil {
		return newVal, nil
	}
	oldVal, err := db.readValueBytes(dbutils.DiffsBucket, oldKey)
	if err != nil {
		return nil, err
	}
	if oldVal != nil {
		// deleted at this height
		return nil, nil
	}

	// Walk successor heights up to lastHeight looking for the next diff on
	// this key.
	for h := height + 1; ; h++ {
		oldKey, newKey = dbutils.DiffKeys(key, h)
		oldVal, err = db.readValueBytes(dbutils.DiffsBucket, oldKey)
		if err != nil {
			return nil, err
		}
		if oldVal != nil {
			// the value carried into height h is the one queried
			return oldVal, nil
		}
		newVal, err = db.readValueBytes(dbutils.DiffsBucket, newKey)
		if err != nil {
			return nil, err
		}
		if newVal != nil {
			// created at h, so absent at the queried height
			return nil, nil
		}
		if h >= lastHeight {
			return db.ReadSubspaceVal(key)
		}
	}
}
