package state

import (
	"fmt"
	"regexp"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// ColFam identifies a column family to the admin surface. It is a closed
// variant set: migration tooling dispatches on it rather than on raw bucket
// names.
type ColFam int

const (
	ColFamSubspace ColFam = iota
	ColFamDiffs
	ColFamRollback
	ColFamState
	ColFamBlock
	ColFamReplayProtection
)

func (cf ColFam) BucketName() string {
	switch cf {
	case ColFamSubspace:
		return dbutils.SubspaceBucket
	case ColFamDiffs:
		return dbutils.DiffsBucket
	case ColFamRollback:
		return dbutils.RollbackBucket
	case ColFamState:
		return dbutils.StateBucket
	case ColFamBlock:
		return dbutils.BlockBucket
	case ColFamReplayProtection:
		return dbutils.ReplayProtectionBucket
	default:
		panic(fmt.Sprintf("unknown column family %d", int(cf)))
	}
}

func (cf ColFam) String() string { return cf.BucketName() }

func ParseColFam(name string) (ColFam, error) {
	for _, cf := range []ColFam{
		ColFamSubspace, ColFamDiffs, ColFamRollback,
		ColFamState, ColFamBlock, ColFamReplayProtection,
	} {
		if cf.BucketName() == name {
			return cf, nil
		}
	}
	return 0, fmt.Errorf("unknown column family %q", name)
}

// lastBlockHeight reads the committed height, failing when none exists.
func (db *StateDB) lastBlockHeight() (types.BlockHeight, error) {
	var height types.BlockHeight
	found, err := db.readValue(dbutils.StateBucket, dbutils.BlockHeightKey, &height)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("no block height in storage: %w", ethdb.ErrKeyNotFound)
	}
	return height, nil
}

// OverwriteEntry schedules an admin overwrite of a single key. A non-nil
// height must match the last committed height; rewriting history is not
// implemented. Overwriting a subspace key also refreshes its new diff at the
// last height so the historic-read algorithm sees the value.
func (db *StateDB) OverwriteEntry(batch *ethdb.WriteBatch, height *types.BlockHeight,
	cf ColFam, key common.Key, newValue []byte) error {
	lastHeight, err := db.lastBlockHeight()
	if err != nil {
		return err
	}
	desiredHeight := lastHeight
	if height != nil {
		desiredHeight = *height
	}
	if desiredHeight != lastHeight {
		return fmt.Errorf("%w: last height %s, requested %s", ErrUnsupportedHeight, lastHeight, desiredHeight)
	}

	batch.Put(cf.BucketName(), []byte(key.String()), newValue)

	if cf == ColFamSubspace {
		_, newKey := dbutils.DiffKeys(key, lastHeight)
		batch.Put(dbutils.DiffsBucket, []byte(newKey), newValue)
	}
	return nil
}

// KVPair is a matched key with its value.
type KVPair struct {
	Key   string
	Value []byte
}

// UpdateVisitor registers a set of reads, writes and deletes in one batch,
// for migration tooling. Nothing is applied until the batch is executed.
type UpdateVisitor struct {
	db    *StateDB
	batch *ethdb.WriteBatch
}

func NewUpdateVisitor(db *StateDB) *UpdateVisitor {
	return &UpdateVisitor{db: db, batch: ethdb.NewWriteBatch()}
}

// Batch hands over the accumulated updates.
func (v *UpdateVisitor) Batch() *ethdb.WriteBatch {
	return v.batch
}

func (v *UpdateVisitor) Read(key common.Key, cf ColFam) ([]byte, error) {
	if cf == ColFamSubspace {
		return v.db.ReadSubspaceVal(key)
	}
	return v.db.readValueBytes(cf.BucketName(), key.String())
}

func (v *UpdateVisitor) Write(key common.Key, cf ColFam, value []byte) error {
	return v.db.OverwriteEntry(v.batch, nil, cf, key, value)
}

func (v *UpdateVisitor) Delete(key common.Key, cf ColFam) error {
	if cf == ColFamSubspace {
		lastHeight, err := v.db.lastBlockHeight()
		if err != nil {
			return err
		}
		_, err = v.db.BatchDeleteSubspaceVal(v.batch, lastHeight, key, true)
		return err
	}
	v.batch.Delete(cf.BucketName(), []byte(key.String()))
	return nil
}

// GetPattern collects the subspace pairs whose keys match the pattern.
func (v *UpdateVisitor) GetPattern(pattern *regexp.Regexp) ([]KVPair, error) {
	var pairs []KVPair
	it := v.db.IterPattern(nil, pattern)
	for it.Next() {
		pairs = append(pairs, KVPair{Key: it.Key(), Value: it.Value()})
	}
	it.Release()
	return pairs, it.Err()
}
