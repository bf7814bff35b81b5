package state

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
)

// Rollback rewinds the state by exactly one block, to the height the
// consensus driver has rolled back to. Rolling back to the current height is
// a no-op; anything further back than one block fails, because the pred/
// siblings hold a single predecessor. The whole rewind is assembled into one
// batch and committed atomically.
func (db *StateDB) Rollback(targetHeight types.BlockHeight) error {
	lastBlock, err := db.ReadLastBlock()
	if err != nil {
		return err
	}
	if lastBlock == nil {
		return fmt.Errorf("%w: no last block in storage", ErrRollback)
	}
	db.log.Info("Rollback requested", "last", lastBlock.Height, "target", targetHeight)

	if targetHeight == lastBlock.Height {
		db.log.Info("Height already matches the rollback target, nothing to do")
		return nil
	}
	previousHeight := lastBlock.Height.Prev()
	if targetHeight != previousHeight {
		return fmt.Errorf("%w: last height %s, target %s", ErrUnsupportedRollbackDistance,
			lastBlock.Height, targetHeight)
	}
	// state singleton holding the height the last rollback rewound to
	const rolledBackToKey = "rolled_back_to"
	var rolledBackTo types.BlockHeight
	found, err := db.readValue(dbutils.StateBucket, rolledBackToKey, &rolledBackTo)
	if err != nil {
		return err
	}
	if found && rolledBackTo == lastBlock.Height {
		return fmt.Errorf("%w: already rolled back to %s", ErrUnsupportedRollbackDistance, lastBlock.Height)
	}

	batch := db.NewBatch()

	// Revert the metadata singletons from their pred/ siblings. The pred/
	// keys themselves stay: their predecessors are gone, and a second
	// rollback is rejected anyway.
	db.log.Info("Reverting metadata keys")
	if err := db.AddValue(batch, dbutils.StateBucket, dbutils.BlockHeightKey, previousHeight); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.StateBucket, rolledBackToKey, previousHeight); err != nil {
		return err
	}
	for _, metadataKey := range []string{
		dbutils.NextEpochMinStartHeightKey,
		dbutils.NextEpochMinStartTimeKey,
		dbutils.CommitOnlyDataKey,
		dbutils.UpdateEpochBlocksDelayKey,
	} {
		predKey := dbutils.PredKey(metadataKey)
		predValue, err := db.readValueBytes(dbutils.StateBucket, predKey)
		if err != nil {
			return err
		}
		if predValue == nil {
			return ErrUnknownKey{Key: predKey}
		}
		db.AddValueBytes(batch, dbutils.StateBucket, metadataKey, predValue)
	}

	// The conversion state only moved if the epoch changed at the last block.
	if epoch, known := lastBlock.PredEpochs.GetEpoch(previousHeight); !known || epoch != lastBlock.Epoch {
		predKey := dbutils.PredKey(dbutils.ConversionStateKey)
		predValue, err := db.readValueBytes(dbutils.StateBucket, predKey)
		if err != nil {
			return err
		}
		if predValue == nil {
			return ErrUnknownKey{Key: predKey}
		}
		db.AddValueBytes(batch, dbutils.StateBucket, dbutils.ConversionStateKey, predValue)
	}

	db.log.Info("Removing last block results")
	batch.Delete(dbutils.BlockBucket, []byte(dbutils.ResultsKey(lastBlock.Height)))

	// Rewind replay protection: drop the last window, then promote the
	// buffer back into it, removing the promoted hashes from "all" (absent
	// ones are fine, deletes are idempotent).
	db.log.Info("Restoring replay protection state")
	it := db.IterReplayProtection()
	for it.Next() {
		hash, err := common.HashFromHex(it.Key())
		if err != nil {
			it.Release()
			return err
		}
		db.DeleteReplayProtectionEntry(batch, ReplayLast, hash)
	}
	it.Release()
	if err := it.Err(); err != nil {
		return err
	}
	it = db.IterReplayProtectionBuffer()
	for it.Next() {
		hash, err := common.HashFromHex(it.Key())
		if err != nil {
			it.Release()
			return err
		}
		db.WriteReplayProtectionEntry(batch, ReplayLast, hash)
		db.DeleteReplayProtectionEntry(batch, ReplayAll, hash)
	}
	it.Release()
	if err := it.Err(); err != nil {
		return err
	}

	// Recompute every live subspace key at the previous height. The per-key
	// work is independent reads against the diffs, so it is spread over
	// workers sharing one mutex-guarded batch.
	db.log.Info("Restoring previous height subspace values")
	var subspaceKeys []string
	it = db.IterPrefix(nil)
	for it.Next() {
		subspaceKeys = append(subspaceKeys, it.Key())
	}
	it.Release()
	if err := it.Err(); err != nil {
		return err
	}

	var (
		batchMu sync.Mutex
		keyCh   = make(chan string)
	)
	g, gctx := errgroup.WithContext(context.Background())
	workers := runtime.NumCPU()
	if workers > len(subspaceKeys) {
		workers = len(subspaceKeys)
	}
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for keyStr := range keyCh {
				key, err := common.ParseKey(keyStr)
				if err != nil {
					return err
				}
				previousValue, err := db.ReadSubspaceValWithHeight(key, previousHeight, lastBlock.Height)
				if err != nil {
					return err
				}
				batchMu.Lock()
				if previousValue != nil {
					batch.Put(dbutils.SubspaceBucket, []byte(keyStr), previousValue)
				} else {
					batch.Delete(dbutils.SubspaceBucket, []byte(keyStr))
				}
				batchMu.Unlock()
			}
			return nil
		})
	}
	// The feeder must give up once a worker fails, or it would block forever
	// on the unbuffered channel with nobody left draining it.
feed:
	for _, keyStr := range subspaceKeys {
		select {
		case keyCh <- keyStr:
		case <-gctx.Done():
			break feed
		}
	}
	close(keyCh)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrRollback, err)
	}

	// Keys deleted at the last block are no longer in the subspace, so the
	// scan above missed them: restore from the old diffs that have no new
	// counterpart.
	for itd := db.IterOldDiffs(lastBlock.Height, nil); ; {
		if !itd.Next() {
			if err := itd.Err(); err != nil {
				return err
			}
			break
		}
		key, err := common.ParseKey(itd.Key())
		if err != nil {
			itd.Release()
			return err
		}
		_, newKey := dbutils.DiffKeys(key, lastBlock.Height)
		newVal, err := db.readValueBytes(dbutils.DiffsBucket, newKey)
		if err != nil {
			itd.Release()
			return err
		}
		if newVal == nil {
			batch.Put(dbutils.SubspaceBucket, []byte(itd.Key()), itd.Value())
		}
	}

	// Non-persisted keys rewind from the rollback family instead: old rows
	// restore unconditionally, new rows without an old counterpart were
	// created at the last block and are deleted.
	keysWithOldValue := make(map[string]struct{})
	itr := db.iterRollbackDiffs(lastBlock.Height, true)
	for itr.Next() {
		keysWithOldValue[itr.Key()] = struct{}{}
		batch.Put(dbutils.SubspaceBucket, []byte(itr.Key()), itr.Value())
	}
	itr.Release()
	if err := itr.Err(); err != nil {
		return err
	}
	itr = db.iterRollbackDiffs(lastBlock.Height, false)
	for itr.Next() {
		if _, ok := keysWithOldValue[itr.Key()]; !ok {
			batch.Delete(dbutils.SubspaceBucket, []byte(itr.Key()))
		}
	}
	itr.Release()
	if err := itr.Err(); err != nil {
		return err
	}

	// Drop everything keyed by the last height: its diffs, its block record
	// and its height-keyed merkle stores.
	db.log.Info("Deleting keys prepended with the last height")
	heightPrefix := lastBlock.Height.Raw() + common.KeySeparator
	for _, bucket := range []string{dbutils.DiffsBucket, dbutils.RollbackBucket, dbutils.BlockBucket} {
		itp := db.iterRaw(bucket, heightPrefix)
		for itp.Next() {
			batch.Delete(bucket, []byte(itp.Key()))
		}
		itp.Release()
		if err := itp.Err(); err != nil {
			return err
		}
	}

	db.log.Info("Flushing restored state to disk")
	if err := db.ExecBatch(batch); err != nil {
		return fmt.Errorf("%w: %v", ErrRollback, err)
	}
	if db.cache != nil {
		// the subspace changed wholesale, drop the read cache
		db.cache.Reset()
	}
	rollbackCounter.Inc()
	return nil
}

func (db *StateDB) iterRollbackDiffs(height types.BlockHeight, old bool) *PrefixIterator {
	stripped := dbutils.DiffPrefix(height, old) + common.KeySeparator
	return db.iterPrefix(dbutils.RollbackBucket, stripped, stripped)
}

