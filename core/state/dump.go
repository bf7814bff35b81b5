package state

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
)

// DumpBlock writes a text dump of the state at the requested height (the
// last committed one when nil) as `"<key>" = "<hex-lower-value>"` lines.
// With historic set, the height-prefixed diff and block entries are included.
// The subspace is reconstructed through the historic-read algorithm when the
// height is not the last one. Replay protection entries are dumpable only at
// the last height (last + all) or one below it (all only).
func (db *StateDB) DumpBlock(outPath string, historic bool, height *types.BlockHeight) error {
	lastHeight, err := db.lastBlockHeight()
	if err != nil {
		return err
	}
	dumpHeight := lastHeight
	if height != nil {
		dumpHeight = *height
	}

	fullPath := fmt.Sprintf("%s_%s.toml", outPath, dumpHeight.Raw())
	f, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	db.log.Info("Dumping block state", "height", dumpHeight, "path", fullPath)

	if historic {
		// keys prepended with the selected height, diffs first
		prefix := dumpHeight.Raw() + common.KeySeparator
		if err := db.dumpBucket(w, dbutils.DiffsBucket, prefix); err != nil {
			return err
		}
		if err := db.dumpBucket(w, dbutils.BlockBucket, prefix); err != nil {
			return err
		}
	}

	if dumpHeight != lastHeight {
		// reconstruct the subspace as of the requested height
		it := db.IterPrefix(nil)
		for it.Next() {
			key, err := common.ParseKey(it.Key())
			if err != nil {
				it.Release()
				return err
			}
			value, err := db.ReadSubspaceValWithHeight(key, dumpHeight, lastHeight)
			if err != nil {
				it.Release()
				return err
			}
			if value == nil {
				continue
			}
			if err := writeDumpLine(w, it.Key(), value); err != nil {
				it.Release()
				return err
			}
		}
		it.Release()
		if err := it.Err(); err != nil {
			return err
		}
	} else {
		if err := db.dumpBucket(w, dbutils.SubspaceBucket, ""); err != nil {
			return err
		}
	}

	switch {
	case dumpHeight == lastHeight:
		for _, bucketPrefix := range []string{dbutils.ReplayAllPrefix, dbutils.ReplayLastPrefix} {
			if err := db.dumpBucket(w, dbutils.ReplayProtectionBucket, bucketPrefix+common.KeySeparator); err != nil {
				return err
			}
		}
	case dumpHeight == lastHeight.Prev():
		if err := db.dumpBucket(w, dbutils.ReplayProtectionBucket, dbutils.ReplayAllPrefix); err != nil {
			return err
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	db.log.Info("Done writing block state", "path", fullPath)
	return nil
}

func (db *StateDB) dumpBucket(w *bufio.Writer, bucket, prefix string) error {
	it := db.iterRaw(bucket, prefix)
	for it.Next() {
		if err := writeDumpLine(w, it.Key(), it.Value()); err != nil {
			it.Release()
			return err
		}
	}
	it.Release()
	return it.Err()
}

func writeDumpLine(w *bufio.Writer, key string, value []byte) error {
	_, err := fmt.Fprintf(w, "%q = %q\n", key, hex.EncodeToString(value))
	return err
}
