package state

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/ledgerwatch/log/v3"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// PrefixIterator is a lazy scan of one column family, bounded above by the
// prefix with its last byte incremented. Keys are yielded with the stripped
// prefix removed; entries that fail the strip check are skipped with a
// warning. The iterator holds only a read transaction: concurrent point reads
// and writes proceed unhindered. Release must be called when done.
type PrefixIterator struct {
	tx             ethdb.Tx
	cur            ethdb.Cursor
	strippedPrefix string
	seekKey        []byte
	upper          []byte
	started        bool
	released       bool

	key   string
	value []byte
	err   error
}

// iterPrefix scans keys beginning with prefix, which must itself begin with
// strippedPrefix; yielded keys have strippedPrefix removed. Both prefixes
// must carry their trailing separator or be empty.
func (db *StateDB) iterPrefix(bucket, strippedPrefix, prefix string) *PrefixIterator {
	tx, err := db.kv.Begin(context.Background(), false)
	if err != nil {
		return &PrefixIterator{err: err, released: true}
	}
	return &PrefixIterator{
		tx:             tx,
		cur:            tx.Bucket(bucket).Cursor(),
		strippedPrefix: strippedPrefix,
		seekKey:        []byte(prefix),
		upper:          upperBound([]byte(prefix)),
	}
}

// iterRaw scans full keys without stripping, for deletion sweeps and dumps.
func (db *StateDB) iterRaw(bucket, prefix string) *PrefixIterator {
	return db.iterPrefix(bucket, "", prefix)
}

// composePrefixes renders the stripped and full seek prefixes with their
// trailing separators.
func composePrefixes(strippedPrefix, prefix *common.Key) (stripped, full string) {
	if strippedPrefix != nil && !strippedPrefix.IsEmpty() {
		stripped = strippedPrefix.String() + common.KeySeparator
	}
	full = stripped
	if prefix != nil && !prefix.IsEmpty() {
		full = stripped + prefix.String() + common.KeySeparator
	}
	return stripped, full
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil for an unbounded scan.
func upperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	bound := common.CopyBytes(prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}

func (it *PrefixIterator) Next() bool {
	if it.err != nil || it.released {
		return false
	}
	for {
		var k, v []byte
		var err error
		if !it.started {
			it.started = true
			k, v, err = it.cur.Seek(it.seekKey)
		} else {
			k, v, err = it.cur.Next()
		}
		if err != nil {
			it.err = err
			it.Release()
			return false
		}
		if k == nil || (it.upper != nil && bytes.Compare(k, it.upper) >= 0) {
			it.Release()
			return false
		}
		key := string(k)
		if !strings.HasPrefix(key, it.strippedPrefix) {
			log.Warn("Unmatched prefix in iterator key", "prefix", it.strippedPrefix, "key", key)
			continue
		}
		it.key = key[len(it.strippedPrefix):]
		it.value = v
		return true
	}
}

func (it *PrefixIterator) Key() string { return it.key }

func (it *PrefixIterator) Value() []byte { return it.value }

// Gas is the metered cost of the yielded pair.
func (it *PrefixIterator) Gas() uint64 { return uint64(len(it.key) + len(it.value)) }

func (it *PrefixIterator) Err() error { return it.err }

// Release ends the scan and its read transaction. Idempotent; also called
// automatically on exhaustion or error.
func (it *PrefixIterator) Release() {
	if it.released {
		return
	}
	it.released = true
	if it.tx != nil {
		it.tx.Rollback()
	}
}

// PatternIterator is a PrefixIterator filtered by a regular expression over
// the stripped keys.
type PatternIterator struct {
	inner   *PrefixIterator
	pattern *regexp.Regexp
}

func (it *PatternIterator) Next() bool {
	for it.inner.Next() {
		if it.pattern.MatchString(it.inner.Key()) {
			return true
		}
	}
	return false
}

func (it *PatternIterator) Key() string { return it.inner.Key() }

func (it *PatternIterator) Value() []byte { return it.inner.Value() }

func (it *PatternIterator) Gas() uint64 { return it.inner.Gas() }

func (it *PatternIterator) Err() error { return it.inner.Err() }

func (it *PatternIterator) Release() { it.inner.Release() }

// IterPrefix scans the current subspace under the given prefix; nil scans all
// of it.
func (db *StateDB) IterPrefix(prefix *common.Key) *PrefixIterator {
	stripped, full := composePrefixes(nil, prefix)
	return db.iterPrefix(dbutils.SubspaceBucket, stripped, full)
}

// IterPattern scans the subspace under a prefix, filtered by pattern.
func (db *StateDB) IterPattern(prefix *common.Key, pattern *regexp.Regexp) *PatternIterator {
	return &PatternIterator{inner: db.IterPrefix(prefix), pattern: pattern}
}

// IterResults scans the per-height block results, keys stripped to the bare
// height.
func (db *StateDB) IterResults() *PrefixIterator {
	prefix := dbutils.ResultsKeyPrefix + common.KeySeparator
	return db.iterPrefix(dbutils.BlockBucket, prefix, prefix)
}

// IterOldDiffs scans the persisted old diff rows of a height.
func (db *StateDB) IterOldDiffs(height types.BlockHeight, prefix *common.Key) *PrefixIterator {
	return db.iterDiffs(dbutils.DiffsBucket, height, prefix, true)
}

// IterNewDiffs scans the persisted new diff rows of a height.
func (db *StateDB) IterNewDiffs(height types.BlockHeight, prefix *common.Key) *PrefixIterator {
	return db.iterDiffs(dbutils.DiffsBucket, height, prefix, false)
}

func (db *StateDB) iterDiffs(bucket string, height types.BlockHeight, prefix *common.Key, old bool) *PrefixIterator {
	stripped := dbutils.DiffPrefix(height, old) + common.KeySeparator
	full := stripped
	if prefix != nil && !prefix.IsEmpty() {
		full = stripped + prefix.String() + common.KeySeparator
	}
	return db.iterPrefix(bucket, stripped, full)
}

// IterReplayProtection scans the hashes included in the last block, stripped
// to bare lowercase hex.
func (db *StateDB) IterReplayProtection() *PrefixIterator {
	prefix := dbutils.ReplayLastPrefix + common.KeySeparator
	return db.iterPrefix(dbutils.ReplayProtectionBucket, prefix, prefix)
}

// IterReplayProtectionBuffer scans the hashes in transition.
func (db *StateDB) IterReplayProtectionBuffer() *PrefixIterator {
	prefix := dbutils.ReplayBufferPrefix + common.KeySeparator
	return db.iterPrefix(dbutils.ReplayProtectionBucket, prefix, prefix)
}
