// Package state implements the persistent block-state storage engine: the
// committed chain state, per-height diffs, merkle tree snapshots and replay
// protection indexes, all on top of an ordered key-value store organized into
// column families.
package state

import (
	"context"
	"fmt"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"

	"github.com/quaylabs/ledgerdb/codec"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/common/fdlimit"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// dbFileDescriptorLimit is the NOFILE soft limit requested at open, clamped
// to the hard limit. Failures are logged and ignored.
const dbFileDescriptorLimit = 16384

// Options tune the store at open time. All fields are optional.
type Options struct {
	// MapSize caps the store size. Zero selects the backend default.
	MapSize datasize.ByteSize
	// Cache is an optional shared read cache for subspace values.
	Cache *fastcache.Cache
	// ReadOnly opens the store without write access.
	ReadOnly bool
	// InMem opens a throwaway store, for tests.
	InMem bool
}

// StateDB is a handle on the block-state storage engine. It is safe for
// concurrent use; the pred/ protocol however requires the caller to serialize
// block commits.
type StateDB struct {
	kv       ethdb.KV
	cache    *fastcache.Cache
	readOnly bool
	log      log.Logger
}

// Open opens the store at path, creating it and any missing column families.
func Open(path string, opts Options) (*StateDB, error) {
	logger := log.New("database", path)

	if limit, err := fdlimit.Raise(dbFileDescriptorLimit); err != nil {
		logger.Warn("Failed to raise file descriptor limit", "err", err)
	} else {
		logger.Debug("File descriptor limit", "limit", limit)
	}

	lmdbOpts := ethdb.NewLMDB().Path(path)
	if opts.MapSize != 0 {
		lmdbOpts = lmdbOpts.MapSize(opts.MapSize)
	}
	if opts.ReadOnly {
		lmdbOpts = lmdbOpts.ReadOnly()
	}
	if opts.InMem {
		lmdbOpts = lmdbOpts.InMem()
	}
	kv, err := lmdbOpts.Open(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}
	return &StateDB{kv: kv, cache: opts.Cache, readOnly: opts.ReadOnly, log: logger}, nil
}

// NewBatch returns an empty write batch.
func (db *StateDB) NewBatch() *ethdb.WriteBatch {
	return ethdb.NewWriteBatch()
}

// ExecBatch applies the batch atomically. The read cache is only touched
// after the commit succeeds, and only by invalidation: a failed batch leaves
// neither the store nor the cache with any of its writes, and no reader can
// see a half-applied block through the cache.
func (db *StateDB) ExecBatch(batch *ethdb.WriteBatch) error {
	if err := ethdb.ExecBatch(context.Background(), db.kv, batch); err != nil {
		return err
	}
	if db.cache != nil {
		batch.Replay(func(bucket string, key, _ []byte, _ bool) error {
			if bucket == dbutils.SubspaceBucket {
				db.cache.Del(key)
			}
			return nil
		})
	}
	return nil
}

// Flush persists everything to disk, blocking when wait is set.
func (db *StateDB) Flush(wait bool) error {
	return db.kv.Sync(wait)
}

// Close flushes and closes the store. A failed flush is fatal: losing
// committed state is worse than an unclean shutdown.
func (db *StateDB) Close() {
	if !db.readOnly {
		if err := db.kv.Sync(true); err != nil {
			panic(fmt.Sprintf("state database flush on close: %v", err))
		}
	}
	if err := db.kv.Close(); err != nil {
		db.log.Error("Failed to close state database", "err", err)
	}
}

// KV exposes the underlying store, for tooling.
func (db *StateDB) KV() ethdb.KV {
	return db.kv
}

// readValueBytes returns a copy of the raw value, or nil when absent.
func (db *StateDB) readValueBytes(bucket, key string) ([]byte, error) {
	var value []byte
	err := db.kv.View(context.Background(), func(tx ethdb.Tx) error {
		v, err := tx.Bucket(bucket).Get([]byte(key))
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// readValue decodes a typed value into the given pointer, reporting whether
// the key was present.
func (db *StateDB) readValue(bucket, key string, into interface{}) (bool, error) {
	raw, err := db.readValueBytes(bucket, key)
	if err != nil || raw == nil {
		return false, err
	}
	if err := codec.Decode(raw, into); err != nil {
		return false, err
	}
	return true, nil
}

// AddValueBytes schedules a plain put.
func (db *StateDB) AddValueBytes(batch *ethdb.WriteBatch, bucket, key string, value []byte) {
	batch.Put(bucket, []byte(key), value)
}

// AddValue encodes a typed value and schedules a put.
func (db *StateDB) AddValue(batch *ethdb.WriteBatch, bucket, key string, value interface{}) error {
	encoded, err := codec.Encode(value)
	if err != nil {
		return err
	}
	db.AddValueBytes(batch, bucket, key, encoded)
	return nil
}

// AddStateValue schedules a put of a pred-tracked singleton: the current
// value, if any, is first copied to its pred/ sibling. This is the only path
// that maintains the pred/ siblings.
func (db *StateDB) AddStateValue(batch *ethdb.WriteBatch, bucket, key string, value interface{}) error {
	current, err := db.readValueBytes(bucket, key)
	if err != nil {
		return err
	}
	if current != nil {
		db.AddValueBytes(batch, bucket, dbutils.PredKey(key), current)
	}
	return db.AddValue(batch, bucket, key, value)
}

// HasAppliedMigration reports whether a named migration has been recorded.
func (db *StateDB) HasAppliedMigration(name string) (bool, error) {
	v, err := db.readValueBytes(dbutils.StateBucket, dbutils.MigrationKey(name))
	return v != nil, err
}

// MarkMigrationApplied records a migration in the same batch as its effects.
func (db *StateDB) MarkMigrationApplied(batch *ethdb.WriteBatch, name string) {
	db.AddValueBytes(batch, dbutils.StateBucket, dbutils.MigrationKey(name), []byte{})
}
