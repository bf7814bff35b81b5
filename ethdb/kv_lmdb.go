package ethdb

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"runtime"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/lmdb-go/lmdb"
	"github.com/ledgerwatch/log/v3"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
)

const (
	defaultMapSize      = 2 * datasize.TB
	defaultInMemMapSize = 256 * datasize.MB
)

// LmdbOpts is a builder for an LMDB-backed KV. Named databases play the role
// of column families: one write transaction spans all of them, which is what
// makes multi-family batches atomic.
type LmdbOpts struct {
	path       string
	mapSize    datasize.ByteSize
	inMem      bool
	readOnly   bool
	bucketsCfg dbutils.BucketsCfg
}

func NewLMDB() LmdbOpts {
	return LmdbOpts{bucketsCfg: dbutils.DefaultBuckets()}
}

func (opts LmdbOpts) Path(path string) LmdbOpts {
	opts.path = path
	return opts
}

func (opts LmdbOpts) InMem() LmdbOpts {
	opts.inMem = true
	return opts
}

func (opts LmdbOpts) MapSize(sz datasize.ByteSize) LmdbOpts {
	opts.mapSize = sz
	return opts
}

func (opts LmdbOpts) ReadOnly() LmdbOpts {
	opts.readOnly = true
	return opts
}

func (opts LmdbOpts) WithBucketsCfg(cfg dbutils.BucketsCfg) LmdbOpts {
	opts.bucketsCfg = cfg
	return opts
}

func (opts LmdbOpts) Open(ctx context.Context) (KV, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("creating env: %w", err)
	}
	if err := env.SetMaxDBs(len(dbutils.Buckets) + 2); err != nil {
		return nil, err
	}
	mapSize := opts.mapSize
	if mapSize == 0 {
		if opts.inMem {
			mapSize = defaultInMemMapSize
		} else {
			mapSize = defaultMapSize
		}
	}
	if err := env.SetMapSize(int64(mapSize.Bytes())); err != nil {
		return nil, err
	}

	var flags uint = lmdb.NoReadahead
	path := opts.path
	if opts.inMem {
		path, err = ioutil.TempDir("", "ledgerdb-mem")
		if err != nil {
			return nil, err
		}
		flags |= lmdb.NoSync | lmdb.NoMetaSync
	}
	if opts.readOnly {
		flags |= lmdb.Readonly
	}
	if err := os.MkdirAll(path, 0o744); err != nil {
		return nil, err
	}
	if err := env.Open(path, flags, 0o644); err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	kv := &LmdbKV{
		opts:    opts,
		env:     env,
		path:    path,
		buckets: make(map[string]lmdb.DBI, len(dbutils.Buckets)),
		log:     log.New("database", path),
	}

	// Open all column families, creating the missing ones unless read-only.
	openDBIs := func(tx *lmdb.Txn) error {
		var dbiFlags uint
		if !opts.readOnly {
			dbiFlags = lmdb.Create
		}
		for _, name := range dbutils.Buckets {
			dbi, err := tx.OpenDBI(name, dbiFlags)
			if err != nil {
				return fmt.Errorf("opening bucket %s: %w", name, err)
			}
			kv.buckets[name] = dbi
		}
		return nil
	}
	if opts.readOnly {
		err = env.View(openDBIs)
	} else {
		err = env.Update(openDBIs)
	}
	if err != nil {
		env.Close()
		return nil, err
	}

	for name, cfg := range opts.bucketsCfg {
		if cfg.InsertBiased {
			// advisory only; this backend has no compaction to tune
			kv.log.Debug("Bucket tuned for inserts", "bucket", name)
		}
	}

	if staleReaders, err := env.ReaderCheck(); err != nil {
		kv.log.Error("Failed to cleanup db readers", "err", err)
	} else if staleReaders > 0 {
		kv.log.Debug("Cleared stale db readers", "count", staleReaders)
	}

	return kv, nil
}

func (opts LmdbOpts) MustOpen(ctx context.Context) KV {
	kv, err := opts.Open(ctx)
	if err != nil {
		panic(err)
	}
	return kv
}

type LmdbKV struct {
	opts    LmdbOpts
	env     *lmdb.Env
	path    string
	buckets map[string]lmdb.DBI
	log     log.Logger
}

func (kv *LmdbKV) View(_ context.Context, f func(tx Tx) error) error {
	return kv.env.View(func(txn *lmdb.Txn) error {
		txn.RawRead = true
		return f(&lmdbTx{kv: kv, txn: txn})
	})
}

func (kv *LmdbKV) Update(_ context.Context, f func(tx Tx) error) error {
	return kv.env.Update(func(txn *lmdb.Txn) error {
		txn.RawRead = true
		return f(&lmdbTx{kv: kv, txn: txn})
	})
}

func (kv *LmdbKV) Begin(_ context.Context, writable bool) (Tx, error) {
	var flags uint
	if !writable {
		flags = lmdb.Readonly
	} else {
		// write transactions are bound to an OS thread until they end
		runtime.LockOSThread()
	}
	txn, err := kv.env.BeginTxn(nil, flags)
	if err != nil {
		if writable {
			runtime.UnlockOSThread()
		}
		return nil, err
	}
	txn.RawRead = true
	return &lmdbTx{kv: kv, txn: txn, standalone: true, writable: writable}, nil
}

func (kv *LmdbKV) Sync(wait bool) error {
	return kv.env.Sync(wait)
}

func (kv *LmdbKV) Close() error {
	err := kv.env.Close()
	if kv.opts.inMem {
		os.RemoveAll(kv.path)
	}
	return err
}

type lmdbTx struct {
	kv         *LmdbKV
	txn        *lmdb.Txn
	standalone bool
	writable   bool
	cursors    []*lmdb.Cursor
}

func (tx *lmdbTx) Bucket(name string) Bucket {
	dbi, ok := tx.kv.buckets[name]
	if !ok {
		panic(fmt.Sprintf("bucket %s is not in dbutils.Buckets", name))
	}
	return &lmdbBucket{tx: tx, dbi: dbi}
}

func (tx *lmdbTx) Commit() error {
	tx.closeCursors()
	err := tx.txn.Commit()
	if tx.standalone && tx.writable {
		runtime.UnlockOSThread()
	}
	return err
}

func (tx *lmdbTx) Rollback() {
	tx.closeCursors()
	tx.txn.Abort()
	if tx.standalone && tx.writable {
		runtime.UnlockOSThread()
	}
}

func (tx *lmdbTx) closeCursors() {
	for _, c := range tx.cursors {
		c.Close()
	}
	tx.cursors = nil
}

type lmdbBucket struct {
	tx  *lmdbTx
	dbi lmdb.DBI
}

func (b *lmdbBucket) Get(key []byte) ([]byte, error) {
	v, err := b.tx.txn.Get(b.dbi, key)
	if err != nil {
		if lmdb.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(v) == 0 {
		// present with an empty value; nil is reserved for absence
		return []byte{}, nil
	}
	return common.CopyBytes(v), nil
}

func (b *lmdbBucket) Put(key, value []byte) error {
	return b.tx.txn.Put(b.dbi, key, value, 0)
}

func (b *lmdbBucket) Delete(key []byte) error {
	err := b.tx.txn.Del(b.dbi, key, nil)
	if lmdb.IsNotFound(err) {
		return nil
	}
	return err
}

func (b *lmdbBucket) Cursor() Cursor {
	c, err := b.tx.txn.OpenCursor(b.dbi)
	if err != nil {
		panic(fmt.Errorf("opening cursor: %w", err))
	}
	b.tx.cursors = append(b.tx.cursors, c)
	return &lmdbCursor{c: c}
}

type lmdbCursor struct {
	c *lmdb.Cursor
}

func (c *lmdbCursor) Seek(key []byte) (k, v []byte, err error) {
	if len(key) == 0 {
		// LMDB rejects empty keys, start from the first entry instead
		k, v, err = c.c.Get(nil, nil, lmdb.First)
	} else {
		k, v, err = c.c.Get(key, nil, lmdb.SetRange)
	}
	if lmdb.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return common.CopyBytes(k), copyValue(v), nil
}

func (c *lmdbCursor) Next() (k, v []byte, err error) {
	k, v, err = c.c.Get(nil, nil, lmdb.Next)
	if lmdb.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return common.CopyBytes(k), copyValue(v), nil
}

func copyValue(v []byte) []byte {
	if len(v) == 0 {
		return []byte{}
	}
	return common.CopyBytes(v)
}

func (c *lmdbCursor) Close() {
	c.c.Close()
}
