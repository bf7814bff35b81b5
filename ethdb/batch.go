package ethdb

import (
	"context"

	"github.com/quaylabs/ledgerdb/common"
)

type batchOp struct {
	bucket string
	key    []byte
	value  []byte
	del    bool
}

// WriteBatch accumulates puts and deletes across buckets in memory. Nothing
// touches the store until ExecBatch applies the whole batch in one
// transaction. Ops replay in insertion order, so a later put of the same key
// wins.
type WriteBatch struct {
	ops  []batchOp
	size int
}

func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

func (b *WriteBatch) Put(bucket string, key, value []byte) {
	b.ops = append(b.ops, batchOp{bucket: bucket, key: common.CopyBytes(key), value: common.CopyBytes(value)})
	b.size += len(key) + len(value)
}

func (b *WriteBatch) Delete(bucket string, key []byte) {
	b.ops = append(b.ops, batchOp{bucket: bucket, key: common.CopyBytes(key), del: true})
	b.size += len(key)
}

// Len is the number of accumulated operations.
func (b *WriteBatch) Len() int { return len(b.ops) }

// Size is the accumulated payload in bytes.
func (b *WriteBatch) Size() int { return b.size }

func (b *WriteBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// Replay hands every accumulated op to the callback in insertion order. The
// value is nil for deletes.
func (b *WriteBatch) Replay(f func(bucket string, key, value []byte, del bool) error) error {
	for _, op := range b.ops {
		if err := f(op.bucket, op.key, op.value, op.del); err != nil {
			return err
		}
	}
	return nil
}

// ExecBatch applies the batch atomically: either every op is visible or none.
func ExecBatch(ctx context.Context, kv KV, b *WriteBatch) error {
	if b.Len() == 0 {
		return nil
	}
	return kv.Update(ctx, func(tx Tx) error {
		for _, op := range b.ops {
			bucket := tx.Bucket(op.bucket)
			if op.del {
				if err := bucket.Delete(op.key); err != nil {
					return err
				}
				continue
			}
			if err := bucket.Put(op.key, op.value); err != nil {
				return err
			}
		}
		return nil
	})
}
