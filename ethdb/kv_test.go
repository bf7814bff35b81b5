package ethdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quaylabs/ledgerdb/common/dbutils"
)

func TestPutGetDelete(t *testing.T) {
	kv := NewMemKV()
	defer kv.Close()
	ctx := context.Background()

	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		return tx.Bucket(dbutils.SubspaceBucket).Put([]byte("key"), []byte("value"))
	}))

	var got []byte
	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, err := tx.Bucket(dbutils.SubspaceBucket).Get([]byte("key"))
		got = v
		return err
	}))
	require.Equal(t, []byte("value"), got)

	// absent keys read as nil without an error
	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, err := tx.Bucket(dbutils.SubspaceBucket).Get([]byte("missing"))
		require.NoError(t, err)
		require.Nil(t, v)
		return nil
	}))

	// empty values read back non-nil
	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		return tx.Bucket(dbutils.SubspaceBucket).Put([]byte("empty"), []byte{})
	}))
	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, err := tx.Bucket(dbutils.SubspaceBucket).Get([]byte("empty"))
		require.NoError(t, err)
		require.NotNil(t, v)
		require.Len(t, v, 0)
		return nil
	}))

	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		return tx.Bucket(dbutils.SubspaceBucket).Delete([]byte("key"))
	}))
	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, err := tx.Bucket(dbutils.SubspaceBucket).Get([]byte("key"))
		require.NoError(t, err)
		require.Nil(t, v)
		return nil
	}))
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	kv := NewMemKV()
	defer kv.Close()

	require.NoError(t, kv.Update(context.Background(), func(tx Tx) error {
		return tx.Bucket(dbutils.StateBucket).Delete([]byte("never-written"))
	}))
}

func TestUpdateRollsBackOnError(t *testing.T) {
	kv := NewMemKV()
	defer kv.Close()
	ctx := context.Background()

	boom := errors.New("boom")
	err := kv.Update(ctx, func(tx Tx) error {
		if err := tx.Bucket(dbutils.StateBucket).Put([]byte("a"), []byte("1")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, err := tx.Bucket(dbutils.StateBucket).Get([]byte("a"))
		require.NoError(t, err)
		require.Nil(t, v)
		return nil
	}))
}

func TestExecBatchIsAtomicAcrossBuckets(t *testing.T) {
	kv := NewMemKV()
	defer kv.Close()
	ctx := context.Background()

	batch := NewWriteBatch()
	batch.Put(dbutils.StateBucket, []byte("height"), []byte("1"))
	batch.Put(dbutils.BlockBucket, []byte("1/hash"), []byte("h"))
	batch.Put(dbutils.SubspaceBucket, []byte("acct"), []byte("v"))
	batch.Delete(dbutils.SubspaceBucket, []byte("gone"))
	require.Equal(t, 4, batch.Len())
	require.NoError(t, ExecBatch(ctx, kv, batch))

	for bucket, key := range map[string]string{
		dbutils.StateBucket:    "height",
		dbutils.BlockBucket:    "1/hash",
		dbutils.SubspaceBucket: "acct",
	} {
		require.NoError(t, kv.View(ctx, func(tx Tx) error {
			v, err := tx.Bucket(bucket).Get([]byte(key))
			require.NoError(t, err)
			require.NotNil(t, v, bucket)
			return nil
		}))
	}
}

func TestBatchLastOpWins(t *testing.T) {
	kv := NewMemKV()
	defer kv.Close()
	ctx := context.Background()

	batch := NewWriteBatch()
	batch.Put(dbutils.StateBucket, []byte("k"), []byte("first"))
	batch.Put(dbutils.StateBucket, []byte("k"), []byte("second"))
	batch.Delete(dbutils.StateBucket, []byte("k2"))
	batch.Put(dbutils.StateBucket, []byte("k2"), []byte("kept"))
	require.NoError(t, ExecBatch(ctx, kv, batch))

	require.NoError(t, kv.View(ctx, func(tx Tx) error {
		v, err := tx.Bucket(dbutils.StateBucket).Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("second"), v)
		v, err = tx.Bucket(dbutils.StateBucket).Get([]byte("k2"))
		require.NoError(t, err)
		require.Equal(t, []byte("kept"), v)
		return nil
	}))
}

func TestCursorOrderAndSeek(t *testing.T) {
	kv := NewMemKV()
	defer kv.Close()
	ctx := context.Background()

	keys := []string{"0/a", "0/b", "01/a", "1/a"}
	require.NoError(t, kv.Update(ctx, func(tx Tx) error {
		b := tx.Bucket(dbutils.SubspaceBucket)
		for _, k := range keys {
			if err := b.Put([]byte(k), []byte{0}); err != nil {
				return err
			}
		}
		return nil
	}))

	tx, err := kv.Begin(ctx, false)
	require.NoError(t, err)
	defer tx.Rollback()

	cur := tx.Bucket(dbutils.SubspaceBucket).Cursor()
	var itered []string
	for k, _, err := cur.Seek([]byte("0/")); k != nil; k, _, err = cur.Next() {
		require.NoError(t, err)
		itered = append(itered, string(k))
	}
	require.Equal(t, []string{"0/a", "0/b", "01/a", "1/a"}, itered)
}
