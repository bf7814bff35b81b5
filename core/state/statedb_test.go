package state_test

import (
	"testing"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/core/state"
	"github.com/quaylabs/ledgerdb/core/types"
)

func openTestDB(t *testing.T) *state.StateDB {
	t.Helper()
	db, err := state.Open(t.TempDir(), state.Options{InMem: true})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func testMerkleStores() state.MerkleTreeStoresWrite {
	stores := state.NewMerkleTreeStoresWrite()
	for _, st := range state.StoreTypes() {
		stores.Roots[st] = common.Sha256([]byte("root-" + st.String()))
		stores.Stores[st] = []byte("store-" + st.String())
	}
	return stores
}

func blockStateWrite(height types.BlockHeight, epoch types.Epoch, predEpochs types.Epochs,
	conversionState types.ConversionState) state.BlockStateWrite {
	return state.BlockStateWrite{
		MerkleTreeStores:        testMerkleStores(),
		Header:                  &types.Header{Hash: common.Sha256([]byte("header")), Time: time.Unix(1600000000, 0).UTC()},
		Hash:                    common.Sha256([]byte("block"), []byte(height.Raw())),
		Height:                  height,
		Time:                    time.Unix(1600000000, 0).UTC().Add(time.Duration(height) * time.Second),
		Epoch:                   epoch,
		PredEpochs:              predEpochs,
		Results:                 types.BlockResults{0x01},
		ConversionState:         conversionState,
		NextEpochMinStartHeight: height + 1,
		NextEpochMinStartTime:   time.Unix(1600003600, 0).UTC(),
		UpdateEpochBlocksDelay:  nil,
		AddressGen:              types.AddressGen{LastHash: common.Sha256([]byte("addr-gen"))},
		EthereumHeight:          nil,
		EthEventsQueue:          types.EthEventsQueue{},
		CommitOnlyData:          types.CommitOnlyData{0x02},
	}
}

// Test that a block written can be loaded back from the DB.
func TestLoadState(t *testing.T) {
	db := openTestDB(t)

	batch := db.NewBatch()
	height := types.BlockHeight(0)
	_, err := db.BatchWriteSubspaceVal(batch, height, common.MustParseKey("test"), []byte{1, 1, 1, 1}, true)
	require.NoError(t, err)

	var predEpochs types.Epochs
	predEpochs.NewEpoch(height)
	require.NoError(t, db.AddBlockToBatch(blockStateWrite(height, 0, predEpochs, types.ConversionState{0x07}), batch, true))
	require.NoError(t, db.ExecBatch(batch))

	loaded, err := db.ReadLastBlock()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, height, loaded.Height)
	require.Equal(t, types.ConversionState{0x07}, loaded.ConversionState)
	require.Equal(t, types.BlockResults{0x01}, loaded.Results)

	value, err := db.ReadSubspaceVal(common.MustParseKey("test"))
	require.NoError(t, err)
	require.Equal(t, []byte{1, 1, 1, 1}, value)
}

func TestReadLastBlockEmptyDB(t *testing.T) {
	db := openTestDB(t)

	loaded, err := db.ReadLastBlock()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestReadWithHeight(t *testing.T) {
	db := openTestDB(t)

	key := common.MustParseKey("test")
	batchKey := common.MustParseKey("batch")

	// first block at 100, one write batched, one direct
	batch := db.NewBatch()
	_, err := db.BatchWriteSubspaceVal(batch, 100, batchKey, []byte{1, 1, 1, 1}, true)
	require.NoError(t, err)
	require.NoError(t, db.ExecBatch(batch))
	_, err = db.WriteSubspaceVal(100, key, []byte{1, 1, 1, 0}, true)
	require.NoError(t, err)

	// overwrite both at 111
	batch = db.NewBatch()
	_, err = db.BatchWriteSubspaceVal(batch, 111, batchKey, []byte{2, 2, 2, 2}, true)
	require.NoError(t, err)
	require.NoError(t, db.ExecBatch(batch))
	_, err = db.WriteSubspaceVal(111, key, []byte{2, 2, 2, 0}, true)
	require.NoError(t, err)

	lastHeight := types.BlockHeight(111)
	for _, tt := range []struct {
		key    common.Key
		height types.BlockHeight
		want   []byte
	}{
		{batchKey, 100, []byte{1, 1, 1, 1}},
		{key, 100, []byte{1, 1, 1, 0}},
		{batchKey, 111, []byte{2, 2, 2, 2}},
		{key, 111, []byte{2, 2, 2, 0}},
	} {
		got, err := db.ReadSubspaceValWithHeight(tt.key, tt.height, lastHeight)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	// a query between the two heights resolves to the earlier value
	got, err := db.ReadSubspaceValWithHeight(key, 105, lastHeight)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 1, 1, 0}, got)

	latest, err := db.ReadSubspaceVal(batchKey)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 2, 2, 2}, latest)

	// delete both at 222
	lastHeight = 222
	batch = db.NewBatch()
	_, err = db.BatchDeleteSubspaceVal(batch, 222, batchKey, true)
	require.NoError(t, err)
	require.NoError(t, db.ExecBatch(batch))
	_, err = db.DeleteSubspaceVal(222, key, true)
	require.NoError(t, err)

	for _, k := range []common.Key{batchKey, key} {
		deleted, err := db.ReadSubspaceValWithHeight(k, 222, lastHeight)
		require.NoError(t, err)
		require.Nil(t, deleted)

		latest, err := db.ReadSubspaceVal(k)
		require.NoError(t, err)
		require.Nil(t, latest)

		// values before the deletion are still resolvable
		before, err := db.ReadSubspaceValWithHeight(k, 111, lastHeight)
		require.NoError(t, err)
		require.NotNil(t, before)
	}
}

func TestWriteReturnsSizeDiff(t *testing.T) {
	db := openTestDB(t)
	key := common.MustParseKey("sized")

	sizeDiff, err := db.WriteSubspaceVal(1, key, []byte{1, 2, 3, 4}, true)
	require.NoError(t, err)
	require.Equal(t, int64(4), sizeDiff)

	sizeDiff, err = db.WriteSubspaceVal(2, key, []byte{1, 2}, true)
	require.NoError(t, err)
	require.Equal(t, int64(-2), sizeDiff)

	prevLen, err := db.DeleteSubspaceVal(3, key, true)
	require.NoError(t, err)
	require.Equal(t, int64(2), prevLen)

	prevLen, err = db.DeleteSubspaceVal(4, key, true)
	require.NoError(t, err)
	require.Equal(t, int64(0), prevLen)
}

func TestSubspaceReadCache(t *testing.T) {
	db, err := state.Open(t.TempDir(), state.Options{InMem: true, Cache: fastcache.New(1 << 20)})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	key := common.MustParseKey("cached")
	_, err = db.WriteSubspaceVal(1, key, []byte{1, 2, 3}, true)
	require.NoError(t, err)

	// populate the cache and check that callers get their own copy
	value, err := db.ReadSubspaceVal(key)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, value)
	value[0] = 0xff
	value, err = db.ReadSubspaceVal(key)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, value)

	// a staged but uncommitted batch is invisible, through the cache or not
	batch := db.NewBatch()
	_, err = db.BatchWriteSubspaceVal(batch, 2, key, []byte{9, 9, 9}, true)
	require.NoError(t, err)
	value, err = db.ReadSubspaceVal(key)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, value)

	// committing invalidates the cached entry
	require.NoError(t, db.ExecBatch(batch))
	value, err = db.ReadSubspaceVal(key)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9}, value)

	// deletions propagate through the cache too
	_, err = db.DeleteSubspaceVal(3, key, true)
	require.NoError(t, err)
	value, err = db.ReadSubspaceVal(key)
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestWriteRejectsReservedKey(t *testing.T) {
	db := openTestDB(t)

	_, err := db.WriteSubspaceVal(1, common.MustParseKey("pred/sneaky"), []byte{1}, true)
	require.Error(t, err)
}

func TestPrefixIter(t *testing.T) {
	db := openTestDB(t)

	all := []string{"0/a", "0/b", "0/c", "01/a", "1/a", "1/b", "1/c"}
	batch := db.NewBatch()
	for _, k := range all {
		_, err := db.BatchWriteSubspaceVal(batch, 1, common.MustParseKey(k), []byte{0}, true)
		require.NoError(t, err)
	}
	require.NoError(t, db.ExecBatch(batch))

	collect := func(prefix *common.Key) []string {
		var keys []string
		it := db.IterPrefix(prefix)
		for it.Next() {
			keys = append(keys, it.Key())
			require.Equal(t, uint64(len(it.Key())+len(it.Value())), it.Gas())
		}
		require.NoError(t, it.Err())
		return keys
	}

	// prefix "0" must not match "01"
	prefix0 := common.MustParseKey("0")
	require.Equal(t, []string{"0/a", "0/b", "0/c"}, collect(&prefix0))

	prefix1 := common.MustParseKey("1")
	require.Equal(t, []string{"1/a", "1/b", "1/c"}, collect(&prefix1))

	require.Equal(t, all, collect(nil))
}
