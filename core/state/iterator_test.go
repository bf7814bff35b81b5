package state_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/core/state"
	"github.com/quaylabs/ledgerdb/core/types"
)

func TestIterPattern(t *testing.T) {
	db := openTestDB(t)

	batch := db.NewBatch()
	for _, k := range []string{"token/balance/alice", "token/balance/bob", "token/supply", "gov/quorum"} {
		_, err := db.BatchWriteSubspaceVal(batch, 1, common.MustParseKey(k), []byte{1}, true)
		require.NoError(t, err)
	}
	require.NoError(t, db.ExecBatch(batch))

	var matched []string
	it := db.IterPattern(nil, regexp.MustCompile(`^token/balance/`))
	for it.Next() {
		matched = append(matched, it.Key())
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"token/balance/alice", "token/balance/bob"}, matched)

	// pattern composed with a prefix
	prefix := common.MustParseKey("token")
	matched = nil
	it = db.IterPattern(&prefix, regexp.MustCompile(`supply`))
	for it.Next() {
		matched = append(matched, it.Key())
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"token/supply"}, matched)
}

func TestIterResults(t *testing.T) {
	db := openTestDB(t)

	var predEpochs types.Epochs
	predEpochs.NewEpoch(1)
	for _, h := range []types.BlockHeight{1, 2} {
		batch := db.NewBatch()
		require.NoError(t, db.AddBlockToBatch(blockStateWrite(h, 1, predEpochs, types.ConversionState{1}), batch, true))
		require.NoError(t, db.ExecBatch(batch))
	}

	var heights []string
	it := db.IterResults()
	for it.Next() {
		heights = append(heights, it.Key())
		require.NotEmpty(t, it.Value())
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"1", "2"}, heights)
}

func TestIteratorConcurrentWrite(t *testing.T) {
	db := openTestDB(t)

	batch := db.NewBatch()
	for _, k := range []string{"a", "b", "c"} {
		_, err := db.BatchWriteSubspaceVal(batch, 1, common.MustParseKey(k), []byte{1}, true)
		require.NoError(t, err)
	}
	require.NoError(t, db.ExecBatch(batch))

	// a live iterator must not block point writes
	it := db.IterPrefix(nil)
	require.True(t, it.Next())

	_, err := db.WriteSubspaceVal(2, common.MustParseKey("d"), []byte{2}, true)
	require.NoError(t, err)

	// the iterator keeps its snapshot
	var rest []string
	for it.Next() {
		rest = append(rest, it.Key())
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"b", "c"}, rest)

	value, err := db.ReadSubspaceVal(common.MustParseKey("d"))
	require.NoError(t, err)
	require.Equal(t, []byte{2}, value)
}

func TestIterReplayProtectionBuckets(t *testing.T) {
	db := openTestDB(t)

	lastHash := common.Sha256([]byte("in-last"))
	bufHash := common.Sha256([]byte("in-buffer"))

	batch := db.NewBatch()
	db.WriteReplayProtectionEntry(batch, state.ReplayLast, lastHash)
	db.WriteReplayProtectionEntry(batch, state.ReplayBuffer, bufHash)
	require.NoError(t, db.ExecBatch(batch))

	it := db.IterReplayProtection()
	require.True(t, it.Next())
	require.Equal(t, lastHash.Hex(), it.Key())
	require.False(t, it.Next())
	require.NoError(t, it.Err())

	it = db.IterReplayProtectionBuffer()
	require.True(t, it.Next())
	require.Equal(t, bufHash.Hex(), it.Key())
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}
