package state

import (
	"time"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// BlockStateWrite is the per-block state produced by the consensus driver,
// decomposed into the state and block column families by AddBlockToBatch.
type BlockStateWrite struct {
	MerkleTreeStores MerkleTreeStoresWrite
	Header           *types.Header
	Hash             common.Hash
	Height           types.BlockHeight
	Time             time.Time
	Epoch            types.Epoch
	PredEpochs       types.Epochs
	Results          types.BlockResults
	ConversionState  types.ConversionState

	NextEpochMinStartHeight types.BlockHeight
	NextEpochMinStartTime   time.Time
	UpdateEpochBlocksDelay  *uint32
	AddressGen              types.AddressGen
	EthereumHeight          *types.BlockHeight
	EthEventsQueue          types.EthEventsQueue
	CommitOnlyData          types.CommitOnlyData
}

// BlockStateRead is the last committed block state as reloaded at startup.
type BlockStateRead struct {
	Hash            common.Hash
	Height          types.BlockHeight
	Time            time.Time
	Epoch           types.Epoch
	PredEpochs      types.Epochs
	Results         types.BlockResults
	ConversionState types.ConversionState

	NextEpochMinStartHeight types.BlockHeight
	NextEpochMinStartTime   time.Time
	UpdateEpochBlocksDelay  *uint32
	AddressGen              types.AddressGen
	EthereumHeight          *types.BlockHeight
	EthEventsQueue          types.EthEventsQueue
	CommitOnlyData          types.CommitOnlyData
}

// AddBlockToBatch decomposes a block into the batch. The height singleton is
// written last: it is the commit marker ReadLastBlock keys off, so a batch
// assembled but never executed can not be mistaken for a committed block.
func (db *StateDB) AddBlockToBatch(block BlockStateWrite, batch *ethdb.WriteBatch, isFullCommit bool) error {
	// pred-tracked epoch timing and commitment singletons
	if err := db.AddStateValue(batch, dbutils.StateBucket, dbutils.NextEpochMinStartHeightKey, block.NextEpochMinStartHeight); err != nil {
		return err
	}
	if err := db.AddStateValue(batch, dbutils.StateBucket, dbutils.NextEpochMinStartTimeKey, block.NextEpochMinStartTime); err != nil {
		return err
	}
	if err := db.AddStateValue(batch, dbutils.StateBucket, dbutils.UpdateEpochBlocksDelayKey, block.UpdateEpochBlocksDelay); err != nil {
		return err
	}
	if err := db.AddStateValue(batch, dbutils.StateBucket, dbutils.CommitOnlyDataKey, block.CommitOnlyData); err != nil {
		return err
	}

	// The conversion state only changes on epoch boundaries, so its pred/
	// sibling is refreshed on full commits only.
	if isFullCommit {
		if err := db.AddStateValue(batch, dbutils.StateBucket, dbutils.ConversionStateKey, block.ConversionState); err != nil {
			return err
		}
	}

	if err := db.AddValue(batch, dbutils.StateBucket, dbutils.EthereumHeightKey, block.EthereumHeight); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.StateBucket, dbutils.EthEventsQueueKey, block.EthEventsQueue); err != nil {
		return err
	}

	if err := db.addMerkleTreeStores(batch, block.MerkleTreeStores, block.Height, block.Epoch, isFullCommit); err != nil {
		return err
	}

	if block.Header != nil {
		if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.BlockHeaderKeySegment), block.Header); err != nil {
			return err
		}
	}
	if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.BlockHashKeySegment), block.Hash); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.BlockTimeKeySegment), block.Time); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.EpochKeySegment), block.Epoch); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.ResultsKey(block.Height), block.Results); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.PredEpochsKeySegment), block.PredEpochs); err != nil {
		return err
	}
	if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.AddressGenKeySegment), block.AddressGen); err != nil {
		return err
	}

	// commit marker, always last
	if err := db.AddValue(batch, dbutils.StateBucket, dbutils.BlockHeightKey, block.Height); err != nil {
		return err
	}
	blockCommitCounter.Inc()
	return nil
}

// ReadLastBlock reloads the last committed block state. It returns nil if any
// required field is missing: a node that has never committed reads nil with
// no error, a torn state is indistinguishable by design since batches apply
// atomically.
func (db *StateDB) ReadLastBlock() (*BlockStateRead, error) {
	var block BlockStateRead

	found, err := db.readValue(dbutils.StateBucket, dbutils.BlockHeightKey, &block.Height)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.NextEpochMinStartHeightKey, &block.NextEpochMinStartHeight)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.NextEpochMinStartTimeKey, &block.NextEpochMinStartTime)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.UpdateEpochBlocksDelayKey, &block.UpdateEpochBlocksDelay)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.CommitOnlyDataKey, &block.CommitOnlyData)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.ConversionStateKey, &block.ConversionState)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.EthereumHeightKey, &block.EthereumHeight)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.StateBucket, dbutils.EthEventsQueueKey, &block.EthEventsQueue)
	if err != nil || !found {
		return nil, err
	}

	found, err = db.readValue(dbutils.BlockBucket, dbutils.ResultsKey(block.Height), &block.Results)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.BlockHashKeySegment), &block.Hash)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.BlockTimeKeySegment), &block.Time)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.EpochKeySegment), &block.Epoch)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.PredEpochsKeySegment), &block.PredEpochs)
	if err != nil || !found {
		return nil, err
	}
	found, err = db.readValue(dbutils.BlockBucket, dbutils.BlockSegmentKey(block.Height, dbutils.AddressGenKeySegment), &block.AddressGen)
	if err != nil || !found {
		return nil, err
	}
	return &block, nil
}

// ReadBlockHeader returns the header persisted with the block at the given
// height, or nil if the block carried none.
func (db *StateDB) ReadBlockHeader(height types.BlockHeight) (*types.Header, error) {
	var header types.Header
	found, err := db.readValue(dbutils.BlockBucket, dbutils.BlockSegmentKey(height, dbutils.BlockHeaderKeySegment), &header)
	if err != nil || !found {
		return nil, err
	}
	return &header, nil
}
