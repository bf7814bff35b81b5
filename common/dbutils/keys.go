package dbutils

import (
	"fmt"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/core/types"
)

// State singleton keys
const (
	BlockHeightKey             = "height"
	NextEpochMinStartHeightKey = "next_epoch_min_start_height"
	NextEpochMinStartTimeKey   = "next_epoch_min_start_time"
	UpdateEpochBlocksDelayKey  = "update_epoch_blocks_delay"
	CommitOnlyDataKey          = "commit_only_data"
	ConversionStateKey         = "conversion_state"
	EthereumHeightKey          = "ethereum_height"
	EthEventsQueueKey          = "eth_events_queue"
)

// BridgePoolSignedRootKey is the subspace key the bridge keeps its latest
// signed pool root under.
const BridgePoolSignedRootKey = "bridge_pool/signed_root"

// Key segments with a reserved meaning in one of the buckets.
const (
	PredKeyPrefix      = "pred"
	ResultsKeyPrefix   = "results"
	MigrationKeyPrefix = "migrations"

	TreeKeySegment      = "tree"
	TreeRootKeySegment  = "root"
	TreeStoreKeySegment = "store"

	BlockHeaderKeySegment = "header"
	BlockHashKeySegment   = "hash"
	BlockTimeKeySegment   = "time"
	EpochKeySegment       = "epoch"
	PredEpochsKeySegment  = "pred_epochs"
	AddressGenKeySegment  = "address_gen"

	OldDiffPrefix = "old"
	NewDiffPrefix = "new"

	ReplayLastPrefix   = "last"
	ReplayAllPrefix    = "all"
	ReplayBufferPrefix = "buffer"
)

// reservedSegments are the segments a user-supplied subspace key may not start
// with: a colliding first segment would make the key indistinguishable from
// one of the engine's own layouts.
var reservedSegments = map[string]struct{}{
	PredKeyPrefix:         {},
	ResultsKeyPrefix:      {},
	MigrationKeyPrefix:    {},
	TreeKeySegment:        {},
	TreeRootKeySegment:    {},
	TreeStoreKeySegment:   {},
	BlockHeaderKeySegment: {},
	BlockHashKeySegment:   {},
	BlockTimeKeySegment:   {},
	EpochKeySegment:       {},
	PredEpochsKeySegment:  {},
	AddressGenKeySegment:  {},
	OldDiffPrefix:         {},
	NewDiffPrefix:         {},
	ReplayLastPrefix:      {},
	ReplayAllPrefix:       {},
	ReplayBufferPrefix:    {},
}

// ErrInvalidKey reports a user key colliding with a reserved layout.
type ErrInvalidKey struct {
	Key string
}

func (e ErrInvalidKey) Error() string {
	return fmt.Sprintf("invalid storage key %q: reserved first segment", e.Key)
}

// ValidateUserKey rejects subspace keys whose first segment is reserved.
func ValidateUserKey(key common.Key) error {
	if key.IsEmpty() {
		return ErrInvalidKey{Key: key.String()}
	}
	if _, reserved := reservedSegments[key.FirstSegment()]; reserved {
		return ErrInvalidKey{Key: key.String()}
	}
	return nil
}

// PredKey is the one-step predecessor sibling of a tracked state singleton.
func PredKey(name string) string {
	return PredKeyPrefix + common.KeySeparator + name
}

// MigrationKey marks an applied migration in the state bucket.
func MigrationKey(name string) string {
	return MigrationKeyPrefix + common.KeySeparator + name
}

// DiffKeys composes the old and new diff keys of a subspace key at a height:
// <height>/old/<key> and <height>/new/<key>.
func DiffKeys(key common.Key, height types.BlockHeight) (oldKey, newKey string) {
	prefix := height.Raw() + common.KeySeparator
	oldKey = prefix + OldDiffPrefix + common.KeySeparator + key.String()
	newKey = prefix + NewDiffPrefix + common.KeySeparator + key.String()
	return oldKey, newKey
}

// DiffPrefix is the common prefix of all old or new diff keys at a height,
// without a trailing separator.
func DiffPrefix(height types.BlockHeight, old bool) string {
	kind := NewDiffPrefix
	if old {
		kind = OldDiffPrefix
	}
	return height.Raw() + common.KeySeparator + kind
}

// ResultsKey addresses the block results record: results/<height>.
func ResultsKey(height types.BlockHeight) string {
	return ResultsKeyPrefix + common.KeySeparator + height.Raw()
}

// BlockSegmentKey addresses a per-height block record field: <height>/<segment>.
func BlockSegmentKey(height types.BlockHeight, segment string) string {
	return height.Raw() + common.KeySeparator + segment
}

// TreeKeyPrefixWithHeight keys a merkle store by height so that rollback's
// blanket per-height deletion covers it: <height>/tree/<store-type>.
func TreeKeyPrefixWithHeight(storeType string, height types.BlockHeight) string {
	return height.Raw() + common.KeySeparator + TreeKeySegment + common.KeySeparator + storeType
}

// TreeKeyPrefixWithEpoch keys a merkle store by epoch, out of reach of the
// per-height deletion: tree/<epoch>/<store-type>.
func TreeKeyPrefixWithEpoch(storeType string, epoch types.Epoch) string {
	return TreeKeySegment + common.KeySeparator + epoch.Raw() + common.KeySeparator + storeType
}

func TreeRootKey(prefix string) string {
	return prefix + common.KeySeparator + TreeRootKeySegment
}

func TreeStoreKey(prefix string) string {
	return prefix + common.KeySeparator + TreeStoreKeySegment
}

// ReplayKey addresses a tx hash inside one of the replay protection buckets.
func ReplayKey(bucketPrefix string, hash common.Hash) string {
	return bucketPrefix + common.KeySeparator + hash.Hex()
}
