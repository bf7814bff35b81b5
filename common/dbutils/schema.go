package dbutils

import "sort"

// Column families
var (
	// StateBucket holds the latest ledger state singletons.
	//
	/*
		Logical layout:
			height                      - the last committed block height
			next_epoch_min_start_height - minimum height from which the next epoch can start
			next_epoch_min_start_time   - minimum time from which the next epoch can start
			update_epoch_blocks_delay   - missing blocks before the epoch update fires
			commit_only_data            - commit-only data commitment
			conversion_state            - shielded conversion state
			ethereum_height             - last eth block seen by the oracle
			eth_events_queue            - confirmed eth events awaiting processing
			pred/<name>                 - one-step predecessor of the tracked keys above
			migrations/<name>           - applied migration markers
			rolled_back_to              - height the last rollback rewound to
	*/
	StateBucket = "state"

	// SubspaceBucket is the canonical state.
	// key - account storage key (hierarchical path)
	// value - opaque bytes
	SubspaceBucket = "subspace"

	// DiffsBucket keeps per-height value diffs for keys written with
	// persisted diffs. Kept forever to serve historic reads.
	// key - <height>/old/<key> and <height>/new/<key>
	// value - the value before/after the block
	DiffsBucket = "diffs"

	// RollbackBucket keeps the same diff pairs for keys written without
	// persisted diffs. Only the last block's entries are retained once the
	// caller prunes each height one block later (PruneNonPersistedDiffs).
	RollbackBucket = "rollback"

	// BlockBucket holds per-height block records and merkle tree stores.
	// key - <height>/{hash,time,epoch,pred_epochs,address_gen,header}
	// key - results/<height>
	// key - <height>/tree/<store-type>/{root,store} (height-keyed store types)
	// key - tree/<epoch>/<store-type>/{root,store}  (epoch-keyed store types)
	BlockBucket = "block"

	// ReplayProtectionBucket indexes processed tx hashes. Values are empty,
	// presence is the signal.
	// key - last/<hex-hash>   - included in the last block
	// key - all/<hex-hash>    - included up to the block before last
	// key - buffer/<hex-hash> - in transition between the two
	ReplayProtectionBucket = "replay_protection"
)

// Buckets is the list of all column families opened at startup. Missing ones
// are created. The list is sorted in init.
var Buckets = []string{
	StateBucket,
	SubspaceBucket,
	DiffsBucket,
	RollbackBucket,
	BlockBucket,
	ReplayProtectionBucket,
}

// CompactionStyle of a column family. Advisory: backends that do not compact
// ignore it.
type CompactionStyle int

const (
	CompactionLevel CompactionStyle = iota
	CompactionUniversal
)

type BucketsCfg map[string]BucketConfigItem

// BucketConfigItem carries the per-bucket tuning policy. All of it is
// advisory and must not affect correctness.
type BucketConfigItem struct {
	Compaction        CompactionStyle
	DynamicLevelBytes bool
	Compression       bool
	InsertBiased      bool
}

var BucketsConfigs = BucketsCfg{
	// read/update-intensive
	SubspaceBucket: {
		Compaction:        CompactionLevel,
		DynamicLevelBytes: true,
		Compression:       true,
	},
	// insert-intensive, never rewritten
	DiffsBucket: {
		Compaction:   CompactionUniversal,
		Compression:  true,
		InsertBiased: true,
	},
	RollbackBucket: {
		Compaction:  CompactionLevel,
		Compression: true,
	},
	// the state is small, skip compression
	StateBucket: {
		Compaction:        CompactionLevel,
		DynamicLevelBytes: true,
	},
	BlockBucket: {
		Compaction:   CompactionUniversal,
		Compression:  true,
		InsertBiased: true,
	},
	// point-lookup heavy, minimize read amplification
	ReplayProtectionBucket: {
		Compaction:        CompactionLevel,
		DynamicLevelBytes: true,
		Compression:       true,
	},
}

func DefaultBuckets() BucketsCfg {
	return BucketsConfigs
}

func init() {
	sort.Strings(Buckets)
	for _, name := range Buckets {
		if _, ok := BucketsConfigs[name]; !ok {
			BucketsConfigs[name] = BucketConfigItem{}
		}
	}
}
