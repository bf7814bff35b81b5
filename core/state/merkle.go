package state

import (
	"fmt"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
	"github.com/quaylabs/ledgerdb/ethdb"
)

// StoreType identifies one of the sub-trees composing the ledger's merkle
// state. The tree implementation is external; the engine persists each store
// as an opaque encoded blob plus its root.
type StoreType int

const (
	StoreTypeBase StoreType = iota
	StoreTypeAccount
	StoreTypeStorage
	StoreTypeIbc
	StoreTypePoS
	StoreTypeCommitData
)

var storeTypes = []StoreType{
	StoreTypeBase,
	StoreTypeAccount,
	StoreTypeStorage,
	StoreTypeIbc,
	StoreTypePoS,
	StoreTypeCommitData,
}

// StoreTypes lists every store type in persistence order.
func StoreTypes() []StoreType {
	return storeTypes
}

func (st StoreType) String() string {
	switch st {
	case StoreTypeBase:
		return "base"
	case StoreTypeAccount:
		return "account"
	case StoreTypeStorage:
		return "storage"
	case StoreTypeIbc:
		return "ibc"
	case StoreTypePoS:
		return "pos"
	case StoreTypeCommitData:
		return "commit_data"
	default:
		return fmt.Sprintf("unknown(%d)", int(st))
	}
}

// HeightKeyed store types need per-height fidelity and are written on every
// block; the rest mutate coarsely and are checkpointed per epoch on
// full-commit blocks only.
func (st StoreType) HeightKeyed() bool {
	return st == StoreTypeBase || st == StoreTypeCommitData
}

// treeKeyPrefix selects the height or epoch key family for the store type.
func treeKeyPrefix(st StoreType, epoch types.Epoch, height types.BlockHeight) string {
	if st.HeightKeyed() {
		return dbutils.TreeKeyPrefixWithHeight(st.String(), height)
	}
	return dbutils.TreeKeyPrefixWithEpoch(st.String(), epoch)
}

// MerkleTreeStoresWrite carries the tree stores of a block being committed.
type MerkleTreeStoresWrite struct {
	Roots  map[StoreType]common.Hash
	Stores map[StoreType][]byte
}

func NewMerkleTreeStoresWrite() MerkleTreeStoresWrite {
	return MerkleTreeStoresWrite{
		Roots:  make(map[StoreType]common.Hash),
		Stores: make(map[StoreType][]byte),
	}
}

func (m MerkleTreeStoresWrite) Root(st StoreType) common.Hash { return m.Roots[st] }

func (m MerkleTreeStoresWrite) Store(st StoreType) []byte { return m.Stores[st] }

// MerkleTreeStoresRead is the reloaded counterpart.
type MerkleTreeStoresRead struct {
	roots  map[StoreType]common.Hash
	stores map[StoreType][]byte
}

func NewMerkleTreeStoresRead() *MerkleTreeStoresRead {
	return &MerkleTreeStoresRead{
		roots:  make(map[StoreType]common.Hash),
		stores: make(map[StoreType][]byte),
	}
}

func (m *MerkleTreeStoresRead) SetRoot(st StoreType, root common.Hash) { m.roots[st] = root }

func (m *MerkleTreeStoresRead) SetStore(st StoreType, store []byte) { m.stores[st] = store }

func (m *MerkleTreeStoresRead) Root(st StoreType) common.Hash { return m.roots[st] }

func (m *MerkleTreeStoresRead) Store(st StoreType) []byte { return m.stores[st] }

// decodeStore validates an encoded tree store blob.
func decodeStore(st StoreType, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty %s store blob", ErrMerkleDecode, st)
	}
	return raw, nil
}

// addMerkleTreeStores schedules the root and store of every tree written at
// this block: height-keyed types always, the rest only on full commits.
func (db *StateDB) addMerkleTreeStores(batch *ethdb.WriteBatch, stores MerkleTreeStoresWrite,
	height types.BlockHeight, epoch types.Epoch, isFullCommit bool) error {
	for _, st := range StoreTypes() {
		if !st.HeightKeyed() && !isFullCommit {
			continue
		}
		prefix := treeKeyPrefix(st, epoch, height)
		root := stores.Root(st)
		if err := db.AddValue(batch, dbutils.BlockBucket, dbutils.TreeRootKey(prefix), root.Bytes()); err != nil {
			return err
		}
		db.AddValueBytes(batch, dbutils.BlockBucket, dbutils.TreeStoreKey(prefix), stores.Store(st))
	}
	return nil
}

// ReadMerkleTreeStores reconstructs the tree stores for the given epoch and
// the height at which the height-keyed stores were last written. A nil store
// type selects all of them. Returns nil if any requested piece is missing.
func (db *StateDB) ReadMerkleTreeStores(epoch types.Epoch, baseHeight types.BlockHeight,
	storeType *StoreType) (*MerkleTreeStoresRead, error) {
	requested := StoreTypes()
	if storeType != nil {
		requested = []StoreType{*storeType}
	}
	stores := NewMerkleTreeStoresRead()
	for _, st := range requested {
		prefix := treeKeyPrefix(st, epoch, baseHeight)

		var rootBytes []byte
		found, err := db.readValue(dbutils.BlockBucket, dbutils.TreeRootKey(prefix), &rootBytes)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		stores.SetRoot(st, common.BytesToHash(rootBytes))

		raw, err := db.readValueBytes(dbutils.BlockBucket, dbutils.TreeStoreKey(prefix))
		if err != nil {
			return nil, err
		}
		if raw == nil {
			return nil, nil
		}
		decoded, err := decodeStore(st, raw)
		if err != nil {
			return nil, err
		}
		stores.SetStore(st, decoded)
	}
	return stores, nil
}

// PruneMerkleTreeStore deletes the root and store of an epoch-keyed store
// type for the given epoch.
func (db *StateDB) PruneMerkleTreeStore(batch *ethdb.WriteBatch, st StoreType, epoch types.Epoch) error {
	if st.HeightKeyed() {
		return fmt.Errorf("store type %s is height-keyed, pruned with its block", st)
	}
	prefix := dbutils.TreeKeyPrefixWithEpoch(st.String(), epoch)
	batch.Delete(dbutils.BlockBucket, []byte(dbutils.TreeRootKey(prefix)))
	batch.Delete(dbutils.BlockBucket, []byte(dbutils.TreeStoreKey(prefix)))
	return nil
}
