package state

import (
	"github.com/quaylabs/ledgerdb/codec"
	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/common/dbutils"
	"github.com/quaylabs/ledgerdb/core/types"
)

// ReadBridgePoolSignedNonce returns the signed bridge pool nonce as of the
// given height. Heights at or beyond the last committed one, and height 0,
// read the current value; anything else goes through the historic-read
// algorithm. Returns nil when no signed root has ever been stored.
func (db *StateDB) ReadBridgePoolSignedNonce(height, lastHeight types.BlockHeight) (*uint64, error) {
	nonceKey := common.MustParseKey(dbutils.BridgePoolSignedRootKey)

	var raw []byte
	var err error
	if height == 0 || height >= lastHeight {
		raw, err = db.ReadSubspaceVal(nonceKey)
	} else {
		raw, err = db.ReadSubspaceValWithHeight(nonceKey, height, lastHeight)
	}
	if err != nil || raw == nil {
		return nil, err
	}

	var proof types.BridgePoolRootProof
	if err := codec.Decode(raw, &proof); err != nil {
		return nil, err
	}
	return &proof.Nonce, nil
}
