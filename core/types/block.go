package types

import (
	"strconv"
	"time"

	"github.com/quaylabs/ledgerdb/common"
)

// BlockHeight of a committed block. Heights start at 0 for an uncommitted
// chain and are rendered in decimal inside storage keys.
type BlockHeight uint64

func (h BlockHeight) Raw() string { return strconv.FormatUint(uint64(h), 10) }

func (h BlockHeight) String() string { return h.Raw() }

// Prev returns the predecessor height, saturating at 0.
func (h BlockHeight) Prev() BlockHeight {
	if h == 0 {
		return 0
	}
	return h - 1
}

// Epoch is a consensus epoch counter.
type Epoch uint64

func (e Epoch) Raw() string { return strconv.FormatUint(uint64(e), 10) }

func (e Epoch) String() string { return e.Raw() }

// Epochs records the first block height of each known epoch, so that the
// epoch of any recent height can be recovered. This is the pred_epochs map
// persisted with every block.
type Epochs struct {
	FirstKnownEpoch   Epoch         `codec:"first_known_epoch"`
	FirstBlockHeights []BlockHeight `codec:"first_block_heights"`
}

// NewEpoch marks the start of the next epoch at the given height.
func (e *Epochs) NewEpoch(height BlockHeight) {
	e.FirstBlockHeights = append(e.FirstBlockHeights, height)
}

// GetEpoch returns the epoch active at the given height, if known.
func (e *Epochs) GetEpoch(height BlockHeight) (Epoch, bool) {
	for i := len(e.FirstBlockHeights) - 1; i >= 0; i-- {
		if e.FirstBlockHeights[i] <= height {
			return e.FirstKnownEpoch + Epoch(i), true
		}
	}
	return 0, false
}

// Header is the subset of the consensus block header retained in storage.
type Header struct {
	Hash            common.Hash `codec:"hash"`
	Time            time.Time   `codec:"time"`
	ProposerAddress []byte      `codec:"proposer_address"`
}

// AddressGen is the established-address generator state, advanced by every
// address created on chain.
type AddressGen struct {
	LastHash common.Hash `codec:"last_hash"`
}

// BlockResults is the encoded per-tx result bitmap of a block.
type BlockResults []byte

// ConversionState is the encoded shielded conversion state, refreshed on
// epoch boundaries.
type ConversionState []byte

// EthEventsQueue is the encoded queue of confirmed Ethereum events awaiting
// processing.
type EthEventsQueue []byte

// CommitOnlyData is the encoded commitment over commit-only data.
type CommitOnlyData []byte

// BridgePoolRootProof is the signed root of the Ethereum bridge pool, with
// the monotonic nonce the signature covers.
type BridgePoolRootProof struct {
	Root       common.Hash `codec:"root"`
	Nonce      uint64      `codec:"nonce"`
	Signatures []byte      `codec:"signatures"`
}
