package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quaylabs/ledgerdb/common"
	"github.com/quaylabs/ledgerdb/core/types"
)

func TestRoundTripHeight(t *testing.T) {
	encoded, err := Encode(types.BlockHeight(12345))
	require.NoError(t, err)

	var decoded types.BlockHeight
	require.NoError(t, Decode(encoded, &decoded))
	require.Equal(t, types.BlockHeight(12345), decoded)
}

func TestRoundTripEpochs(t *testing.T) {
	epochs := types.Epochs{FirstKnownEpoch: 2, FirstBlockHeights: []types.BlockHeight{10, 20, 35}}
	encoded, err := Encode(epochs)
	require.NoError(t, err)

	var decoded types.Epochs
	require.NoError(t, Decode(encoded, &decoded))
	require.Equal(t, epochs, decoded)
}

func TestRoundTripHeader(t *testing.T) {
	header := types.Header{
		Hash:            common.Sha256([]byte("block")),
		Time:            time.Unix(1600000000, 0).UTC(),
		ProposerAddress: []byte{1, 2, 3},
	}
	encoded, err := Encode(header)
	require.NoError(t, err)

	var decoded types.Header
	require.NoError(t, Decode(encoded, &decoded))
	require.Equal(t, header.Hash, decoded.Hash)
	require.True(t, header.Time.Equal(decoded.Time))
	require.Equal(t, header.ProposerAddress, decoded.ProposerAddress)
}

func TestRoundTripOptionalValues(t *testing.T) {
	var nilDelay *uint32
	encoded, err := Encode(nilDelay)
	require.NoError(t, err)
	var decodedNil *uint32
	require.NoError(t, Decode(encoded, &decodedNil))
	require.Nil(t, decodedNil)

	delay := uint32(7)
	encoded, err = Encode(&delay)
	require.NoError(t, err)
	var decoded *uint32
	require.NoError(t, Decode(encoded, &decoded))
	require.NotNil(t, decoded)
	require.Equal(t, uint32(7), *decoded)
}

func TestCanonicalEncoding(t *testing.T) {
	epochs := types.Epochs{FirstKnownEpoch: 1, FirstBlockHeights: []types.BlockHeight{5}}
	a, err := Encode(epochs)
	require.NoError(t, err)
	b, err := Encode(epochs)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDecodeMismatch(t *testing.T) {
	encoded, err := Encode("not a height map")
	require.NoError(t, err)
	var epochs types.Epochs
	err = Decode(encoded, &epochs)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCoding)
}
