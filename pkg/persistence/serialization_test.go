package persistence

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

func sampleTransferState(t *testing.T) *transfer.TransferState {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	secret := common.HexToHash("0x5ec2")
	mt := &messages.MediatedTransfer{
		ProofHeader: messages.ProofHeader{
			Nonce:             3,
			TransferredAmount: *uint256.NewInt(100),
			ChannelAddress:    common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		},
		MsgID: 9,
		To:    common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Lock: messages.Lock{
			Amount:     *uint256.NewInt(50),
			Expiration: 1000,
			HashLock:   crypto.Hash(secret.Bytes()),
		},
		Target:    common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Initiator: crypto.AddressFromKey(key),
	}
	require.NoError(t, messages.Sign(mt, key))

	ts := transfer.NewInitiatorState("7a0c2b5e-0000-4000-8000-000000000001", mt, mt.Initiator, secret)
	ts.State = transfer.StateAwaitRevealSecret
	return ts
}

func TestMarshalUnmarshalTransferState_RoundTrip(t *testing.T) {
	original := sampleTransferState(t)
	revealTo := common.HexToAddress("0x01")
	original.RevealTo = &revealTo

	data, err := MarshalTransferState(original)
	require.NoError(t, err)

	restored, err := UnmarshalTransferState(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	sender, err := messages.Sender(restored.Transfer)
	require.NoError(t, err)
	assert.Equal(t, original.Transfer.Initiator, sender)
}

func TestMarshalTransferState_NilInput(t *testing.T) {
	_, err := MarshalTransferState(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil TransferState")

	_, err = MarshalTransferState(&transfer.TransferState{ID: "x"})
	require.Error(t, err)
}

func TestUnmarshalTransferState_Invalid(t *testing.T) {
	_, err := UnmarshalTransferState(nil)
	require.Error(t, err)

	_, err = UnmarshalTransferState([]byte(`{"id": 5}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")

	_, err = UnmarshalTransferState([]byte(`{"id":"a","transfer":{"kind":"Ack","to":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","messageHash":"0x0000000000000000000000000000000000000000000000000000000000000000","msgID":1}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind Ack")
}

func TestMarshalUnmarshalProof_RoundTrip(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	ts := sampleTransferState(t)
	require.NoError(t, messages.Sign(ts.Transfer, key))
	proof, err := messages.ToProof(ts.Transfer)
	require.NoError(t, err)

	data, err := MarshalProof(proof)
	require.NoError(t, err)
	restored, err := UnmarshalProof(data)
	require.NoError(t, err)
	assert.Equal(t, proof, restored)

	_, err = MarshalProof(nil)
	require.Error(t, err)

	encoded, err := messages.Encode(ts.Transfer)
	require.NoError(t, err)
	_, err = UnmarshalProof(encoded)
	require.Error(t, err)
}

func TestMarshalUnmarshalEngineState_RoundTrip(t *testing.T) {
	c := channel.NewChannel(common.HexToAddress("0xaa"), common.HexToAddress("0xbb"))
	snap, err := c.Snapshot()
	require.NoError(t, err)

	original := &EngineState{
		BlockHeight:   12345,
		NodeStartTime: 1700000000,
		NodeAddress:   "0x1234567890123456789012345678901234567890",
		Channels:      []*channel.Snapshot{snap},
	}

	data, err := MarshalEngineState(original)
	require.NoError(t, err)

	restored, err := UnmarshalEngineState(data)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestMarshalEngineState_NilInput(t *testing.T) {
	_, err := MarshalEngineState(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil EngineState")

	_, err = UnmarshalEngineState(nil)
	require.Error(t, err)
}
