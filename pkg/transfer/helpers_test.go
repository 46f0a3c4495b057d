package transfer

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

const testRevealTimeout = 10

type party struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	return party{key: key, address: crypto.AddressFromKey(key)}
}

type fixture struct {
	initiator party
	hop       party
	target    party
	secret    common.Hash
	transfer  *messages.MediatedTransfer
}

// newFixture builds the transfer from the end-to-end scenario: msgID 1, nonce 1,
// transferred amount 100, a lock of 50 expiring at block 1000.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		initiator: newParty(t),
		hop:       newParty(t),
		target:    newParty(t),
		secret:    common.HexToHash("0x5ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2e75ec2"),
	}
	f.transfer = &messages.MediatedTransfer{
		ProofHeader: messages.ProofHeader{
			Nonce:             1,
			TransferredAmount: *uint256.NewInt(100),
			ChannelAddress:    common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		},
		MsgID: 1,
		To:    f.hop.address,
		Lock: messages.Lock{
			Amount:     *uint256.NewInt(50),
			Expiration: 1000,
			HashLock:   crypto.Hash(f.secret.Bytes()),
		},
		Target:    f.target.address,
		Initiator: f.initiator.address,
	}
	require.NoError(t, messages.Sign(f.transfer, f.initiator.key))
	return f
}

func signed[T messages.SignedMessage](t *testing.T, m T, by party) T {
	t.Helper()
	require.NoError(t, messages.Sign(m, by.key))
	return m
}

func (f *fixture) requestSecret(t *testing.T, by party) *messages.RequestSecret {
	return signed(t, &messages.RequestSecret{
		MsgID:    f.transfer.MsgID,
		To:       f.initiator.address,
		HashLock: f.transfer.Lock.HashLock,
		Amount:   f.transfer.Lock.Amount,
	}, by)
}

func (f *fixture) revealSecret(t *testing.T, secret common.Hash, to common.Address, by party) *messages.RevealSecret {
	return signed(t, &messages.RevealSecret{To: to, Secret: secret}, by)
}

func (f *fixture) secretToProof(t *testing.T, secret common.Hash, by party) *messages.SecretToProof {
	header := f.transfer.ProofHeader
	header.Nonce++
	header.TransferredAmount.Add(&header.TransferredAmount, &f.transfer.Lock.Amount)
	return signed(t, &messages.SecretToProof{
		ProofHeader: header,
		MsgID:       f.transfer.MsgID,
		To:          f.target.address,
		Secret:      secret,
	}, by)
}

func (f *fixture) initiatorState() *TransferState {
	return NewInitiatorState("transfer-1", f.transfer, f.initiator.address, f.secret)
}

// targetState models the target receiving the transfer directly from the initiator
func (f *fixture) targetState() *TransferState {
	return NewTargetState("transfer-1", f.transfer, f.initiator.address)
}

func mustHandle(t *testing.T, m *Machine, ts *TransferState, ev Event) Outcome {
	t.Helper()
	out, err := m.Handle(ts, ev)
	require.NoError(t, err)
	return out
}
