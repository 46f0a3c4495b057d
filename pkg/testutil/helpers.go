package testutil

import (
	"crypto/ecdsa"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// TestParty is a key pair used to sign test messages
type TestParty struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// CreateTestParty generates a fresh secp256k1 key
func CreateTestParty(t *testing.T) TestParty {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	return TestParty{Key: key, Address: crypto.AddressFromKey(key)}
}

// TestSecret returns a deterministic secret for index i
func TestSecret(i int) common.Hash {
	return crypto.Hash([]byte(fmt.Sprintf("test-secret-%d", i)))
}

// CreateTestMediatedTransfer builds a mediated transfer from initiator straight to target,
// signed by the initiator. The lock holds 50 and expires at expiration.
func CreateTestMediatedTransfer(t *testing.T, initiator TestParty, target common.Address, secret common.Hash, expiration uint64) *messages.MediatedTransfer {
	t.Helper()
	mt := &messages.MediatedTransfer{
		ProofHeader: messages.ProofHeader{
			Nonce:             1,
			TransferredAmount: *uint256.NewInt(0),
			ChannelAddress:    common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		},
		MsgID: 1,
		To:    target,
		Lock: messages.Lock{
			Amount:     *uint256.NewInt(50),
			Expiration: expiration,
			HashLock:   crypto.Hash(secret.Bytes()),
		},
		Target:    target,
		Initiator: initiator.Address,
	}
	mt.LocksRoot = mt.Lock.Hash()
	if err := messages.Sign(mt, initiator.Key); err != nil {
		t.Fatalf("Failed to sign transfer: %v", err)
	}
	return mt
}

// CreateTestTransferStates creates n initiator records with distinct IDs and secrets
func CreateTestTransferStates(t *testing.T, n int) []*transfer.TransferState {
	t.Helper()
	initiator := CreateTestParty(t)
	target := CreateTestParty(t)

	states := make([]*transfer.TransferState, n)
	for i := 0; i < n; i++ {
		secret := TestSecret(i)
		mt := CreateTestMediatedTransfer(t, initiator, target.Address, secret, uint64(1000+i))
		states[i] = transfer.NewInitiatorState(fmt.Sprintf("transfer-%03d", i), mt, initiator.Address, secret)
	}
	return states
}

// CreateTestProof returns a signed proof for channel with the given nonce
func CreateTestProof(t *testing.T, signer TestParty, channelAddress common.Address, nonce uint64) *messages.Proof {
	t.Helper()
	dt := &messages.DirectTransfer{
		ProofHeader: messages.ProofHeader{
			Nonce:             nonce,
			TransferredAmount: *uint256.NewInt(nonce * 10),
			ChannelAddress:    channelAddress,
		},
		MsgID: nonce,
		To:    common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
	}
	if err := messages.Sign(dt, signer.Key); err != nil {
		t.Fatalf("Failed to sign transfer: %v", err)
	}
	proof, err := messages.ToProof(dt)
	if err != nil {
		t.Fatalf("Failed to convert to proof: %v", err)
	}
	return proof
}
