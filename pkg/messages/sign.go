package messages

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
)

// Sign computes the message digest and attaches a fresh signature, replacing any previous one
func Sign(m SignedMessage, key *ecdsa.PrivateKey) error {
	digest, err := SigningHash(m)
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w", m.Kind(), err)
	}
	m.SetSignature(&sig)
	return nil
}

// Sender recovers the address that signed m
func Sender(m SignedMessage) (common.Address, error) {
	sig := m.Signature()
	if sig == nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnsigned, m.Kind())
	}
	digest, err := SigningHash(m)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.RecoverAddress(digest, *sig)
}

// ToProof converts a signed proof carrying message into the Proof used for settlement.
// Routing fields are dropped; MessageHash binds the proof to the original message, and the
// copied signature recovers to the same sender.
func ToProof(m ProofMessage) (*Proof, error) {
	sig := m.Signature()
	if sig == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsigned, m.Kind())
	}
	digest, err := Hash(m)
	if err != nil {
		return nil, err
	}
	sigCopy := *sig
	return &Proof{
		Signed:      Signed{Sig: &sigCopy},
		ProofHeader: m.Header(),
		MessageHash: digest,
	}, nil
}
