package channel

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// Unlock redeems a pending lock on-chain after close: the lock with its secret and
// the inclusion proof of the lock under the closing proof's locks root
type Unlock struct {
	OpenLock messages.OpenLock
	Proof    *merkle.MerkleProof
}

// Channel tracks both directions of a payment channel. Ours holds what we have
// sent to Partner, Theirs what Partner has sent to us.
type Channel struct {
	mu sync.Mutex

	Address common.Address
	Partner common.Address
	Ours    *EndState
	Theirs  *EndState
}

// NewChannel creates a channel with empty end states
func NewChannel(address, partner common.Address) *Channel {
	return &Channel{
		Address: address,
		Partner: partner,
		Ours:    NewEndState(),
		Theirs:  NewEndState(),
	}
}

// PrepareLockedTransfer builds and registers the outgoing header for a new lock
func (c *Channel) PrepareLockedTransfer(lock messages.Lock) (messages.ProofHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.Ours.NextLockedHeader(c.Address, lock)
	if err != nil {
		return messages.ProofHeader{}, err
	}
	if err := c.Ours.RegisterLockedTransfer(h, lock); err != nil {
		return messages.ProofHeader{}, err
	}
	return h, nil
}

// PrepareSecretToProof builds and registers the outgoing header unlocking secret
func (c *Channel) PrepareSecretToProof(secret common.Hash) (messages.ProofHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, err := c.Ours.NextSecretToProofHeader(c.Address, secret)
	if err != nil {
		return messages.ProofHeader{}, err
	}
	if _, err := c.Ours.RegisterSecretToProof(h, secret); err != nil {
		return messages.ProofHeader{}, err
	}
	return h, nil
}

// PrepareDirectTransfer builds and registers the outgoing header for an unlocked payment
func (c *Channel) PrepareDirectTransfer(amount *uint256.Int) (messages.ProofHeader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.Ours.NextDirectHeader(c.Address, amount)
	if err := c.Ours.RegisterDirectTransfer(h); err != nil {
		return messages.ProofHeader{}, err
	}
	return h, nil
}

// ReceiveLockedTransfer applies an inbound locked or mediated transfer carrying lock and
// accepts its proof, so the pending lock can be settled on-chain
func (c *Channel) ReceiveLockedTransfer(m messages.ProofMessage, lock messages.Lock) error {
	h := m.Header()
	if err := c.checkAddress(h); err != nil {
		return err
	}
	proof, err := messages.ToProof(m)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Theirs.RegisterLockedTransfer(h, lock); err != nil {
		return err
	}
	return c.Theirs.Accept(proof)
}

// ReceiveDirectTransfer applies an inbound direct transfer and accepts its proof
func (c *Channel) ReceiveDirectTransfer(dt *messages.DirectTransfer) error {
	if err := c.checkAddress(dt.ProofHeader); err != nil {
		return err
	}
	proof, err := messages.ToProof(dt)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Theirs.RegisterDirectTransfer(dt.ProofHeader); err != nil {
		return err
	}
	return c.Theirs.Accept(proof)
}

// ReceiveSecretToProof applies an inbound secret-to-proof and returns the resulting settleable proof
func (c *Channel) ReceiveSecretToProof(stp *messages.SecretToProof) (*messages.Proof, error) {
	if err := c.checkAddress(stp.ProofHeader); err != nil {
		return nil, err
	}
	proof, err := messages.ToProof(stp)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.Theirs.RegisterSecretToProof(stp.ProofHeader, stp.Secret); err != nil {
		return nil, err
	}
	if err := c.Theirs.Accept(proof); err != nil {
		return nil, err
	}
	return proof, nil
}

// LatestProof returns the latest proof received from the partner, or nil
func (c *Channel) LatestProof() *messages.Proof {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Theirs.LatestProof
}

// AdoptLatestProof replaces the latest partner proof when proof is newer and reports whether it did
func (c *Channel) AdoptLatestProof(proof *messages.Proof) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if proof == nil || proof.ChannelAddress != c.Address {
		return false
	}
	if prev := c.Theirs.LatestProof; prev != nil && proof.Nonce <= prev.Nonce {
		return false
	}
	c.Theirs.LatestProof = proof
	return true
}

// UnlockFor builds the unlock of the partner's pending lock opened by secret. The
// inclusion proof is checked against the locks root of the latest partner proof.
func (c *Channel) UnlockFor(secret common.Hash) (*Unlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hashLock := crypto.Hash(secret.Bytes())
	lock, ok := c.Theirs.Locks[hashLock]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLock, hashLock.Hex())
	}
	open, err := messages.NewOpenLock(lock, secret)
	if err != nil {
		return nil, err
	}
	proof, root, err := merkle.ProveLock(c.Theirs.PendingLocks(), lock)
	if err != nil {
		return nil, err
	}
	if latest := c.Theirs.LatestProof; latest != nil && latest.LocksRoot != root {
		return nil, fmt.Errorf("%w: latest proof %s, pending locks %s", ErrLocksRootMismatch, latest.LocksRoot.Hex(), root.Hex())
	}
	if !merkle.VerifyProof(proof, root) {
		return nil, fmt.Errorf("inclusion proof of lock %s does not verify", hashLock.Hex())
	}
	return &Unlock{OpenLock: open, Proof: proof}, nil
}

// Snapshot captures the channel for persistence
func (c *Channel) Snapshot() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ours, err := snapshotEndState(c.Ours)
	if err != nil {
		return nil, err
	}
	theirs, err := snapshotEndState(c.Theirs)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Address: c.Address,
		Partner: c.Partner,
		Ours:    ours,
		Theirs:  theirs,
	}, nil
}

func (c *Channel) checkAddress(h messages.ProofHeader) error {
	if h.ChannelAddress != c.Address {
		return fmt.Errorf("%w: got %s, expected %s", ErrChannelMismatch, h.ChannelAddress.Hex(), c.Address.Hex())
	}
	return nil
}
