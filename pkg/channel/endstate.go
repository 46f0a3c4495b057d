package channel

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

var (
	ErrStaleNonce                 = errors.New("nonce does not advance")
	ErrTransferredAmountDecreased = errors.New("transferred amount decreased")
	ErrTransferredAmountMismatch  = errors.New("transferred amount does not match")
	ErrLocksRootMismatch          = errors.New("locks root mismatch")
	ErrUnknownLock                = errors.New("lock is not pending")
	ErrDuplicateLock              = errors.New("lock is already pending")
	ErrChannelMismatch            = errors.New("header belongs to a different channel")
)

// EndState is the balance state one participant has committed to in a channel.
// Every accepted header must carry a strictly larger nonce and a transferred
// amount no smaller than the previous one.
type EndState struct {
	Nonce             uint64
	TransferredAmount uint256.Int
	Locks             map[common.Hash]messages.Lock
	LatestProof       *messages.Proof
}

// NewEndState returns an empty end state
func NewEndState() *EndState {
	return &EndState{Locks: make(map[common.Hash]messages.Lock)}
}

// PendingLocks returns the open locks in no particular order
func (s *EndState) PendingLocks() []messages.Lock {
	locks := make([]messages.Lock, 0, len(s.Locks))
	for _, l := range s.Locks {
		locks = append(locks, l)
	}
	return locks
}

// LocksRoot is the merkle root over the pending locks
func (s *EndState) LocksRoot() common.Hash {
	return merkle.LocksRoot(s.PendingLocks())
}

// LockedAmount sums the amounts of all pending locks
func (s *EndState) LockedAmount() *uint256.Int {
	total := new(uint256.Int)
	for _, l := range s.Locks {
		total.Add(total, &l.Amount)
	}
	return total
}

// ValidateHeader checks that h advances this end state
func (s *EndState) ValidateHeader(h messages.ProofHeader) error {
	if h.Nonce <= s.Nonce {
		return fmt.Errorf("%w: got %d, current %d", ErrStaleNonce, h.Nonce, s.Nonce)
	}
	if h.TransferredAmount.Lt(&s.TransferredAmount) {
		return fmt.Errorf("%w: got %s, current %s", ErrTransferredAmountDecreased, h.TransferredAmount.Dec(), s.TransferredAmount.Dec())
	}
	return nil
}

// RegisterLockedTransfer applies a header that adds lock to the pending set
func (s *EndState) RegisterLockedTransfer(h messages.ProofHeader, lock messages.Lock) error {
	if err := s.ValidateHeader(h); err != nil {
		return err
	}
	if _, ok := s.Locks[lock.HashLock]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateLock, lock.HashLock.Hex())
	}
	if !h.TransferredAmount.Eq(&s.TransferredAmount) {
		return fmt.Errorf("%w: locked transfer must not change it", ErrTransferredAmountMismatch)
	}
	expected := merkle.LocksRoot(append(s.PendingLocks(), lock))
	if h.LocksRoot != expected {
		return fmt.Errorf("%w: got %s, expected %s", ErrLocksRootMismatch, h.LocksRoot.Hex(), expected.Hex())
	}

	s.apply(h)
	s.Locks[lock.HashLock] = lock
	return nil
}

// RegisterSecretToProof applies a header that moves the lock opened by secret into the transferred amount
func (s *EndState) RegisterSecretToProof(h messages.ProofHeader, secret common.Hash) (messages.Lock, error) {
	if err := s.ValidateHeader(h); err != nil {
		return messages.Lock{}, err
	}
	hashLock := crypto.Hash(secret.Bytes())
	lock, ok := s.Locks[hashLock]
	if !ok {
		return messages.Lock{}, fmt.Errorf("%w: %s", ErrUnknownLock, hashLock.Hex())
	}

	expectedAmount := new(uint256.Int).Add(&s.TransferredAmount, &lock.Amount)
	if !h.TransferredAmount.Eq(expectedAmount) {
		return messages.Lock{}, fmt.Errorf("%w: got %s, expected %s", ErrTransferredAmountMismatch, h.TransferredAmount.Dec(), expectedAmount.Dec())
	}

	remaining := make([]messages.Lock, 0, len(s.Locks))
	for k, l := range s.Locks {
		if k != hashLock {
			remaining = append(remaining, l)
		}
	}
	expectedRoot := merkle.LocksRoot(remaining)
	if h.LocksRoot != expectedRoot {
		return messages.Lock{}, fmt.Errorf("%w: got %s, expected %s", ErrLocksRootMismatch, h.LocksRoot.Hex(), expectedRoot.Hex())
	}

	s.apply(h)
	delete(s.Locks, hashLock)
	return lock, nil
}

// RegisterDirectTransfer applies a header that only moves the transferred amount
func (s *EndState) RegisterDirectTransfer(h messages.ProofHeader) error {
	if err := s.ValidateHeader(h); err != nil {
		return err
	}
	if expected := s.LocksRoot(); h.LocksRoot != expected {
		return fmt.Errorf("%w: got %s, expected %s", ErrLocksRootMismatch, h.LocksRoot.Hex(), expected.Hex())
	}
	s.apply(h)
	return nil
}

// Accept records proof as the latest settleable snapshot. Proofs must advance
// in nonce and never decrease the transferred amount.
func (s *EndState) Accept(proof *messages.Proof) error {
	if proof == nil {
		return fmt.Errorf("cannot accept nil proof")
	}
	if proof.Signature() == nil {
		return messages.ErrUnsigned
	}
	if prev := s.LatestProof; prev != nil {
		if proof.Nonce <= prev.Nonce {
			return fmt.Errorf("%w: got %d, latest proof %d", ErrStaleNonce, proof.Nonce, prev.Nonce)
		}
		if proof.TransferredAmount.Lt(&prev.TransferredAmount) {
			return fmt.Errorf("%w: got %s, latest proof %s", ErrTransferredAmountDecreased, proof.TransferredAmount.Dec(), prev.TransferredAmount.Dec())
		}
	}
	s.LatestProof = proof
	return nil
}

// NextLockedHeader builds the header that adds lock to this end state
func (s *EndState) NextLockedHeader(channelAddress common.Address, lock messages.Lock) (messages.ProofHeader, error) {
	if _, ok := s.Locks[lock.HashLock]; ok {
		return messages.ProofHeader{}, fmt.Errorf("%w: %s", ErrDuplicateLock, lock.HashLock.Hex())
	}
	return messages.ProofHeader{
		Nonce:             s.Nonce + 1,
		TransferredAmount: s.TransferredAmount,
		LocksRoot:         merkle.LocksRoot(append(s.PendingLocks(), lock)),
		ChannelAddress:    channelAddress,
	}, nil
}

// NextSecretToProofHeader builds the header that unlocks the lock opened by secret
func (s *EndState) NextSecretToProofHeader(channelAddress common.Address, secret common.Hash) (messages.ProofHeader, error) {
	hashLock := crypto.Hash(secret.Bytes())
	lock, ok := s.Locks[hashLock]
	if !ok {
		return messages.ProofHeader{}, fmt.Errorf("%w: %s", ErrUnknownLock, hashLock.Hex())
	}
	remaining := make([]messages.Lock, 0, len(s.Locks))
	for k, l := range s.Locks {
		if k != hashLock {
			remaining = append(remaining, l)
		}
	}
	h := messages.ProofHeader{
		Nonce:          s.Nonce + 1,
		LocksRoot:      merkle.LocksRoot(remaining),
		ChannelAddress: channelAddress,
	}
	h.TransferredAmount.Add(&s.TransferredAmount, &lock.Amount)
	return h, nil
}

// NextDirectHeader builds the header that transfers amount without a lock
func (s *EndState) NextDirectHeader(channelAddress common.Address, amount *uint256.Int) messages.ProofHeader {
	h := messages.ProofHeader{
		Nonce:          s.Nonce + 1,
		LocksRoot:      s.LocksRoot(),
		ChannelAddress: channelAddress,
	}
	h.TransferredAmount.Add(&s.TransferredAmount, amount)
	return h
}

func (s *EndState) apply(h messages.ProofHeader) {
	s.Nonce = h.Nonce
	s.TransferredAmount = h.TransferredAmount
}
