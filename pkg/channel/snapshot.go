package channel

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// Snapshot is the JSON form of a channel
type Snapshot struct {
	Address common.Address   `json:"address"`
	Partner common.Address   `json:"partner"`
	Ours    EndStateSnapshot `json:"ours"`
	Theirs  EndStateSnapshot `json:"theirs"`
}

// EndStateSnapshot is the JSON form of an end state. Locks use their ABI encoding.
type EndStateSnapshot struct {
	Nonce             uint64          `json:"nonce"`
	TransferredAmount string          `json:"transferredAmount"`
	Locks             []hexutil.Bytes `json:"locks"`
	LatestProof       json.RawMessage `json:"latestProof,omitempty"`
}

func snapshotEndState(s *EndState) (EndStateSnapshot, error) {
	snap := EndStateSnapshot{
		Nonce:             s.Nonce,
		TransferredAmount: s.TransferredAmount.Dec(),
		Locks:             make([]hexutil.Bytes, 0, len(s.Locks)),
	}
	for _, l := range s.Locks {
		snap.Locks = append(snap.Locks, l.Encode())
	}
	if s.LatestProof != nil {
		data, err := messages.Encode(s.LatestProof)
		if err != nil {
			return EndStateSnapshot{}, fmt.Errorf("failed to encode latest proof: %w", err)
		}
		snap.LatestProof = data
	}
	return snap, nil
}

// Restore rebuilds a channel from a snapshot
func (s *Snapshot) Restore() (*Channel, error) {
	ours, err := s.Ours.restore()
	if err != nil {
		return nil, fmt.Errorf("failed to restore our end state: %w", err)
	}
	theirs, err := s.Theirs.restore()
	if err != nil {
		return nil, fmt.Errorf("failed to restore partner end state: %w", err)
	}
	return &Channel{
		Address: s.Address,
		Partner: s.Partner,
		Ours:    ours,
		Theirs:  theirs,
	}, nil
}

func (s EndStateSnapshot) restore() (*EndState, error) {
	es := NewEndState()
	es.Nonce = s.Nonce

	amount, err := uint256.FromDecimal(s.TransferredAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid transferred amount %q: %w", s.TransferredAmount, err)
	}
	es.TransferredAmount = *amount

	for _, encoded := range s.Locks {
		lock, err := messages.DecodeLock(encoded)
		if err != nil {
			return nil, err
		}
		es.Locks[lock.HashLock] = lock
	}

	if len(s.LatestProof) > 0 {
		m, err := messages.Decode(s.LatestProof)
		if err != nil {
			return nil, err
		}
		proof, ok := m.(*messages.Proof)
		if !ok {
			return nil, fmt.Errorf("latest proof has kind %s", m.Kind())
		}
		es.LatestProof = proof
	}
	return es, nil
}
