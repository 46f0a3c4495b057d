package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// transferRecord is the stored form of a TransferState. The embedded transfer
// uses the wire codec so the signature survives byte for byte.
type transferRecord struct {
	ID       string              `json:"id"`
	Role     transfer.Role       `json:"role"`
	State    transfer.StateLabel `json:"state"`
	Transfer json.RawMessage     `json:"transfer"`
	From     common.Address      `json:"from"`
	Secret   *common.Hash        `json:"secret,omitempty"`
	RevealTo *common.Address     `json:"revealTo,omitempty"`
}

// MarshalTransferState serializes a TransferState to JSON bytes.
func MarshalTransferState(ts *transfer.TransferState) ([]byte, error) {
	if ts == nil {
		return nil, fmt.Errorf("cannot marshal nil TransferState")
	}
	if ts.Transfer == nil {
		return nil, fmt.Errorf("cannot marshal TransferState %s without transfer", ts.ID)
	}

	encoded, err := messages.Encode(ts.Transfer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mediated transfer: %w", err)
	}

	data, err := json.Marshal(&transferRecord{
		ID:       ts.ID,
		Role:     ts.Role,
		State:    ts.State,
		Transfer: encoded,
		From:     ts.From,
		Secret:   ts.Secret,
		RevealTo: ts.RevealTo,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal TransferState to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalTransferState deserializes a TransferState from JSON bytes.
func UnmarshalTransferState(data []byte) (*transfer.TransferState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var rec transferRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to TransferState: %w", err)
	}

	m, err := messages.Decode(rec.Transfer)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transfer of %s: %w", rec.ID, err)
	}
	mt, ok := m.(*messages.MediatedTransfer)
	if !ok {
		return nil, fmt.Errorf("transfer of %s has kind %s", rec.ID, m.Kind())
	}

	return &transfer.TransferState{
		ID:       rec.ID,
		Role:     rec.Role,
		State:    rec.State,
		Transfer: mt,
		From:     rec.From,
		Secret:   rec.Secret,
		RevealTo: rec.RevealTo,
	}, nil
}

// MarshalProof serializes a Proof with the wire codec.
func MarshalProof(proof *messages.Proof) ([]byte, error) {
	if proof == nil {
		return nil, fmt.Errorf("cannot marshal nil Proof")
	}
	return messages.Encode(proof)
}

// UnmarshalProof deserializes a Proof.
func UnmarshalProof(data []byte) (*messages.Proof, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}
	m, err := messages.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Proof: %w", err)
	}
	proof, ok := m.(*messages.Proof)
	if !ok {
		return nil, fmt.Errorf("expected Proof, got %s", m.Kind())
	}
	return proof, nil
}

// MarshalEngineState serializes EngineState to JSON bytes.
func MarshalEngineState(es *EngineState) ([]byte, error) {
	if es == nil {
		return nil, fmt.Errorf("cannot marshal nil EngineState")
	}

	return json.Marshal(es)
}

// UnmarshalEngineState deserializes EngineState from JSON bytes.
func UnmarshalEngineState(data []byte) (*EngineState, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var es EngineState
	if err := json.Unmarshal(data, &es); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to EngineState: %w", err)
	}

	return &es, nil
}
