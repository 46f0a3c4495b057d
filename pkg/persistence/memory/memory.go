package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// MemoryPersistence is an in-memory implementation of ITransferPersistence.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Values are stored in serialized form so callers can never mutate stored state.
type MemoryPersistence struct {
	mu sync.RWMutex

	// transfer ID -> serialized TransferState
	transfers map[string][]byte

	// channel address -> serialized Proof
	proofs map[common.Address][]byte

	engineState []byte

	closed bool
}

// NewMemoryPersistence creates a new in-memory persistence layer.
// Prints a loud warning since this should only be used for testing.
func NewMemoryPersistence() *MemoryPersistence {
	fmt.Println("⚠️  WARNING: Using in-memory persistence - ALL DATA WILL BE LOST ON RESTART")
	fmt.Println("⚠️  This should ONLY be used for testing. Set CHANNELS_PERSISTENCE_TYPE=badger for production")

	return &MemoryPersistence{
		transfers: make(map[string][]byte),
		proofs:    make(map[common.Address][]byte),
	}
}

// SaveTransfer persists a transfer record.
func (m *MemoryPersistence) SaveTransfer(ts *transfer.TransferState) error {
	if ts == nil {
		return fmt.Errorf("cannot save nil TransferState")
	}
	data, err := persistence.MarshalTransferState(ts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.transfers[ts.ID] = data
	return nil
}

// LoadTransfer retrieves a transfer record by ID.
func (m *MemoryPersistence) LoadTransfer(id string) (*transfer.TransferState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.transfers[id]
	if !exists {
		return nil, nil
	}
	return persistence.UnmarshalTransferState(data)
}

// ListTransfers returns all transfer records sorted by ID.
func (m *MemoryPersistence) ListTransfers() ([]*transfer.TransferState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*transfer.TransferState, 0, len(m.transfers))
	for _, data := range m.transfers {
		ts, err := persistence.UnmarshalTransferState(data)
		if err != nil {
			return nil, err
		}
		records = append(records, ts)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records, nil
}

// DeleteTransfer removes a transfer record.
func (m *MemoryPersistence) DeleteTransfer(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.transfers, id)
	return nil
}

// SaveProof stores the latest proof of a channel.
func (m *MemoryPersistence) SaveProof(proof *messages.Proof) error {
	data, err := persistence.MarshalProof(proof)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.proofs[proof.ChannelAddress] = data
	return nil
}

// LoadLatestProof returns the latest proof of a channel.
func (m *MemoryPersistence) LoadLatestProof(channelAddress common.Address) (*messages.Proof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	data, exists := m.proofs[channelAddress]
	if !exists {
		return nil, nil
	}
	return persistence.UnmarshalProof(data)
}

// SaveEngineState persists engine operational state.
func (m *MemoryPersistence) SaveEngineState(state *persistence.EngineState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil EngineState")
	}
	data, err := persistence.MarshalEngineState(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.engineState = data
	return nil
}

// LoadEngineState retrieves engine operational state.
func (m *MemoryPersistence) LoadEngineState() (*persistence.EngineState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	if m.engineState == nil {
		return nil, nil
	}
	return persistence.UnmarshalEngineState(m.engineState)
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}

var _ persistence.ITransferPersistence = (*MemoryPersistence)(nil)
