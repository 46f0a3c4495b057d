package persistence

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// ITransferPersistence defines the interface for persisting channel node state across restarts.
// All implementations must be thread-safe as the engine handles messages concurrently.
//
// The interface supports:
// - Transfer record management (save, load, list, delete)
// - Latest settleable proof per channel
// - Engine operational state (block height, channel ledgers)
// - Lifecycle management (close, health check)
type ITransferPersistence interface {
	// Transfer Records

	// SaveTransfer persists a transfer record keyed by its ID, overwriting any previous version.
	SaveTransfer(ts *transfer.TransferState) error

	// LoadTransfer retrieves a transfer record by ID.
	// Returns nil if the record doesn't exist, error only on storage failure.
	LoadTransfer(id string) (*transfer.TransferState, error)

	// ListTransfers returns all persisted transfer records sorted by ID.
	// Returns empty slice if none exist, error only on storage failure.
	ListTransfers() ([]*transfer.TransferState, error)

	// DeleteTransfer removes a transfer record.
	// Idempotent - returns nil if the record doesn't exist.
	DeleteTransfer(id string) error

	// Proofs

	// SaveProof stores proof as the latest proof of its channel.
	SaveProof(proof *messages.Proof) error

	// LoadLatestProof returns the latest proof stored for a channel, or nil.
	LoadLatestProof(channelAddress common.Address) (*messages.Proof, error)

	// Engine State

	// SaveEngineState persists operational state. Overwrites any existing state.
	SaveEngineState(state *EngineState) error

	// LoadEngineState retrieves operational state.
	// Returns nil state if none exists (first run), error only on storage failure.
	LoadEngineState() (*EngineState, error)

	// Lifecycle Management

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations should return errors.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	// Returns nil if healthy, error describing the problem if not.
	HealthCheck() error
}
