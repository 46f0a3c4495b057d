package persistence

import (
	"errors"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("persistence layer is closed")

// EngineState represents operational state that must persist across restarts.
type EngineState struct {
	// BlockHeight is the last block height the engine observed.
	// Restoring it keeps the height oracle monotonic across restarts.
	BlockHeight uint64 `json:"blockHeight"`

	// NodeStartTime is the Unix timestamp when the node last started.
	NodeStartTime int64 `json:"nodeStartTime"`

	// NodeAddress is the address of this node, used to verify the data belongs to it.
	NodeAddress string `json:"nodeAddress"`

	// Channels holds the balance ledgers of every registered channel.
	Channels []*channel.Snapshot `json:"channels"`
}
