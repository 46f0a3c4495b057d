package peering

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrPeerNotFound is returned when no socket is known for an address
var ErrPeerNotFound = errors.New("peer not found")

// Peer is a channel participant reachable over HTTP
type Peer struct {
	Address       common.Address `json:"address"`
	SocketAddress string         `json:"socketAddress"`
}

type IPeeringDataFetcher interface {
	// GetPeer returns the peer registered for address or ErrPeerNotFound
	GetPeer(ctx context.Context, address common.Address) (*Peer, error)
	ListPeers(ctx context.Context) ([]*Peer, error)
}
