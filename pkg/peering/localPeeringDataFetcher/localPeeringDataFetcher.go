package localPeeringDataFetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/peering"
)

// LocalPeeringDataFetcher serves a fixed peer list loaded at startup
type LocalPeeringDataFetcher struct {
	peers  []*peering.Peer
	logger *zap.Logger
}

func NewLocalPeeringDataFetcher(
	peers []*peering.Peer,
	logger *zap.Logger,
) *LocalPeeringDataFetcher {
	return &LocalPeeringDataFetcher{
		peers:  peers,
		logger: logger,
	}
}

// NewLocalPeeringDataFetcherFromFile reads a JSON array of peers
func NewLocalPeeringDataFetcherFromFile(path string, logger *zap.Logger) (*LocalPeeringDataFetcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read peers file: %w", err)
	}
	var peers []*peering.Peer
	if err := json.Unmarshal(data, &peers); err != nil {
		return nil, fmt.Errorf("failed to parse peers file: %w", err)
	}
	for i, p := range peers {
		if p == nil || p.SocketAddress == "" {
			return nil, fmt.Errorf("peer %d has no socket address", i)
		}
	}
	logger.Sugar().Infow("Loaded peers", "path", path, "count", len(peers))
	return NewLocalPeeringDataFetcher(peers, logger), nil
}

func (lpdf *LocalPeeringDataFetcher) GetPeer(ctx context.Context, address common.Address) (*peering.Peer, error) {
	for _, p := range lpdf.peers {
		if p.Address == address {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", peering.ErrPeerNotFound, address.Hex())
}

func (lpdf *LocalPeeringDataFetcher) ListPeers(ctx context.Context) ([]*peering.Peer, error) {
	return lpdf.peers, nil
}
