package peering

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// StubPeeringDataFetcher is a mutable in-memory peer book for tests
type StubPeeringDataFetcher struct {
	mu    sync.RWMutex
	peers map[common.Address]*Peer
}

// NewStubPeeringDataFetcher creates a new stub peering data fetcher
func NewStubPeeringDataFetcher(peers ...*Peer) *StubPeeringDataFetcher {
	s := &StubPeeringDataFetcher{peers: make(map[common.Address]*Peer)}
	for _, p := range peers {
		s.AddPeer(p)
	}
	return s
}

// AddPeer registers or replaces a peer
func (s *StubPeeringDataFetcher) AddPeer(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.Address] = p
}

func (s *StubPeeringDataFetcher) GetPeer(ctx context.Context, address common.Address) (*Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.peers[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, address.Hex())
	}
	return p, nil
}

func (s *StubPeeringDataFetcher) ListPeers(ctx context.Context) ([]*Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Address.Hex() < out[j].Address.Hex()
	})
	return out, nil
}
