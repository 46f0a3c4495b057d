package engine

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messageSigner/inMemoryMessageSigner"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/peering"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/testutil"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transport"
)

var testChannel = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

var testRetry = transport.RetryConfig{
	MaxAttempts:     2,
	InitialBackoff:  time.Millisecond,
	MaxBackoff:      2 * time.Millisecond,
	BackoffMultiple: 2.0,
}

func testConfig() Config {
	return Config{RevealTimeout: 5, SettleTimeout: 20}
}

// recordingCloser captures close requests
type recordingCloser struct {
	mu      sync.Mutex
	closed  []common.Address
	proofs  []*messages.Proof
	unlocks [][]*channel.Unlock
}

func (c *recordingCloser) CloseChannel(_ context.Context, channelAddress common.Address, proof *messages.Proof, unlocks []*channel.Unlock) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, channelAddress)
	c.proofs = append(c.proofs, proof)
	c.unlocks = append(c.unlocks, unlocks)
	return nil
}

// lastClose returns the proof and unlocks of the most recent close request
func (c *recordingCloser) lastClose() (*messages.Proof, []*channel.Unlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.proofs) == 0 {
		return nil, nil
	}
	return c.proofs[len(c.proofs)-1], c.unlocks[len(c.unlocks)-1]
}

func (c *recordingCloser) calls() []common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.Address(nil), c.closed...)
}

// testNode is one engine served over httptest
type testNode struct {
	Party  testutil.TestParty
	Engine *Engine
	Store  persistence.ITransferPersistence
	Closer *recordingCloser
	Server *httptest.Server
}

func newTestNode(t *testing.T, peers *peering.StubPeeringDataFetcher, cfg Config, store persistence.ITransferPersistence) *testNode {
	t.Helper()
	party := testutil.CreateTestParty(t)
	return newTestNodeFor(t, party, peers, cfg, store)
}

func newTestNodeFor(t *testing.T, party testutil.TestParty, peers *peering.StubPeeringDataFetcher, cfg Config, store persistence.ITransferPersistence) *testNode {
	t.Helper()
	logger := zap.NewNop()

	signer, err := inMemoryMessageSigner.NewInMemoryMessageSigner(party.Key, logger)
	require.NoError(t, err)
	if store == nil {
		store = memory.NewMemoryPersistence()
	}
	client := transport.NewClient(party.Address, peers, logger).WithRetryConfig(testRetry)
	closer := &recordingCloser{}

	e := NewEngine(cfg, signer, store, client, closer, logger)
	server := httptest.NewServer(e.Handler())
	t.Cleanup(server.Close)

	peers.AddPeer(&peering.Peer{Address: party.Address, SocketAddress: server.URL})
	return &testNode{Party: party, Engine: e, Store: store, Closer: closer, Server: server}
}

// newTestPair builds an initiator and a target sharing testChannel, both at block 100
func newTestPair(t *testing.T) (*testNode, *testNode) {
	t.Helper()
	peers := peering.NewStubPeeringDataFetcher()
	a := newTestNode(t, peers, testConfig(), nil)
	b := newTestNode(t, peers, testConfig(), nil)

	_, err := a.Engine.RegisterChannel(testChannel, b.Party.Address)
	require.NoError(t, err)

	a.Engine.HandleBlock(context.Background(), 100)
	b.Engine.HandleBlock(context.Background(), 100)
	return a, b
}

// fakePeer acknowledges every message and keeps them for inspection
type fakePeer struct {
	Party  testutil.TestParty
	Server *httptest.Server

	mu       sync.Mutex
	received []messages.SignedMessage
}

func newFakePeer(t *testing.T, peers *peering.StubPeeringDataFetcher) *fakePeer {
	t.Helper()
	fp := &fakePeer{Party: testutil.CreateTestParty(t)}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		m, err := messages.DecodeSigned(body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sender, err := messages.Sender(m)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hash, err := messages.Hash(m)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		fp.mu.Lock()
		fp.received = append(fp.received, m)
		fp.mu.Unlock()

		data, _ := messages.Encode(&messages.Ack{To: sender, MessageHash: hash})
		_, _ = w.Write(data)
	}))
	t.Cleanup(fp.Server.Close)
	peers.AddPeer(&peering.Peer{Address: fp.Party.Address, SocketAddress: fp.Server.URL})
	return fp
}

func (fp *fakePeer) messages() []messages.SignedMessage {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return append([]messages.SignedMessage(nil), fp.received...)
}

func (fp *fakePeer) kinds() []messages.Kind {
	var kinds []messages.Kind
	for _, m := range fp.messages() {
		kinds = append(kinds, m.Kind())
	}
	return kinds
}

// signedBy signs m with party's key and encodes it
func signedBy(t *testing.T, party testutil.TestParty, m messages.SignedMessage) []byte {
	t.Helper()
	require.NoError(t, messages.Sign(m, party.Key))
	data, err := messages.Encode(m)
	require.NoError(t, err)
	return data
}

// secretToProofFor builds the secret-to-proof that settles mt's lock
func secretToProofFor(mt *messages.MediatedTransfer, secret common.Hash) *messages.SecretToProof {
	stp := &messages.SecretToProof{
		ProofHeader: messages.ProofHeader{
			Nonce:          mt.Nonce + 1,
			ChannelAddress: mt.ChannelAddress,
		},
		MsgID:  mt.MsgID,
		To:     mt.To,
		Secret: secret,
	}
	stp.TransferredAmount.Add(&mt.TransferredAmount, &mt.Lock.Amount)
	return stp
}

func amount(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}
