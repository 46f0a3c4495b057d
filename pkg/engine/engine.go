package engine

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messageSigner"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transport"
)

var (
	// ErrRejected marks inbound messages refused before reaching a state machine
	ErrRejected = errors.New("message rejected")

	ErrUnknownTransfer  = errors.New("unknown transfer")
	ErrUnknownChannel   = errors.New("unknown channel")
	ErrChannelExists    = errors.New("channel already registered")
	ErrUnexpectedSender = errors.New("unexpected sender")
	ErrNotTarget        = errors.New("transfer is not addressed to this node")
	ErrUnsupported      = errors.New("unsupported message kind")
	ErrLockTooShort     = errors.New("lock expiration is within the reveal timeout")
	ErrTransferActive   = errors.New("transfer has not finished")
)

// Config holds engine configuration
type Config struct {
	// RevealTimeout is the safety margin in blocks before a lock expires
	RevealTimeout uint64
	// SettleTimeout is the default lock lifetime in blocks for new transfers
	SettleTimeout uint64
	// Port the HTTP server listens on
	Port int
	// RateLimit is the number of inbound messages accepted per second, zero disables limiting
	RateLimit float64
	// Rand is the source of transfer secrets, crypto/rand when nil
	Rand io.Reader
}

// record pairs a transfer with the lock serializing its events
type record struct {
	mu sync.Mutex
	ts *transfer.TransferState
}

// Engine owns the transfer records of one node. It feeds events into the
// state machines, persists every accepted transition and turns side effects
// into signed messages delivered through the transport.
type Engine struct {
	Address common.Address

	config    Config
	signer    messageSigner.IMessageSigner
	store     persistence.ITransferPersistence
	transport transport.IMessageTransport
	closer    IChannelCloser
	logger    *zap.Logger
	rng       io.Reader
	startTime int64

	initiator *transfer.Machine
	target    *transfer.Machine

	blockHeight atomic.Uint64
	msgID       atomic.Uint64

	server *Server

	mu         sync.RWMutex
	transfers  map[string]*record
	byHashLock map[common.Hash]string
	channels   map[common.Address]*channel.Channel

	// stateMu serializes engine state snapshots
	stateMu sync.Mutex
}

// NewEngine creates a new engine instance with dependency injection
func NewEngine(
	cfg Config,
	signer messageSigner.IMessageSigner,
	store persistence.ITransferPersistence,
	tr transport.IMessageTransport,
	closer IChannelCloser,
	logger *zap.Logger,
) *Engine {
	rng := cfg.Rand
	if rng == nil {
		rng = rand.Reader
	}
	if closer == nil {
		closer = NewLoggingChannelCloser(logger)
	}

	e := &Engine{
		Address:    signer.Address(),
		config:     cfg,
		signer:     signer,
		store:      store,
		transport:  tr,
		closer:     closer,
		logger:     logger,
		rng:        rng,
		startTime:  time.Now().Unix(),
		initiator:  transfer.NewInitiatorMachine(cfg.RevealTimeout),
		target:     transfer.NewTargetMachine(cfg.RevealTimeout),
		transfers:  make(map[string]*record),
		byHashLock: make(map[common.Hash]string),
		channels:   make(map[common.Address]*channel.Channel),
	}
	e.server = NewServer(e, cfg.Port, cfg.RateLimit)
	return e
}

// Start restores persisted state and starts the HTTP server
func (e *Engine) Start() error {
	if err := e.Restore(); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}
	return e.server.Start()
}

// Stop stops the HTTP server and flushes engine state
func (e *Engine) Stop() error {
	if err := e.server.Stop(); err != nil {
		return err
	}
	return e.saveEngineState()
}

// Handler returns the HTTP handler (for testing)
func (e *Engine) Handler() http.Handler {
	return e.server.GetHandler()
}

// CurrentBlockHeight returns the latest block seen by the engine
func (e *Engine) CurrentBlockHeight() uint64 {
	return e.blockHeight.Load()
}

// Restore reloads engine state and transfer records from persistence
func (e *Engine) Restore() error {
	state, err := e.store.LoadEngineState()
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if state != nil {
		e.blockHeight.Store(state.BlockHeight)
		for _, snap := range state.Channels {
			ch, err := snap.Restore()
			if err != nil {
				return fmt.Errorf("failed to restore channel %s: %w", snap.Address.Hex(), err)
			}
			e.channels[ch.Address] = ch
		}
	}

	// proofs are saved before the engine state, so the store may hold a newer one
	for _, ch := range e.channels {
		stored, err := e.store.LoadLatestProof(ch.Address)
		if err != nil {
			return fmt.Errorf("failed to load latest proof of channel %s: %w", ch.Address.Hex(), err)
		}
		if stored != nil && ch.AdoptLatestProof(stored) {
			e.logger.Sugar().Warnw("Restored newer proof than the channel snapshot",
				"channel", ch.Address.Hex(),
				"nonce", stored.Nonce)
		}
	}

	records, err := e.store.ListTransfers()
	if err != nil {
		return err
	}
	var maxMsgID uint64
	for _, ts := range records {
		e.transfers[ts.ID] = &record{ts: ts}
		e.byHashLock[ts.HashLock()] = ts.ID
		if ts.Transfer.MsgID > maxMsgID {
			maxMsgID = ts.Transfer.MsgID
		}
	}
	if maxMsgID > e.msgID.Load() {
		e.msgID.Store(maxMsgID)
	}

	e.logger.Sugar().Infow("Restored engine state",
		"address", e.Address.Hex(),
		"block_height", e.blockHeight.Load(),
		"channels", len(e.channels),
		"transfers", len(records))
	return nil
}

// RegisterChannel opens the local ledger of a channel shared with partner
func (e *Engine) RegisterChannel(address, partner common.Address) (*channel.Channel, error) {
	e.mu.Lock()
	if _, ok := e.channels[address]; ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrChannelExists, address.Hex())
	}
	ch := channel.NewChannel(address, partner)
	e.channels[address] = ch
	e.mu.Unlock()

	e.logger.Sugar().Infow("Registered channel", "channel", address.Hex(), "partner", partner.Hex())
	if err := e.saveEngineState(); err != nil {
		return nil, err
	}
	return ch, nil
}

// GetChannel returns the ledger of a channel
func (e *Engine) GetChannel(address common.Address) (*channel.Channel, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ch, ok := e.channels[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, address.Hex())
	}
	return ch, nil
}

// GetTransfer returns a copy of a transfer record. Settled records evicted from
// memory are read from persistence.
func (e *Engine) GetTransfer(id string) (*transfer.TransferState, error) {
	e.mu.RLock()
	rec, ok := e.transfers[id]
	e.mu.RUnlock()
	if !ok {
		ts, err := e.store.LoadTransfer(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load transfer %s: %w", id, err)
		}
		if ts == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTransfer, id)
		}
		return ts, nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	copied := *rec.ts
	return &copied, nil
}

// ListTransfers returns copies of every transfer record sorted by ID
func (e *Engine) ListTransfers() []*transfer.TransferState {
	e.mu.RLock()
	recs := make([]*record, 0, len(e.transfers))
	for _, rec := range e.transfers {
		recs = append(recs, rec)
	}
	e.mu.RUnlock()

	out := make([]*transfer.TransferState, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		copied := *rec.ts
		rec.mu.Unlock()
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) machineFor(ts *transfer.TransferState) *transfer.Machine {
	if ts.Role == transfer.RoleInitiator {
		return e.initiator
	}
	return e.target
}

// addRecord indexes a new record. A hash lock maps to at most one record per node.
func (e *Engine) addRecord(ts *transfer.TransferState) (*record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id, ok := e.byHashLock[ts.HashLock()]; ok {
		return nil, fmt.Errorf("hash lock %s already used by transfer %s", ts.HashLock().Hex(), id)
	}
	rec := &record{ts: ts}
	e.transfers[ts.ID] = rec
	e.byHashLock[ts.HashLock()] = ts.ID
	return rec, nil
}

// removeRecord drops a record from the in-memory indexes
func (e *Engine) removeRecord(id string, hashLock common.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.transfers, id)
	if e.byHashLock[hashLock] == id {
		delete(e.byHashLock, hashLock)
	}
}

func (e *Engine) recordByHashLock(hashLock common.Hash) (*record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	id, ok := e.byHashLock[hashLock]
	if !ok {
		return nil, false
	}
	return e.transfers[id], true
}

// drive feeds ev into the record under its lock. apply runs on the candidate
// record before it is persisted; an error from apply discards the transition.
// Effects that reach other parties are returned for execution after the lock is released.
func (e *Engine) drive(
	rec *record,
	ev transfer.Event,
	apply func(ts *transfer.TransferState, outcome transfer.Outcome) error,
) (transfer.Outcome, *transfer.TransferState, error) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	candidate := *rec.ts
	outcome, err := e.machineFor(&candidate).Handle(&candidate, ev)
	if err != nil {
		return outcome, nil, err
	}
	if !outcome.Transitioned() {
		return outcome, nil, nil
	}
	if apply != nil {
		if err := apply(&candidate, outcome); err != nil {
			return transfer.Outcome{From: outcome.From, To: outcome.From}, nil, err
		}
	}
	if err := e.store.SaveTransfer(&candidate); err != nil {
		return transfer.Outcome{From: outcome.From, To: outcome.From}, nil, fmt.Errorf("failed to persist transfer %s: %w", candidate.ID, err)
	}
	*rec.ts = candidate

	e.logger.Sugar().Infow("Transfer transitioned",
		"transfer_id", candidate.ID,
		"role", candidate.Role,
		"event", ev.Kind,
		"from", outcome.From,
		"to", outcome.To,
		"effects", len(outcome.Effects))

	snapshot := candidate
	return outcome, &snapshot, nil
}

// saveEngineState persists the block height and every channel ledger
func (e *Engine) saveEngineState() error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	e.mu.RLock()
	chans := make([]*channel.Channel, 0, len(e.channels))
	for _, ch := range e.channels {
		chans = append(chans, ch)
	}
	e.mu.RUnlock()
	sort.Slice(chans, func(i, j int) bool {
		return chans[i].Address.Hex() < chans[j].Address.Hex()
	})

	snaps := make([]*channel.Snapshot, 0, len(chans))
	for _, ch := range chans {
		snap, err := ch.Snapshot()
		if err != nil {
			return fmt.Errorf("failed to snapshot channel %s: %w", ch.Address.Hex(), err)
		}
		snaps = append(snaps, snap)
	}

	return e.store.SaveEngineState(&persistence.EngineState{
		BlockHeight:   e.blockHeight.Load(),
		NodeStartTime: e.startTime,
		NodeAddress:   e.Address.Hex(),
		Channels:      snaps,
	})
}

func (e *Engine) nextMsgID() uint64 {
	return e.msgID.Add(1)
}
