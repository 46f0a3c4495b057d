package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// Key prefixes for namespacing
const (
	keyPrefixTransfer    = "transfer:"
	keyPrefixProof       = "proof:"
	keyEngineState       = "enginestate:main"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a production-ready persistence implementation using Badger.
// Provides durable, disk-based storage with ACID guarantees.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence creates a new Badger-backed persistence layer.
// The database is opened at the specified path with SyncWrites enabled for durability.
// A background goroutine is started for garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newBadgerLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open badger database at %s", absPath)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func transferKey(id string) []byte {
	return []byte(keyPrefixTransfer + id)
}

func proofKey(channelAddress common.Address) []byte {
	return []byte(keyPrefixProof + channelAddress.Hex())
}

// get copies the value stored under key; nil when absent
func (b *BadgerPersistence) get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(key)
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

func (b *BadgerPersistence) set(key, value []byte) error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key, value)
	})
}

// SaveTransfer persists a transfer record
func (b *BadgerPersistence) SaveTransfer(ts *transfer.TransferState) error {
	if ts == nil {
		return fmt.Errorf("cannot save nil TransferState")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalTransferState(ts)
	if err != nil {
		return fmt.Errorf("failed to marshal TransferState: %w", err)
	}

	return errors.Wrapf(b.set(transferKey(ts.ID), data), "failed to save transfer %s", ts.ID)
}

// LoadTransfer retrieves a transfer record
func (b *BadgerPersistence) LoadTransfer(id string) (*transfer.TransferState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(transferKey(id))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load transfer %s", id)
	}
	if data == nil {
		return nil, nil
	}

	ts, err := persistence.UnmarshalTransferState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TransferState: %w", err)
	}
	return ts, nil
}

// ListTransfers returns all transfer records sorted by ID
func (b *BadgerPersistence) ListTransfers() ([]*transfer.TransferState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	records := make([]*transfer.TransferState, 0)

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixTransfer)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			ts, err := persistence.UnmarshalTransferState(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal TransferState, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}

			records = append(records, ts)
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transfers")
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records, nil
}

// DeleteTransfer removes a transfer record
func (b *BadgerPersistence) DeleteTransfer(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(transferKey(id))
	})
}

// SaveProof stores the latest proof of a channel
func (b *BadgerPersistence) SaveProof(proof *messages.Proof) error {
	if proof == nil {
		return fmt.Errorf("cannot save nil Proof")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalProof(proof)
	if err != nil {
		return err
	}

	return errors.Wrapf(b.set(proofKey(proof.ChannelAddress), data), "failed to save proof for channel %s", proof.ChannelAddress.Hex())
}

// LoadLatestProof returns the latest proof of a channel
func (b *BadgerPersistence) LoadLatestProof(channelAddress common.Address) (*messages.Proof, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get(proofKey(channelAddress))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load proof for channel %s", channelAddress.Hex())
	}
	if data == nil {
		return nil, nil
	}
	return persistence.UnmarshalProof(data)
}

// SaveEngineState persists engine operational state
func (b *BadgerPersistence) SaveEngineState(state *persistence.EngineState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil EngineState")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalEngineState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal EngineState: %w", err)
	}

	return b.set([]byte(keyEngineState), data)
}

// LoadEngineState retrieves engine operational state
func (b *BadgerPersistence) LoadEngineState() (*persistence.EngineState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	data, err := b.get([]byte(keyEngineState))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load EngineState")
	}
	if data == nil {
		return nil, nil
	}

	state, err := persistence.UnmarshalEngineState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal EngineState: %w", err)
	}
	return state, nil
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

var _ persistence.ITransferPersistence = (*BadgerPersistence)(nil)
