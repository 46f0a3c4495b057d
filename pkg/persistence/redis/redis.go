package redis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixTransfer    = "channels:transfer:"
	keyPrefixProof       = "channels:proof:"
	keyEngineState       = "channels:enginestate:main"
	keySchemaVersion     = "channels:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Key set for listing operations (Redis doesn't support prefix iteration natively)
	keySetTransfers = "channels:transfers:index"
)

// RedisPersistence is a production-ready persistence implementation using Redis.
// Provides durable, distributed storage suitable for cloud-native deployments.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix for all keys (for multi-tenant setups).
	// "node1:" results in keys like "node1:channels:transfer:<id>".
	KeyPrefix string
}

// NewRedisPersistence creates a new Redis-backed persistence layer.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "failed to connect to Redis at %s", cfg.Address)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

func (r *RedisPersistence) transferKey(id string) string {
	return r.prefixKey(keyPrefixTransfer + id)
}

func (r *RedisPersistence) proofKey(channelAddress common.Address) string {
	return r.prefixKey(keyPrefixProof + channelAddress.Hex())
}

// SaveTransfer persists a transfer record and indexes its ID
func (r *RedisPersistence) SaveTransfer(ts *transfer.TransferState) error {
	if ts == nil {
		return fmt.Errorf("cannot save nil TransferState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()

	data, err := persistence.MarshalTransferState(ts)
	if err != nil {
		return fmt.Errorf("failed to marshal TransferState: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.transferKey(ts.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetTransfers), ts.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to save transfer %s", ts.ID)
	}
	return nil
}

// LoadTransfer retrieves a transfer record
func (r *RedisPersistence) LoadTransfer(id string) (*transfer.TransferState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.transferKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load transfer %s", id)
	}

	ts, err := persistence.UnmarshalTransferState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal TransferState: %w", err)
	}
	return ts, nil
}

// ListTransfers returns all transfer records sorted by ID
func (r *RedisPersistence) ListTransfers() ([]*transfer.TransferState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetTransfers)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list transfer ids")
	}

	records := make([]*transfer.TransferState, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.transferKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch transfers")
	}

	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for TransferState", "key", keys[i])
			continue
		}

		ts, err := persistence.UnmarshalTransferState([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal TransferState, skipping",
				"key", keys[i], "error", err)
			continue
		}

		records = append(records, ts)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records, nil
}

// DeleteTransfer removes a transfer record and its index entry
func (r *RedisPersistence) DeleteTransfer(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx := context.Background()
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.transferKey(id))
	pipe.SRem(ctx, r.prefixKey(keySetTransfers), id)

	_, err := pipe.Exec(ctx)
	return err
}

// SaveProof stores the latest proof of a channel
func (r *RedisPersistence) SaveProof(proof *messages.Proof) error {
	if proof == nil {
		return fmt.Errorf("cannot save nil Proof")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalProof(proof)
	if err != nil {
		return err
	}

	err = r.client.Set(context.Background(), r.proofKey(proof.ChannelAddress), data, 0).Err()
	return errors.Wrapf(err, "failed to save proof for channel %s", proof.ChannelAddress.Hex())
}

// LoadLatestProof returns the latest proof of a channel
func (r *RedisPersistence) LoadLatestProof(channelAddress common.Address) (*messages.Proof, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.proofKey(channelAddress)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load proof for channel %s", channelAddress.Hex())
	}
	return persistence.UnmarshalProof(data)
}

// SaveEngineState persists engine operational state
func (r *RedisPersistence) SaveEngineState(state *persistence.EngineState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil EngineState")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalEngineState(state)
	if err != nil {
		return fmt.Errorf("failed to marshal EngineState: %w", err)
	}

	return r.client.Set(context.Background(), r.prefixKey(keyEngineState), data, 0).Err()
}

// LoadEngineState retrieves engine operational state
func (r *RedisPersistence) LoadEngineState() (*persistence.EngineState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyEngineState)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load EngineState")
	}

	state, err := persistence.UnmarshalEngineState(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal EngineState: %w", err)
	}
	return state, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}

var _ persistence.ITransferPersistence = (*RedisPersistence)(nil)
