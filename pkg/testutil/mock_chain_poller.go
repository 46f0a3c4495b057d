package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/blockHandler"
)

// MockChainPoller stands in for the EVM chain poller in tests.
// Blocks are only produced when the test asks for them.
type MockChainPoller struct {
	blockHandlers []blockHandler.IBlockHandler
	logger        *zap.Logger
	currentBlock  uint64
	blockInterval uint64
	ctx           context.Context
	cancel        context.CancelFunc
	mu            sync.Mutex
}

// NewMockChainPoller creates a mock poller feeding every handler.
// EmitBlock advances the height by blockInterval.
func NewMockChainPoller(
	blockHandlers []blockHandler.IBlockHandler,
	blockInterval uint64,
	logger *zap.Logger,
) *MockChainPoller {
	if blockInterval == 0 {
		blockInterval = 1
	}
	return &MockChainPoller{
		blockHandlers: blockHandlers,
		logger:        logger,
		blockInterval: blockInterval,
	}
}

func (m *MockChainPoller) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Sugar().Debug("MockChainPoller started")
	return nil
}

func (m *MockChainPoller) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
	}
}

// EmitBlock advances the chain by one interval and broadcasts the new head
func (m *MockChainPoller) EmitBlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitLocked(m.currentBlock + m.blockInterval)
}

// EmitBlockAtNumber broadcasts a block at an explicit height
func (m *MockChainPoller) EmitBlockAtNumber(blockNumber uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emitLocked(blockNumber)
}

func (m *MockChainPoller) emitLocked(blockNumber uint64) error {
	if m.ctx == nil {
		return fmt.Errorf("mock chain poller not started")
	}
	m.currentBlock = blockNumber

	var parent uint64
	if blockNumber > 0 {
		parent = blockNumber - 1
	}
	block := &ethereum.EthereumBlock{
		Number:       ethereum.EthereumQuantity(blockNumber),
		Hash:         ethereum.EthereumHexString(blockHash(blockNumber)),
		ParentHash:   ethereum.EthereumHexString(blockHash(parent)),
		Timestamp:    ethereum.EthereumQuantity(time.Now().Unix()),
		Nonce:        ethereum.EthereumHexString("0x0000000000000000"),
		Transactions: []*ethereum.EthereumTransaction{},
	}

	for i, handler := range m.blockHandlers {
		if err := handler.HandleBlock(m.ctx, block); err != nil {
			m.logger.Sugar().Warnw("Failed to deliver block", "block", blockNumber, "handler", i, "error", err)
		}
	}
	return nil
}

func (m *MockChainPoller) GetCurrentBlock() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentBlock
}

// blockHash derives a deterministic 32 byte hash from the height
func blockHash(blockNumber uint64) string {
	return fmt.Sprintf("0x%064x", blockNumber)
}
