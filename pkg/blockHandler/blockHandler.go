package blockHandler

import (
	"context"
	"sync"

	chainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"go.uber.org/zap"
)

type IBlockHandler interface {
	chainPoller.IBlockHandler
	ListenToChannel(ctx context.Context, handleFunc func(*ethereum.EthereumBlock))
	LatestBlock() (uint64, bool)
}

// BlockHandler forwards finalized blocks from the chain poller to a single listener.
// Heights only move forward: a block at or below the latest forwarded height is dropped.
type BlockHandler struct {
	BlockChannel chan *ethereum.EthereumBlock
	logger       *zap.Logger

	mu     sync.Mutex
	latest uint64
	seen   bool
}

func NewBlockHandler(
	logger *zap.Logger,
) *BlockHandler {
	return &BlockHandler{
		// 100 block capacity should be more than enough to handle finalized blocks
		BlockChannel: make(chan *ethereum.EthereumBlock, 100),
		logger:       logger,
	}
}

// LatestBlock returns the highest block number accepted so far
func (h *BlockHandler) LatestBlock() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.seen
}

func (h *BlockHandler) ListenToChannel(ctx context.Context, handleFunc func(*ethereum.EthereumBlock)) {
	for {
		select {
		// read blocks from the channel and call handleFunc
		case block := <-h.BlockChannel:
			h.logger.Sugar().Debugw("BlockHandler received block from channel", "block", block.Number.Value())
			handleFunc(block)
		case <-ctx.Done():
			h.logger.Sugar().Info("BlockHandler channel listener exiting due to context done")
			return
		}
	}
}

func (h *BlockHandler) HandleBlock(ctx context.Context, block *ethereum.EthereumBlock) error {
	number := block.Number.Value()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.seen && number <= h.latest {
		h.logger.Sugar().Debugw("Ignoring block at or below latest height",
			"block", number, "latest", h.latest)
		return nil
	}

	select {
	case h.BlockChannel <- block:
		h.latest = number
		h.seen = true
		h.logger.Sugar().Debugw("Block sent to channel", "block", number)
	case <-ctx.Done():
		h.logger.Sugar().Warnw("Context done before sending block to channel", "block", number)
	default:
		h.logger.Sugar().Warnw("Block channel is full, dropping block", "block", number)
	}
	return nil
}

func (h *BlockHandler) HandleLog(ctx context.Context, logWithBlock *chainPoller.LogWithBlock) error {
	// channel contracts are not indexed here, logs are ignored
	return nil
}

func (h *BlockHandler) HandleReorgBlock(ctx context.Context, blockNumber uint64) {
	// only finalized blocks are indexed, a reorg notification means the poller is misconfigured
	h.logger.Sugar().Warnw("Received reorg notification", "block", blockNumber)
}
