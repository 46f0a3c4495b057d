package engine

import (
	"context"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/blockHandler"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// maxConcurrentBlockHandlers bounds how many transfers are driven in parallel per block
const maxConcurrentBlockHandlers = 16

// HandleBlock advances the block height and feeds it to every open transfer.
// Heights at or below the current one are ignored.
func (e *Engine) HandleBlock(ctx context.Context, number uint64) {
	for {
		current := e.blockHeight.Load()
		if number <= current {
			return
		}
		if e.blockHeight.CompareAndSwap(current, number) {
			break
		}
	}

	if err := e.saveEngineState(); err != nil {
		e.logger.Sugar().Errorw("Failed to persist engine state", "block", number, "error", err)
	}

	e.evictSettled(number)

	e.mu.RLock()
	recs := make([]*record, 0, len(e.transfers))
	for _, rec := range e.transfers {
		recs = append(recs, rec)
	}
	e.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBlockHandlers)
	for _, rec := range recs {
		g.Go(func() error {
			outcome, snap, err := e.drive(rec, transfer.Event{Kind: transfer.EventHandleBlock, BlockNumber: number}, nil)
			if err != nil {
				e.logger.Sugar().Errorw("Failed to handle block for transfer", "block", number, "error", err)
				return nil
			}
			if snap != nil {
				e.executeEffects(gctx, snap, outcome.Effects)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// ListenToBlocks drives HandleBlock from the block handler until ctx is done
func (e *Engine) ListenToBlocks(ctx context.Context, bh blockHandler.IBlockHandler) {
	bh.ListenToChannel(ctx, func(block *ethereum.EthereumBlock) {
		e.HandleBlock(ctx, block.Number.Value())
	})
}

// evictSettled drops finished transfers whose lock expired more than a settle
// timeout ago from memory. They stay readable through GetTransfer.
func (e *Engine) evictSettled(number uint64) {
	for _, ts := range e.ListTransfers() {
		if !ts.IsTerminal() || number <= ts.Transfer.Lock.Expiration+e.config.SettleTimeout {
			continue
		}
		e.removeRecord(ts.ID, ts.HashLock())
		e.logger.Sugar().Debugw("Evicted settled transfer", "transfer_id", ts.ID, "block", number)
	}
}
