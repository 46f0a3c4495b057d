package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// IChannelCloser settles a channel on chain with the latest proof received from the
// partner, then redeems every pending lock whose secret is known
type IChannelCloser interface {
	CloseChannel(ctx context.Context, channelAddress common.Address, proof *messages.Proof, unlocks []*channel.Unlock) error
}

// LoggingChannelCloser records close requests without touching the chain
type LoggingChannelCloser struct {
	logger *zap.Logger
}

func NewLoggingChannelCloser(logger *zap.Logger) *LoggingChannelCloser {
	return &LoggingChannelCloser{logger: logger}
}

func (c *LoggingChannelCloser) CloseChannel(ctx context.Context, channelAddress common.Address, proof *messages.Proof, unlocks []*channel.Unlock) error {
	if proof == nil {
		c.logger.Sugar().Warnw("Closing channel without a partner proof", "channel", channelAddress.Hex())
		return nil
	}
	c.logger.Sugar().Infow("Closing channel",
		"channel", channelAddress.Hex(),
		"nonce", proof.Nonce,
		"transferred_amount", proof.TransferredAmount.Dec(),
		"locks_root", proof.LocksRoot.Hex(),
		"message_hash", proof.MessageHash.Hex(),
		"unlocks", len(unlocks))
	for _, u := range unlocks {
		c.logger.Sugar().Infow("Unlocking pending lock",
			"channel", channelAddress.Hex(),
			"hash_lock", u.OpenLock.HashLock.Hex(),
			"amount", u.OpenLock.Amount.Dec(),
			"leaf_index", u.Proof.LeafIndex)
	}
	return nil
}

var _ IChannelCloser = (*LoggingChannelCloser)(nil)
