package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// executeEffects carries out the intents of one transition. The transition is
// already persisted, so failures are logged and never roll the record back.
func (e *Engine) executeEffects(ctx context.Context, ts *transfer.TransferState, effects []transfer.SideEffect) {
	for _, effect := range effects {
		if err := e.executeEffect(ctx, effect); err != nil {
			e.logger.Sugar().Errorw("Failed to execute side effect",
				"transfer_id", ts.ID,
				"effect", effect.Kind,
				"to", effect.To.Hex(),
				"error", err)
		}
	}
}

func (e *Engine) executeEffect(ctx context.Context, effect transfer.SideEffect) error {
	switch effect.Kind {
	case transfer.EffectSendMediatedTransfer:
		if effect.Transfer == nil {
			return fmt.Errorf("missing transfer")
		}
		return e.send(ctx, effect.To, effect.Transfer)

	case transfer.EffectSendRequestSecret:
		return e.signAndSend(ctx, effect.To, &messages.RequestSecret{
			MsgID:    effect.MsgID,
			To:       effect.To,
			HashLock: effect.HashLock,
			Amount:   effect.Amount,
		})

	case transfer.EffectSendRevealSecret:
		return e.signAndSend(ctx, effect.To, &messages.RevealSecret{
			To:     effect.To,
			Secret: effect.Secret,
		})

	case transfer.EffectSendSecretToProof:
		ch, err := e.GetChannel(effect.ChannelAddress)
		if err != nil {
			return err
		}
		header, err := ch.PrepareSecretToProof(effect.Secret)
		if err != nil {
			return fmt.Errorf("failed to unlock funds: %w", err)
		}
		if err := e.saveEngineState(); err != nil {
			return err
		}
		return e.signAndSend(ctx, effect.To, &messages.SecretToProof{
			ProofHeader: header,
			MsgID:       effect.MsgID,
			To:          effect.To,
			Secret:      effect.Secret,
		})

	case transfer.EffectReceiveSecretToProof:
		// applied to the ledger before the transition was persisted
		return nil

	case transfer.EffectCloseChannel:
		ch, err := e.GetChannel(effect.ChannelAddress)
		if err != nil {
			return err
		}
		var unlocks []*channel.Unlock
		if effect.Secret != (common.Hash{}) {
			unlock, err := ch.UnlockFor(effect.Secret)
			if err != nil {
				e.logger.Sugar().Warnw("Closing without unlocking the pending lock",
					"channel", ch.Address.Hex(),
					"hash_lock", effect.HashLock.Hex(),
					"error", err)
			} else {
				unlocks = append(unlocks, unlock)
			}
		}
		return e.closer.CloseChannel(ctx, ch.Address, ch.LatestProof(), unlocks)
	}
	return fmt.Errorf("unknown effect %s", effect.Kind)
}

func (e *Engine) signAndSend(ctx context.Context, to common.Address, m messages.SignedMessage) error {
	if err := e.signer.SignMessage(m); err != nil {
		return err
	}
	return e.send(ctx, to, m)
}

// send delivers m and checks that the Ack refers to it
func (e *Engine) send(ctx context.Context, to common.Address, m messages.SignedMessage) error {
	expected, err := messages.Hash(m)
	if err != nil {
		return err
	}
	ack, err := e.transport.SendMessage(ctx, to, m)
	if err != nil {
		return err
	}
	if ack.MessageHash != expected {
		e.logger.Sugar().Warnw("Ack does not match sent message",
			"kind", m.Kind(),
			"to", to.Hex(),
			"expected", expected.Hex(),
			"got", ack.MessageHash.Hex())
	}
	return nil
}
