package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// HandleMessage decodes an inbound message, verifies its signature, applies it
// and returns the Ack for the sender. Messages that match no transfer or are
// ignored by the state machine are still acknowledged.
func (e *Engine) HandleMessage(ctx context.Context, data []byte) (*messages.Ack, error) {
	ack, _, err := e.handleInbound(ctx, data)
	return ack, err
}

// handleInbound additionally reports whether the message changed any state
func (e *Engine) handleInbound(ctx context.Context, data []byte) (*messages.Ack, bool, error) {
	m, err := messages.DecodeSigned(data)
	if err != nil {
		return nil, false, reject(err)
	}
	from, err := messages.Sender(m)
	if err != nil {
		return nil, false, reject(err)
	}
	hash, err := messages.Hash(m)
	if err != nil {
		return nil, false, reject(err)
	}

	e.logger.Sugar().Debugw("Received message", "kind", m.Kind(), "from", from.Hex(), "message_hash", hash.Hex())

	var accepted bool
	switch msg := m.(type) {
	case *messages.MediatedTransfer:
		accepted, err = e.receiveMediatedTransfer(ctx, from, msg)
	case *messages.RequestSecret:
		accepted, err = e.route(ctx, msg.HashLock, transfer.Event{Kind: transfer.EventReceiveRequestSecret, Message: msg}, nil)
	case *messages.RevealSecret:
		accepted, err = e.route(ctx, msg.HashLock(), transfer.Event{Kind: transfer.EventReceiveRevealSecret, Message: msg}, nil)
	case *messages.SecretToProof:
		accepted, err = e.route(ctx, msg.HashLock(), transfer.Event{Kind: transfer.EventReceiveSecretToProof, Message: msg}, e.applySecretToProof)
	case *messages.DirectTransfer:
		err = e.receiveDirectTransfer(from, msg)
		accepted = err == nil
	case *messages.LockedTransfer:
		err = e.receiveLockedTransfer(from, msg)
		accepted = err == nil
	default:
		err = reject(fmt.Errorf("%w: %s", ErrUnsupported, m.Kind()))
	}
	if err != nil {
		e.logger.Sugar().Warnw("Failed to handle message", "kind", m.Kind(), "from", from.Hex(), "error", err)
		return nil, false, err
	}

	return &messages.Ack{To: from, MessageHash: hash, MsgID: msgIDOf(m)}, accepted, nil
}

func reject(err error) error {
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

func msgIDOf(m messages.SignedMessage) uint64 {
	switch msg := m.(type) {
	case *messages.DirectTransfer:
		return msg.MsgID
	case *messages.LockedTransfer:
		return msg.MsgID
	case *messages.MediatedTransfer:
		return msg.MsgID
	case *messages.RequestSecret:
		return msg.MsgID
	case *messages.SecretToProof:
		return msg.MsgID
	}
	return 0
}

// partnerChannel returns the channel at address after checking that from is its partner
func (e *Engine) partnerChannel(address, from common.Address) (*channel.Channel, error) {
	ch, err := e.GetChannel(address)
	if err != nil {
		return nil, reject(err)
	}
	if ch.Partner != from {
		return nil, reject(fmt.Errorf("%w: %s is not the partner of channel %s", ErrUnexpectedSender, from.Hex(), address.Hex()))
	}
	return ch, nil
}

// receiveMediatedTransfer registers the lock on the incoming ledger and starts a target record.
// The channel is opened on first use with the sender as partner.
func (e *Engine) receiveMediatedTransfer(ctx context.Context, from common.Address, mt *messages.MediatedTransfer) (bool, error) {
	if mt.Target != e.Address || mt.To != e.Address {
		return false, reject(fmt.Errorf("%w: target %s, to %s", ErrNotTarget, mt.Target.Hex(), mt.To.Hex()))
	}
	if _, ok := e.recordByHashLock(mt.Lock.HashLock); ok {
		e.logger.Sugar().Debugw("Duplicate mediated transfer", "hash_lock", mt.Lock.HashLock.Hex())
		return false, nil
	}

	if _, err := e.GetChannel(mt.ChannelAddress); err != nil {
		if _, err := e.RegisterChannel(mt.ChannelAddress, from); err != nil && !errors.Is(err, ErrChannelExists) {
			return false, err
		}
	}
	ch, err := e.partnerChannel(mt.ChannelAddress, from)
	if err != nil {
		return false, err
	}
	if err := ch.ReceiveLockedTransfer(mt, mt.Lock); err != nil {
		return false, reject(err)
	}
	if err := e.store.SaveProof(ch.LatestProof()); err != nil {
		return false, fmt.Errorf("failed to persist proof: %w", err)
	}
	if err := e.saveEngineState(); err != nil {
		return false, err
	}

	ts := transfer.NewTargetState(uuid.NewString(), mt, from)
	if err := e.store.SaveTransfer(ts); err != nil {
		return false, fmt.Errorf("failed to persist transfer: %w", err)
	}
	rec, err := e.addRecord(ts)
	if err != nil {
		return false, err
	}

	e.logger.Sugar().Infow("Received mediated transfer",
		"transfer_id", ts.ID,
		"channel", mt.ChannelAddress.Hex(),
		"initiator", mt.Initiator.Hex(),
		"amount", mt.Lock.Amount.Dec(),
		"expiration", mt.Lock.Expiration,
		"hash_lock", mt.Lock.HashLock.Hex())

	outcome, snap, err := e.drive(rec, transfer.Event{
		Kind:        transfer.EventStart,
		Message:     mt,
		BlockNumber: e.CurrentBlockHeight(),
	}, nil)
	if err != nil {
		return false, err
	}
	e.executeEffects(ctx, snap, outcome.Effects)
	return true, nil
}

// route feeds ev into the transfer holding hashLock. Unknown hash locks are not an error.
func (e *Engine) route(
	ctx context.Context,
	hashLock common.Hash,
	ev transfer.Event,
	apply func(ts *transfer.TransferState, outcome transfer.Outcome) error,
) (bool, error) {
	rec, ok := e.recordByHashLock(hashLock)
	if !ok {
		e.logger.Sugar().Debugw("No transfer for hash lock", "hash_lock", hashLock.Hex(), "event", ev.Kind)
		return false, nil
	}

	ev.BlockNumber = e.CurrentBlockHeight()
	outcome, snap, err := e.drive(rec, ev, apply)
	if err != nil {
		return false, err
	}
	if snap == nil {
		e.logger.Sugar().Debugw("Event ignored", "hash_lock", hashLock.Hex(), "event", ev.Kind, "state", outcome.From)
		return false, nil
	}
	e.executeEffects(ctx, snap, outcome.Effects)
	return true, nil
}

// applySecretToProof moves the unlocked amount on the incoming ledger and stores the resulting proof
func (e *Engine) applySecretToProof(_ *transfer.TransferState, outcome transfer.Outcome) error {
	for _, effect := range outcome.Effects {
		if effect.Kind != transfer.EffectReceiveSecretToProof || effect.Proof == nil {
			continue
		}
		stp := effect.Proof
		ch, err := e.GetChannel(stp.ChannelAddress)
		if err != nil {
			return reject(err)
		}
		proof, err := ch.ReceiveSecretToProof(stp)
		if err != nil {
			return reject(err)
		}
		if err := e.store.SaveProof(proof); err != nil {
			return fmt.Errorf("failed to persist proof: %w", err)
		}
		if err := e.saveEngineState(); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) receiveDirectTransfer(from common.Address, dt *messages.DirectTransfer) error {
	if dt.To != e.Address {
		return reject(fmt.Errorf("%w: to %s", ErrNotTarget, dt.To.Hex()))
	}
	ch, err := e.partnerChannel(dt.ChannelAddress, from)
	if err != nil {
		return err
	}
	if err := ch.ReceiveDirectTransfer(dt); err != nil {
		return reject(err)
	}
	if err := e.store.SaveProof(ch.LatestProof()); err != nil {
		return fmt.Errorf("failed to persist proof: %w", err)
	}
	e.logger.Sugar().Infow("Received direct transfer",
		"channel", dt.ChannelAddress.Hex(),
		"nonce", dt.Nonce,
		"transferred_amount", dt.TransferredAmount.Dec())
	return e.saveEngineState()
}

func (e *Engine) receiveLockedTransfer(from common.Address, lt *messages.LockedTransfer) error {
	if lt.To != e.Address {
		return reject(fmt.Errorf("%w: to %s", ErrNotTarget, lt.To.Hex()))
	}
	ch, err := e.partnerChannel(lt.ChannelAddress, from)
	if err != nil {
		return err
	}
	if err := ch.ReceiveLockedTransfer(lt, lt.Lock); err != nil {
		return reject(err)
	}
	if err := e.store.SaveProof(ch.LatestProof()); err != nil {
		return fmt.Errorf("failed to persist proof: %w", err)
	}
	return e.saveEngineState()
}
