package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transfer"
)

// TransferRequest describes a mediated transfer this node initiates
type TransferRequest struct {
	ChannelAddress common.Address
	// Target receives the funds, the channel partner when zero
	Target common.Address
	Amount uint256.Int
	// Expiration is the lock expiration block, current height plus the settle timeout when zero
	Expiration uint64
}

// InitiateTransfer locks Amount in the outgoing channel, signs the mediated
// transfer and starts the initiator machine. The returned record reflects the
// state after the first effects were executed.
func (e *Engine) InitiateTransfer(ctx context.Context, req TransferRequest) (*transfer.TransferState, error) {
	ch, err := e.GetChannel(req.ChannelAddress)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsZero() {
		return nil, errors.New("transfer amount must be positive")
	}

	current := e.CurrentBlockHeight()
	expiration := req.Expiration
	if expiration == 0 {
		expiration = current + e.config.SettleTimeout
	}

	secret, hashLock, err := crypto.GenerateSecret(e.rng)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	lock, err := messages.NewLock(&req.Amount, expiration, hashLock)
	if err != nil {
		return nil, err
	}
	if !lock.IsSafe(current, e.config.RevealTimeout) {
		return nil, fmt.Errorf("%w: expiration %d, block %d, reveal timeout %d",
			ErrLockTooShort, expiration, current, e.config.RevealTimeout)
	}

	header, err := ch.PrepareLockedTransfer(lock)
	if err != nil {
		return nil, fmt.Errorf("failed to lock funds: %w", err)
	}

	target := req.Target
	if target == (common.Address{}) {
		target = ch.Partner
	}
	mt := &messages.MediatedTransfer{
		ProofHeader: header,
		MsgID:       e.nextMsgID(),
		To:          ch.Partner,
		Lock:        lock,
		Target:      target,
		Initiator:   e.Address,
	}
	if err := e.signer.SignMessage(mt); err != nil {
		return nil, err
	}
	if err := e.saveEngineState(); err != nil {
		return nil, err
	}

	ts := transfer.NewInitiatorState(uuid.NewString(), mt, e.Address, secret)
	if err := e.store.SaveTransfer(ts); err != nil {
		return nil, fmt.Errorf("failed to persist transfer: %w", err)
	}
	rec, err := e.addRecord(ts)
	if err != nil {
		return nil, err
	}

	e.logger.Sugar().Infow("Initiating transfer",
		"transfer_id", ts.ID,
		"channel", ch.Address.Hex(),
		"target", target.Hex(),
		"amount", lock.Amount.Dec(),
		"expiration", expiration,
		"hash_lock", hashLock.Hex())

	outcome, snap, err := e.drive(rec, transfer.Event{Kind: transfer.EventStart, BlockNumber: current}, nil)
	if err != nil {
		return nil, err
	}
	e.executeEffects(ctx, snap, outcome.Effects)

	return e.GetTransfer(ts.ID)
}

// CancelTransfer abandons an initiated transfer that has not revealed its secret yet
func (e *Engine) CancelTransfer(ctx context.Context, id string) (*transfer.TransferState, error) {
	e.mu.RLock()
	rec, ok := e.transfers[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransfer, id)
	}

	outcome, snap, err := e.drive(rec, transfer.Event{
		Kind:        transfer.EventCancelTransfer,
		BlockNumber: e.CurrentBlockHeight(),
	}, nil)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		e.executeEffects(ctx, snap, outcome.Effects)
	}
	return e.GetTransfer(id)
}

// PurgeTransfer deletes a finished transfer from memory and persistence
func (e *Engine) PurgeTransfer(id string) error {
	ts, err := e.GetTransfer(id)
	if err != nil {
		return err
	}
	if !ts.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTransferActive, id, ts.State)
	}
	if err := e.store.DeleteTransfer(id); err != nil {
		return fmt.Errorf("failed to delete transfer %s: %w", id, err)
	}
	e.removeRecord(id, ts.HashLock())
	e.logger.Sugar().Infow("Purged transfer", "transfer_id", id, "state", ts.State)
	return nil
}

// SendDirectTransfer pays amount to the channel partner without a lock and returns the partner's Ack
func (e *Engine) SendDirectTransfer(ctx context.Context, channelAddress common.Address, amount uint256.Int) (*messages.Ack, error) {
	ch, err := e.GetChannel(channelAddress)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, errors.New("transfer amount must be positive")
	}

	header, err := ch.PrepareDirectTransfer(&amount)
	if err != nil {
		return nil, err
	}
	dt := &messages.DirectTransfer{
		ProofHeader: header,
		MsgID:       e.nextMsgID(),
		To:          ch.Partner,
	}
	if err := e.signer.SignMessage(dt); err != nil {
		return nil, err
	}
	if err := e.saveEngineState(); err != nil {
		return nil, err
	}
	return e.transport.SendMessage(ctx, ch.Partner, dt)
}
