package transfer

import (
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// NewTargetMachine builds the transition table for the node a transfer is addressed to.
//
//	init -> awaitRevealSecret -> awaitSecretToProof -> completedTransfer
//	init | awaitRevealSecret -> expiredTransfer when the lock is too close to expiry
//	awaitSecretToProof -> completedTransfer via closeChannel when the lock expires unclaimed
func NewTargetMachine(revealTimeout uint64) *Machine {
	return &Machine{
		role:          RoleTarget,
		revealTimeout: revealTimeout,
		transitions: map[transitionKey]handler{
			{StateAwaitRevealSecret, EventReceiveRevealSecret}:   targetReceiveRevealSecret,
			{StateAwaitRevealSecret, EventHandleBlock}:           targetExpireWhileWaiting,
			{StateAwaitSecretToProof, EventReceiveSecretToProof}: targetReceiveSecretToProof,
			{StateAwaitSecretToProof, EventHandleBlock}:          targetCloseOnExpiry,
		},
		wildcard: map[StateLabel]handler{
			StateInit: targetStart,
		},
	}
}

func targetStart(m *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	if m.isExpired(ts, ev.BlockNumber) {
		return StateExpired, nil, true
	}
	mt := ts.Transfer
	return StateAwaitRevealSecret, []SideEffect{{
		Kind:     EffectSendRequestSecret,
		To:       mt.Initiator,
		HashLock: mt.Lock.HashLock,
		MsgID:    mt.MsgID,
		Amount:   mt.Lock.Amount,
	}}, true
}

func targetReceiveRevealSecret(_ *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	rv, ok := ev.Message.(*messages.RevealSecret)
	if !ok {
		return "", nil, false
	}
	from, ok := sender(ev)
	if !ok {
		return "", nil, false
	}
	mt := ts.Transfer
	if !mt.Lock.Matches(rv.Secret) || from != mt.Initiator {
		return "", nil, false
	}

	secret := rv.Secret
	revealTo := ts.From
	ts.Secret = &secret
	ts.RevealTo = &revealTo

	return StateAwaitSecretToProof, []SideEffect{{
		Kind:     EffectSendRevealSecret,
		To:       revealTo,
		Secret:   secret,
		HashLock: mt.Lock.HashLock,
		MsgID:    mt.MsgID,
	}}, true
}

func targetExpireWhileWaiting(m *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	if !m.isExpired(ts, ev.BlockNumber) {
		return "", nil, false
	}
	return StateExpired, nil, true
}

func targetReceiveSecretToProof(_ *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	stp, ok := ev.Message.(*messages.SecretToProof)
	if !ok {
		return "", nil, false
	}
	from, ok := sender(ev)
	if !ok {
		return "", nil, false
	}
	mt := ts.Transfer
	if from != ts.From || !mt.Lock.Matches(stp.Secret) {
		return "", nil, false
	}

	return StateCompleted, []SideEffect{{
		Kind:           EffectReceiveSecretToProof,
		To:             ts.From,
		Secret:         stp.Secret,
		HashLock:       mt.Lock.HashLock,
		MsgID:          stp.MsgID,
		Amount:         mt.Lock.Amount,
		Proof:          stp,
		ChannelAddress: stp.ChannelAddress,
	}}, true
}

func targetCloseOnExpiry(m *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	if !m.isExpired(ts, ev.BlockNumber) {
		return "", nil, false
	}
	mt := ts.Transfer
	effect := SideEffect{
		Kind:           EffectCloseChannel,
		To:             ts.From,
		HashLock:       mt.Lock.HashLock,
		MsgID:          mt.MsgID,
		Amount:         mt.Lock.Amount,
		ChannelAddress: mt.ChannelAddress,
	}
	if ts.Secret != nil {
		effect.Secret = *ts.Secret
	}
	return StateCompleted, []SideEffect{effect}, true
}
