package transfer

import (
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// NewInitiatorMachine builds the transition table for the node that starts a transfer.
//
//	init -> awaitRequestSecret -> awaitRevealSecret -> completedTransfer
//	init | awaitRequestSecret -> failedTransfer on cancel
//	awaitRequestSecret -> expiredTransfer once the lock expires
func NewInitiatorMachine(revealTimeout uint64) *Machine {
	return &Machine{
		role:          RoleInitiator,
		revealTimeout: revealTimeout,
		transitions: map[transitionKey]handler{
			{StateInit, EventCancelTransfer}:                     initiatorCancel,
			{StateAwaitRequestSecret, EventReceiveRequestSecret}: initiatorReceiveRequestSecret,
			{StateAwaitRequestSecret, EventCancelTransfer}:       initiatorCancel,
			{StateAwaitRequestSecret, EventHandleBlock}:          initiatorHandleBlock,
			{StateAwaitRevealSecret, EventReceiveRevealSecret}:   initiatorReceiveRevealSecret,
		},
		wildcard: map[StateLabel]handler{
			StateInit: initiatorStart,
		},
	}
}

func initiatorStart(_ *Machine, ts *TransferState, _ Event) (StateLabel, []SideEffect, bool) {
	mt := ts.Transfer
	return StateAwaitRequestSecret, []SideEffect{{
		Kind:           EffectSendMediatedTransfer,
		To:             mt.To,
		Transfer:       mt,
		HashLock:       mt.Lock.HashLock,
		MsgID:          mt.MsgID,
		Amount:         mt.Lock.Amount,
		ChannelAddress: mt.ChannelAddress,
	}}, true
}

func initiatorCancel(_ *Machine, _ *TransferState, _ Event) (StateLabel, []SideEffect, bool) {
	return StateFailed, nil, true
}

func initiatorHandleBlock(_ *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	if ev.BlockNumber < ts.Transfer.Lock.Expiration {
		return "", nil, false
	}
	return StateExpired, nil, true
}

func initiatorReceiveRequestSecret(_ *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	rs, ok := ev.Message.(*messages.RequestSecret)
	if !ok || ts.Secret == nil {
		return "", nil, false
	}
	from, ok := sender(ev)
	if !ok {
		return "", nil, false
	}
	mt := ts.Transfer
	if from != mt.Target || rs.HashLock != mt.Lock.HashLock || rs.MsgID != mt.MsgID {
		return "", nil, false
	}

	return StateAwaitRevealSecret, []SideEffect{{
		Kind:     EffectSendRevealSecret,
		To:       mt.Target,
		Secret:   *ts.Secret,
		HashLock: mt.Lock.HashLock,
		MsgID:    mt.MsgID,
	}}, true
}

func initiatorReceiveRevealSecret(_ *Machine, ts *TransferState, ev Event) (StateLabel, []SideEffect, bool) {
	rv, ok := ev.Message.(*messages.RevealSecret)
	if !ok {
		return "", nil, false
	}
	from, ok := sender(ev)
	if !ok {
		return "", nil, false
	}
	mt := ts.Transfer
	if from != mt.To || !mt.Lock.Matches(rv.Secret) {
		return "", nil, false
	}

	return StateCompleted, []SideEffect{{
		Kind:           EffectSendSecretToProof,
		To:             mt.To,
		Secret:         rv.Secret,
		HashLock:       mt.Lock.HashLock,
		MsgID:          mt.MsgID,
		Amount:         mt.Lock.Amount,
		ChannelAddress: mt.ChannelAddress,
	}}, true
}
