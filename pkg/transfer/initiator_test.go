package transfer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
)

func TestInitiator_EndToEndScenario(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)
	ts := f.initiatorState()

	out := mustHandle(t, m, ts, Event{Kind: EventStart, BlockNumber: 100})
	require.True(t, out.Transitioned())
	assert.Equal(t, StateAwaitRequestSecret, ts.State)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, EffectSendMediatedTransfer, out.Effects[0].Kind)
	assert.Equal(t, f.hop.address, out.Effects[0].To)
	assert.Same(t, f.transfer, out.Effects[0].Transfer)

	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRequestSecret, Message: f.requestSecret(t, f.target), BlockNumber: 101})
	require.True(t, out.Transitioned())
	assert.Equal(t, StateAwaitRevealSecret, ts.State)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, EffectSendRevealSecret, out.Effects[0].Kind)
	assert.Equal(t, f.target.address, out.Effects[0].To)
	assert.Equal(t, f.secret, out.Effects[0].Secret)

	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.initiator.address, f.hop), BlockNumber: 102})
	require.True(t, out.Transitioned())
	assert.Equal(t, StateCompleted, ts.State)
	require.Len(t, out.Effects, 1)
	effect := out.Effects[0]
	assert.Equal(t, EffectSendSecretToProof, effect.Kind)
	assert.Equal(t, f.hop.address, effect.To)
	assert.Equal(t, f.secret, effect.Secret)
	assert.Equal(t, f.transfer.ChannelAddress, effect.ChannelAddress)
}

func TestInitiator_StartOnAnyEvent(t *testing.T) {
	for _, kind := range []EventKind{EventStart, EventHandleBlock, EventReceiveRevealSecret} {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t)
			ts := f.initiatorState()
			out := mustHandle(t, NewInitiatorMachine(testRevealTimeout), ts, Event{Kind: kind})
			assert.Equal(t, StateAwaitRequestSecret, out.To)
			require.Len(t, out.Effects, 1)
			assert.Equal(t, EffectSendMediatedTransfer, out.Effects[0].Kind)
		})
	}
}

func TestInitiator_RequestSecretIdempotent(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)
	ts := f.initiatorState()
	mustHandle(t, m, ts, Event{Kind: EventStart})

	rs := f.requestSecret(t, f.target)
	out := mustHandle(t, m, ts, Event{Kind: EventReceiveRequestSecret, Message: rs})
	require.True(t, out.Transitioned())
	require.Len(t, out.Effects, 1)

	again := mustHandle(t, m, ts, Event{Kind: EventReceiveRequestSecret, Message: rs})
	assert.False(t, again.Transitioned())
	assert.Empty(t, again.Effects)
	assert.Equal(t, StateAwaitRevealSecret, ts.State)
}

func TestInitiator_RequestSecretMismatches(t *testing.T) {
	cases := map[string]func(f *fixture, t *testing.T) Event{
		"wrong sender": func(f *fixture, t *testing.T) Event {
			return Event{Kind: EventReceiveRequestSecret, Message: f.requestSecret(t, f.hop)}
		},
		"wrong hash lock": func(f *fixture, t *testing.T) Event {
			rs := f.requestSecret(t, f.target)
			rs.HashLock = crypto.Hash([]byte("other"))
			return Event{Kind: EventReceiveRequestSecret, Message: signed(t, rs, f.target)}
		},
		"wrong msgID": func(f *fixture, t *testing.T) Event {
			rs := f.requestSecret(t, f.target)
			rs.MsgID = 2
			return Event{Kind: EventReceiveRequestSecret, Message: signed(t, rs, f.target)}
		},
		"unsigned": func(f *fixture, t *testing.T) Event {
			rs := f.requestSecret(t, f.target)
			rs.SetSignature(nil)
			return Event{Kind: EventReceiveRequestSecret, Message: rs}
		},
		"tampered after signing": func(f *fixture, t *testing.T) Event {
			rs := f.requestSecret(t, f.target)
			rs.Amount.SetUint64(1)
			return Event{Kind: EventReceiveRequestSecret, Message: rs}
		},
		"wrong message type": func(f *fixture, t *testing.T) Event {
			return Event{Kind: EventReceiveRequestSecret, Message: f.revealSecret(t, f.secret, f.initiator.address, f.target)}
		},
		"reveal before request": func(f *fixture, t *testing.T) Event {
			return Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.initiator.address, f.hop)}
		},
	}

	for name, build := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			m := NewInitiatorMachine(testRevealTimeout)
			ts := f.initiatorState()
			mustHandle(t, m, ts, Event{Kind: EventStart})

			out := mustHandle(t, m, ts, build(f, t))
			assert.False(t, out.Transitioned())
			assert.Empty(t, out.Effects)
			assert.Equal(t, StateAwaitRequestSecret, ts.State)
		})
	}
}

func TestInitiator_RevealSecretRequiresMatchingSecret(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)
	ts := f.initiatorState()
	mustHandle(t, m, ts, Event{Kind: EventStart})
	mustHandle(t, m, ts, Event{Kind: EventReceiveRequestSecret, Message: f.requestSecret(t, f.target)})

	wrongSecret := common.HexToHash("0x0bad")
	out := mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, wrongSecret, f.initiator.address, f.hop)})
	assert.False(t, out.Transitioned())
	assert.Equal(t, StateAwaitRevealSecret, ts.State)

	// the reveal must come from the next hop
	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.initiator.address, f.target)})
	assert.False(t, out.Transitioned())
	assert.Equal(t, StateAwaitRevealSecret, ts.State)
}

func TestInitiator_Cancel(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)

	ts := f.initiatorState()
	out := mustHandle(t, m, ts, Event{Kind: EventCancelTransfer})
	assert.Equal(t, StateFailed, out.To)
	assert.Empty(t, out.Effects)

	ts = f.initiatorState()
	mustHandle(t, m, ts, Event{Kind: EventStart})
	out = mustHandle(t, m, ts, Event{Kind: EventCancelTransfer})
	assert.Equal(t, StateFailed, out.To)

	// once the secret is out the transfer can no longer be cancelled
	ts = f.initiatorState()
	mustHandle(t, m, ts, Event{Kind: EventStart})
	mustHandle(t, m, ts, Event{Kind: EventReceiveRequestSecret, Message: f.requestSecret(t, f.target)})
	out = mustHandle(t, m, ts, Event{Kind: EventCancelTransfer})
	assert.False(t, out.Transitioned())
}

func TestInitiator_ExpiresWhileAwaitingRequest(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)
	ts := f.initiatorState()
	mustHandle(t, m, ts, Event{Kind: EventStart})

	out := mustHandle(t, m, ts, Event{Kind: EventHandleBlock, BlockNumber: 999})
	assert.False(t, out.Transitioned())

	out = mustHandle(t, m, ts, Event{Kind: EventHandleBlock, BlockNumber: 1000})
	assert.Equal(t, StateExpired, out.To)
	assert.Empty(t, out.Effects)
}

func TestInitiator_TerminalStatesIgnoreEvents(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)
	for _, label := range []StateLabel{StateCompleted, StateFailed, StateExpired} {
		ts := f.initiatorState()
		ts.State = label
		for _, kind := range []EventKind{EventStart, EventCancelTransfer, EventHandleBlock, EventReceiveRequestSecret} {
			out := mustHandle(t, m, ts, Event{Kind: kind, Message: f.requestSecret(t, f.target), BlockNumber: 5000})
			assert.False(t, out.Transitioned())
			assert.Equal(t, label, ts.State)
		}
	}
}
