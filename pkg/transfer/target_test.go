package transfer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarget_HappyPath(t *testing.T) {
	f := newFixture(t)
	m := NewTargetMachine(testRevealTimeout)
	ts := f.targetState()

	out := mustHandle(t, m, ts, Event{Kind: EventStart, BlockNumber: 100})
	assert.Equal(t, StateAwaitRevealSecret, ts.State)
	require.Len(t, out.Effects, 1)
	rs := out.Effects[0]
	assert.Equal(t, EffectSendRequestSecret, rs.Kind)
	assert.Equal(t, f.initiator.address, rs.To)
	assert.Equal(t, f.transfer.Lock.HashLock, rs.HashLock)
	assert.Equal(t, f.transfer.MsgID, rs.MsgID)
	assert.Equal(t, f.transfer.Lock.Amount, rs.Amount)

	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.target.address, f.initiator), BlockNumber: 101})
	assert.Equal(t, StateAwaitSecretToProof, ts.State)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, EffectSendRevealSecret, out.Effects[0].Kind)
	assert.Equal(t, f.initiator.address, out.Effects[0].To)
	require.NotNil(t, ts.Secret)
	assert.Equal(t, f.secret, *ts.Secret)
	require.NotNil(t, ts.RevealTo)
	assert.Equal(t, f.initiator.address, *ts.RevealTo)

	stp := f.secretToProof(t, f.secret, f.initiator)
	out = mustHandle(t, m, ts, Event{Kind: EventReceiveSecretToProof, Message: stp, BlockNumber: 102})
	assert.Equal(t, StateCompleted, ts.State)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, EffectReceiveSecretToProof, out.Effects[0].Kind)
	assert.Same(t, stp, out.Effects[0].Proof)
}

func TestTarget_ExpiredAtInit(t *testing.T) {
	cases := map[string]uint64{
		"exactly at margin": 1000 - testRevealTimeout,
		"past margin":       995,
		"past expiration":   2000,
	}
	for name, block := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			ts := f.targetState()
			out := mustHandle(t, NewTargetMachine(testRevealTimeout), ts, Event{Kind: EventStart, BlockNumber: block})
			assert.Equal(t, StateExpired, ts.State)
			assert.True(t, out.Transitioned())
			assert.Empty(t, out.Effects)
		})
	}

	f := newFixture(t)
	ts := f.targetState()
	mustHandle(t, NewTargetMachine(testRevealTimeout), ts, Event{Kind: EventStart, BlockNumber: 1000 - testRevealTimeout - 1})
	assert.Equal(t, StateAwaitRevealSecret, ts.State)
}

func TestTarget_RevealSecretMismatches(t *testing.T) {
	f := newFixture(t)
	m := NewTargetMachine(testRevealTimeout)
	ts := f.targetState()
	mustHandle(t, m, ts, Event{Kind: EventStart, BlockNumber: 100})

	wrongSecret := f.revealSecret(t, common.HexToHash("0x0bad"), f.target.address, f.initiator)
	out := mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: wrongSecret})
	assert.False(t, out.Transitioned())

	wrongSender := f.revealSecret(t, f.secret, f.target.address, f.hop)
	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: wrongSender})
	assert.False(t, out.Transitioned())

	unsigned := f.revealSecret(t, f.secret, f.target.address, f.initiator)
	unsigned.SetSignature(nil)
	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: unsigned})
	assert.False(t, out.Transitioned())

	assert.Equal(t, StateAwaitRevealSecret, ts.State)
	assert.Nil(t, ts.Secret)
	assert.Nil(t, ts.RevealTo)
}

func TestTarget_ExpiresWhileAwaitingReveal(t *testing.T) {
	f := newFixture(t)
	m := NewTargetMachine(testRevealTimeout)
	ts := f.targetState()
	mustHandle(t, m, ts, Event{Kind: EventStart, BlockNumber: 100})

	out := mustHandle(t, m, ts, Event{Kind: EventHandleBlock, BlockNumber: 989})
	assert.False(t, out.Transitioned())

	out = mustHandle(t, m, ts, Event{Kind: EventHandleBlock, BlockNumber: 990})
	assert.Equal(t, StateExpired, out.To)
	assert.Empty(t, out.Effects)

	// late reveal is ignored
	out = mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.target.address, f.initiator)})
	assert.False(t, out.Transitioned())
}

func TestTarget_SecretToProofMismatches(t *testing.T) {
	f := newFixture(t)
	m := NewTargetMachine(testRevealTimeout)
	ts := f.targetState()
	mustHandle(t, m, ts, Event{Kind: EventStart, BlockNumber: 100})
	mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.target.address, f.initiator)})

	out := mustHandle(t, m, ts, Event{Kind: EventReceiveSecretToProof, Message: f.secretToProof(t, f.secret, f.hop)})
	assert.False(t, out.Transitioned())

	out = mustHandle(t, m, ts, Event{Kind: EventReceiveSecretToProof, Message: f.secretToProof(t, common.HexToHash("0x0bad"), f.initiator)})
	assert.False(t, out.Transitioned())

	assert.Equal(t, StateAwaitSecretToProof, ts.State)
}

func TestTarget_ClosesChannelWhenProofNeverArrives(t *testing.T) {
	f := newFixture(t)
	m := NewTargetMachine(testRevealTimeout)
	ts := f.targetState()
	mustHandle(t, m, ts, Event{Kind: EventStart, BlockNumber: 100})
	mustHandle(t, m, ts, Event{Kind: EventReceiveRevealSecret, Message: f.revealSecret(t, f.secret, f.target.address, f.initiator)})

	out := mustHandle(t, m, ts, Event{Kind: EventHandleBlock, BlockNumber: 500})
	assert.False(t, out.Transitioned())

	out = mustHandle(t, m, ts, Event{Kind: EventHandleBlock, BlockNumber: 995})
	assert.Equal(t, StateCompleted, out.To)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, EffectCloseChannel, out.Effects[0].Kind)
	assert.Equal(t, f.transfer.ChannelAddress, out.Effects[0].ChannelAddress)
	assert.Equal(t, f.secret, out.Effects[0].Secret)
}
