package transfer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle_NilRecord(t *testing.T) {
	m := NewInitiatorMachine(testRevealTimeout)
	_, err := m.Handle(nil, Event{Kind: EventStart})
	assert.ErrorIs(t, err, ErrNilTransfer)

	_, err = m.Handle(&TransferState{Role: RoleInitiator}, Event{Kind: EventStart})
	assert.ErrorIs(t, err, ErrNilTransfer)
}

func TestHandle_RoleMismatch(t *testing.T) {
	f := newFixture(t)
	_, err := NewTargetMachine(testRevealTimeout).Handle(f.initiatorState(), Event{Kind: EventStart})
	assert.ErrorIs(t, err, ErrRoleMismatch)
}

func TestHandle_UnknownEventIgnored(t *testing.T) {
	f := newFixture(t)
	m := NewInitiatorMachine(testRevealTimeout)
	ts := f.initiatorState()
	mustHandle(t, m, ts, Event{Kind: EventStart})

	out := mustHandle(t, m, ts, Event{Kind: EventKind("bogus")})
	assert.False(t, out.Transitioned())
	assert.Equal(t, StateAwaitRequestSecret, ts.State)
}

func TestStateLabel_IsTerminal(t *testing.T) {
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateExpired.IsTerminal())
	assert.False(t, StateInit.IsTerminal())
	assert.False(t, StateAwaitRequestSecret.IsTerminal())
	assert.False(t, StateAwaitRevealSecret.IsTerminal())
	assert.False(t, StateAwaitSecretToProof.IsTerminal())
}

// One machine drives many independent records concurrently.
func TestMachine_SharedAcrossRecords(t *testing.T) {
	m := NewTargetMachine(testRevealTimeout)

	const n = 32
	fixtures := make([]*fixture, n)
	states := make([]*TransferState, n)
	for i := 0; i < n; i++ {
		fixtures[i] = newFixture(t)
		states[i] = NewTargetState(fmt.Sprintf("transfer-%d", i), fixtures[i].transfer, fixtures[i].initiator.address)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			block := uint64(100)
			if i%2 == 1 {
				block = 995
			}
			_, err := m.Handle(states[i], Event{Kind: EventStart, BlockNumber: block})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i, ts := range states {
		if i%2 == 1 {
			require.Equal(t, StateExpired, ts.State)
		} else {
			require.Equal(t, StateAwaitRevealSecret, ts.State)
		}
	}
}
