package transfer

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

var (
	ErrNilTransfer  = errors.New("transfer state is nil")
	ErrRoleMismatch = errors.New("transfer role does not match machine")
)

// handler returns the next state and its effects, or ok=false to leave the record untouched.
// A handler must only mutate ts when it returns ok.
type handler func(m *Machine, ts *TransferState, ev Event) (next StateLabel, effects []SideEffect, ok bool)

type transitionKey struct {
	state StateLabel
	event EventKind
}

// Machine is a read-only transition table shared by every transfer of one role.
// It holds no per-transfer data so one Machine serves any number of records
// concurrently, provided calls for the same record are serialized by the caller.
type Machine struct {
	role          Role
	revealTimeout uint64
	transitions   map[transitionKey]handler
	// wildcard handles any event for a state without a specific transition
	wildcard map[StateLabel]handler
}

// Role returns the role this machine drives
func (m *Machine) Role() Role {
	return m.role
}

// RevealTimeout returns the safety margin in blocks
func (m *Machine) RevealTimeout() uint64 {
	return m.revealTimeout
}

// Handle feeds ev into ts. Events that do not match the record are ignored
// and yield an Outcome with From == To and no effects.
func (m *Machine) Handle(ts *TransferState, ev Event) (Outcome, error) {
	if ts == nil || ts.Transfer == nil {
		return Outcome{}, ErrNilTransfer
	}
	if ts.Role != m.role {
		return Outcome{}, fmt.Errorf("%w: record is %s, machine is %s", ErrRoleMismatch, ts.Role, m.role)
	}

	current := ts.State
	outcome := Outcome{From: current, To: current}
	if current.IsTerminal() {
		return outcome, nil
	}

	h, ok := m.transitions[transitionKey{state: current, event: ev.Kind}]
	if !ok {
		h, ok = m.wildcard[current]
	}
	if !ok {
		return outcome, nil
	}

	next, effects, accepted := h(m, ts, ev)
	if !accepted {
		return outcome, nil
	}
	ts.State = next
	outcome.To = next
	outcome.Effects = effects
	return outcome, nil
}

// isExpired reports whether the lock is too close to expiry to act on safely
func (m *Machine) isExpired(ts *TransferState, currentBlock uint64) bool {
	return ts.Transfer.Lock.Expiration <= currentBlock+m.revealTimeout
}

// sender recovers the signer of the event's message. Unsigned or malformed messages never match.
func sender(ev Event) (common.Address, bool) {
	if ev.Message == nil {
		return common.Address{}, false
	}
	addr, err := messages.Sender(ev.Message)
	if err != nil {
		return common.Address{}, false
	}
	return addr, true
}
