package transfer

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// Role is the part a node plays in a mediated transfer
type Role string

const (
	RoleInitiator Role = "initiator"
	RoleTarget    Role = "target"
)

// StateLabel names a state of the transfer lifecycle
type StateLabel string

const (
	StateInit               StateLabel = "init"
	StateAwaitRequestSecret StateLabel = "awaitRequestSecret"
	StateAwaitRevealSecret  StateLabel = "awaitRevealSecret"
	StateAwaitSecretToProof StateLabel = "awaitSecretToProof"
	StateCompleted          StateLabel = "completedTransfer"
	StateFailed             StateLabel = "failedTransfer"
	StateExpired            StateLabel = "expiredTransfer"
)

// IsTerminal reports whether no further events are accepted in s
func (s StateLabel) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateExpired
}

// EventKind identifies what drove a call to Handle
type EventKind string

const (
	EventStart                EventKind = "start"
	EventReceiveRequestSecret EventKind = "receiveRequestSecret"
	EventReceiveRevealSecret  EventKind = "receiveRevealSecret"
	EventReceiveSecretToProof EventKind = "receiveSecretToProof"
	EventHandleBlock          EventKind = "handleBlock"
	EventCancelTransfer       EventKind = "cancelTransfer"
)

// Event is one input to the machine. BlockNumber is the current block height as seen by the caller.
type Event struct {
	Kind        EventKind
	Message     messages.SignedMessage
	BlockNumber uint64
}

// EffectKind names a side effect the caller must carry out
type EffectKind string

const (
	EffectSendMediatedTransfer EffectKind = "sendMediatedTransfer"
	EffectSendRequestSecret    EffectKind = "sendRequestSecret"
	EffectSendRevealSecret     EffectKind = "sendRevealSecret"
	EffectSendSecretToProof    EffectKind = "sendSecretToProof"
	EffectReceiveSecretToProof EffectKind = "receiveSecretToProof"
	EffectCloseChannel         EffectKind = "closeChannel"
)

// SideEffect is an intent emitted by a transition. The machine never signs or sends anything itself.
type SideEffect struct {
	Kind           EffectKind
	To             common.Address
	Transfer       *messages.MediatedTransfer
	Secret         common.Hash
	HashLock       common.Hash
	MsgID          uint64
	Amount         uint256.Int
	Proof          *messages.SecretToProof
	ChannelAddress common.Address
}

// TransferState is the per-transfer record the machine operates on.
// For an initiator From is the node itself and Secret is known from creation;
// for a target From is the peer that sent the transfer and Secret/RevealTo are
// filled when the secret is revealed.
type TransferState struct {
	ID       string
	Role     Role
	State    StateLabel
	Transfer *messages.MediatedTransfer
	From     common.Address
	Secret   *common.Hash
	RevealTo *common.Address
}

// NewInitiatorState creates the record for a transfer this node starts
func NewInitiatorState(id string, mt *messages.MediatedTransfer, self common.Address, secret common.Hash) *TransferState {
	return &TransferState{
		ID:       id,
		Role:     RoleInitiator,
		State:    StateInit,
		Transfer: mt,
		From:     self,
		Secret:   &secret,
	}
}

// NewTargetState creates the record for a transfer received from from
func NewTargetState(id string, mt *messages.MediatedTransfer, from common.Address) *TransferState {
	return &TransferState{
		ID:       id,
		Role:     RoleTarget,
		State:    StateInit,
		Transfer: mt,
		From:     from,
	}
}

// HashLock is the hash lock of the transfer's lock
func (ts *TransferState) HashLock() common.Hash {
	return ts.Transfer.Lock.HashLock
}

// IsTerminal reports whether the transfer has finished
func (ts *TransferState) IsTerminal() bool {
	return ts.State.IsTerminal()
}

// Outcome reports what a call to Handle did
type Outcome struct {
	From    StateLabel
	To      StateLabel
	Effects []SideEffect
}

// Transitioned reports whether the event was accepted
func (o Outcome) Transitioned() bool {
	return o.From != o.To
}
