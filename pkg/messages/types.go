package messages

import (
	"errors"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Kind is the wire discriminator of a message
type Kind string

const (
	KindProof            Kind = "Proof"
	KindDirectTransfer   Kind = "DirectTransfer"
	KindLockedTransfer   Kind = "LockedTransfer"
	KindMediatedTransfer Kind = "MediatedTransfer"
	KindRequestSecret    Kind = "RequestSecret"
	KindRevealSecret     Kind = "RevealSecret"
	KindSecretToProof    Kind = "SecretToProof"
	KindAck              Kind = "Ack"
)

// Kinds lists every kind understood by Decode
var Kinds = []Kind{
	KindProof,
	KindDirectTransfer,
	KindLockedTransfer,
	KindMediatedTransfer,
	KindRequestSecret,
	KindRevealSecret,
	KindSecretToProof,
	KindAck,
}

// IsValid reports whether k is a known kind
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

var (
	ErrUnsigned          = errors.New("message is not signed")
	ErrUnknownKind       = errors.New("unknown message kind")
	ErrMalformed         = errors.New("malformed message")
	ErrUnimplementedHash = errors.New("hash not implemented for message kind")
	ErrInvalidLock       = errors.New("invalid lock")
)

// Message is anything that can travel on the wire
type Message interface {
	Kind() Kind
}

// SignedMessage is a message authenticated by its sender's signature
type SignedMessage interface {
	Message
	Signature() *crypto.Signature
	SetSignature(sig *crypto.Signature)
}

// ProofMessage is a signed message that carries a balance proof header
type ProofMessage interface {
	SignedMessage
	Header() ProofHeader
}

// Signed holds the optional signature shared by all signed kinds
type Signed struct {
	Sig *crypto.Signature
}

// Signature returns the attached signature or nil
func (s *Signed) Signature() *crypto.Signature {
	return s.Sig
}

// SetSignature replaces the attached signature
func (s *Signed) SetSignature(sig *crypto.Signature) {
	s.Sig = sig
}

// IsSigned reports whether a signature is attached
func (s *Signed) IsSigned() bool {
	return s.Sig != nil
}

// ProofHeader is the channel balance state bound into every proof carrying message
type ProofHeader struct {
	Nonce             uint64
	TransferredAmount uint256.Int
	LocksRoot         common.Hash
	ChannelAddress    common.Address
}

// Header returns the balance proof header
func (h ProofHeader) Header() ProofHeader {
	return h
}

// Proof is a settleable snapshot of a channel's balance state
type Proof struct {
	Signed
	ProofHeader
	MessageHash common.Hash
}

func (*Proof) Kind() Kind { return KindProof }

// DirectTransfer moves funds without a lock
type DirectTransfer struct {
	Signed
	ProofHeader
	MsgID uint64
	To    common.Address
}

func (*DirectTransfer) Kind() Kind { return KindDirectTransfer }

// LockedTransfer moves funds conditionally on a hash lock
type LockedTransfer struct {
	Signed
	ProofHeader
	MsgID uint64
	To    common.Address
	Lock  Lock
}

func (*LockedTransfer) Kind() Kind { return KindLockedTransfer }

// MediatedTransfer is a locked transfer routed towards Target on behalf of Initiator
type MediatedTransfer struct {
	Signed
	ProofHeader
	MsgID     uint64
	To        common.Address
	Lock      Lock
	Target    common.Address
	Initiator common.Address
}

func (*MediatedTransfer) Kind() Kind { return KindMediatedTransfer }

// RequestSecret asks the initiator to reveal the secret behind HashLock.
// Expiration is intentionally absent since mediators may change it.
type RequestSecret struct {
	Signed
	MsgID    uint64
	To       common.Address
	HashLock common.Hash
	Amount   uint256.Int
}

func (*RequestSecret) Kind() Kind { return KindRequestSecret }

// RevealSecret discloses a lock secret
type RevealSecret struct {
	Signed
	To     common.Address
	Secret common.Hash
}

func (*RevealSecret) Kind() Kind { return KindRevealSecret }

// HashLock is derived from the secret, never stored
func (r *RevealSecret) HashLock() common.Hash {
	return crypto.Hash(r.Secret.Bytes())
}

// SecretToProof unlocks a lock into the transferred amount
type SecretToProof struct {
	Signed
	ProofHeader
	MsgID  uint64
	To     common.Address
	Secret common.Hash
}

func (*SecretToProof) Kind() Kind { return KindSecretToProof }

// HashLock is derived from the secret, never stored
func (s *SecretToProof) HashLock() common.Hash {
	return crypto.Hash(s.Secret.Bytes())
}

// Ack acknowledges delivery of the message identified by MessageHash. It is not signed.
type Ack struct {
	To          common.Address
	MessageHash common.Hash
	MsgID       uint64
}

func (*Ack) Kind() Kind { return KindAck }

var (
	_ ProofMessage  = (*Proof)(nil)
	_ ProofMessage  = (*DirectTransfer)(nil)
	_ ProofMessage  = (*LockedTransfer)(nil)
	_ ProofMessage  = (*MediatedTransfer)(nil)
	_ ProofMessage  = (*SecretToProof)(nil)
	_ SignedMessage = (*RequestSecret)(nil)
	_ SignedMessage = (*RevealSecret)(nil)
	_ Message       = (*Ack)(nil)
)
