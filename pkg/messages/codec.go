package messages

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// wireMessage is the JSON envelope for every kind. Fields not used by a kind are omitted.
type wireMessage struct {
	Kind              Kind            `json:"kind"`
	Nonce             *uint64         `json:"nonce,omitempty"`
	TransferredAmount string          `json:"transferredAmount,omitempty"`
	LocksRoot         *common.Hash    `json:"locksRoot,omitempty"`
	ChannelAddress    *common.Address `json:"channelAddress,omitempty"`
	MessageHash       *common.Hash    `json:"messageHash,omitempty"`
	MsgID             *uint64         `json:"msgID,omitempty"`
	To                *common.Address `json:"to,omitempty"`
	Lock              *wireLock       `json:"lock,omitempty"`
	Target            *common.Address `json:"target,omitempty"`
	Initiator         *common.Address `json:"initiator,omitempty"`
	HashLock          *common.Hash    `json:"hashLock,omitempty"`
	Amount            string          `json:"amount,omitempty"`
	Secret            *common.Hash    `json:"secret,omitempty"`
	Signature         hexutil.Bytes   `json:"signature,omitempty"`
}

type wireLock struct {
	Amount     string       `json:"amount"`
	Expiration *uint64      `json:"expiration"`
	HashLock   *common.Hash `json:"hashLock"`
}

type kindPeek struct {
	Kind *Kind `json:"kind"`
}

// Encode serializes a message to its tagged JSON wire form
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot encode nil message")
	}
	w := wireMessage{Kind: m.Kind()}

	if pm, ok := m.(ProofMessage); ok {
		w.setHeader(pm.Header())
	}
	if sm, ok := m.(SignedMessage); ok {
		if sig := sm.Signature(); sig != nil {
			w.Signature = sig.Bytes()
		}
	}

	switch msg := m.(type) {
	case *Proof:
		w.MessageHash = ptr(msg.MessageHash)
	case *DirectTransfer:
		w.MsgID = ptr(msg.MsgID)
		w.To = ptr(msg.To)
	case *LockedTransfer:
		w.MsgID = ptr(msg.MsgID)
		w.To = ptr(msg.To)
		w.Lock = newWireLock(msg.Lock)
	case *MediatedTransfer:
		w.MsgID = ptr(msg.MsgID)
		w.To = ptr(msg.To)
		w.Lock = newWireLock(msg.Lock)
		w.Target = ptr(msg.Target)
		w.Initiator = ptr(msg.Initiator)
	case *RequestSecret:
		w.MsgID = ptr(msg.MsgID)
		w.To = ptr(msg.To)
		w.HashLock = ptr(msg.HashLock)
		w.Amount = msg.Amount.Dec()
	case *RevealSecret:
		w.To = ptr(msg.To)
		w.Secret = ptr(msg.Secret)
	case *SecretToProof:
		w.MsgID = ptr(msg.MsgID)
		w.To = ptr(msg.To)
		w.Secret = ptr(msg.Secret)
	case *Ack:
		w.To = ptr(msg.To)
		w.MessageHash = ptr(msg.MessageHash)
		w.MsgID = ptr(msg.MsgID)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	return json.Marshal(w)
}

// Decode reconstructs the concrete message named by the kind discriminator
func Decode(data []byte) (Message, error) {
	var peek kindPeek
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if peek.Kind == nil {
		return nil, fmt.Errorf("%w: missing kind", ErrUnknownKind)
	}
	if !peek.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, *peek.Kind)
	}

	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	d := &decoder{w: &w}
	var m Message
	switch w.Kind {
	case KindProof:
		m = &Proof{
			Signed:      d.signed(),
			ProofHeader: d.header(),
			MessageHash: d.hash("messageHash", w.MessageHash),
		}
	case KindDirectTransfer:
		m = &DirectTransfer{
			Signed:      d.signed(),
			ProofHeader: d.header(),
			MsgID:       d.number("msgID", w.MsgID),
			To:          d.address("to", w.To),
		}
	case KindLockedTransfer:
		m = &LockedTransfer{
			Signed:      d.signed(),
			ProofHeader: d.header(),
			MsgID:       d.number("msgID", w.MsgID),
			To:          d.address("to", w.To),
			Lock:        d.lock(),
		}
	case KindMediatedTransfer:
		m = &MediatedTransfer{
			Signed:      d.signed(),
			ProofHeader: d.header(),
			MsgID:       d.number("msgID", w.MsgID),
			To:          d.address("to", w.To),
			Lock:        d.lock(),
			Target:      d.address("target", w.Target),
			Initiator:   d.address("initiator", w.Initiator),
		}
	case KindRequestSecret:
		m = &RequestSecret{
			Signed:   d.signed(),
			MsgID:    d.number("msgID", w.MsgID),
			To:       d.address("to", w.To),
			HashLock: d.hash("hashLock", w.HashLock),
			Amount:   d.amount("amount", w.Amount),
		}
	case KindRevealSecret:
		m = &RevealSecret{
			Signed: d.signed(),
			To:     d.address("to", w.To),
			Secret: d.hash("secret", w.Secret),
		}
	case KindSecretToProof:
		m = &SecretToProof{
			Signed:      d.signed(),
			ProofHeader: d.header(),
			MsgID:       d.number("msgID", w.MsgID),
			To:          d.address("to", w.To),
			Secret:      d.hash("secret", w.Secret),
		}
	case KindAck:
		m = &Ack{
			To:          d.address("to", w.To),
			MessageHash: d.hash("messageHash", w.MessageHash),
			MsgID:       d.number("msgID", w.MsgID),
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return m, nil
}

// DecodeSigned decodes data and requires the result to be a signed kind
func DecodeSigned(data []byte) (SignedMessage, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sm, ok := m.(SignedMessage)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a signed kind", ErrMalformed, m.Kind())
	}
	return sm, nil
}

func (w *wireMessage) setHeader(h ProofHeader) {
	w.Nonce = ptr(h.Nonce)
	w.TransferredAmount = h.TransferredAmount.Dec()
	w.LocksRoot = ptr(h.LocksRoot)
	w.ChannelAddress = ptr(h.ChannelAddress)
}

func newWireLock(l Lock) *wireLock {
	return &wireLock{
		Amount:     l.Amount.Dec(),
		Expiration: ptr(l.Expiration),
		HashLock:   ptr(l.HashLock),
	}
}

func ptr[T any](v T) *T {
	return &v
}

// decoder collects the first missing or invalid field while a message is assembled
type decoder struct {
	w   *wireMessage
	err error
}

func (d *decoder) fail(format string, args ...interface{}) {
	if d.err == nil {
		d.err = fmt.Errorf("%w: %s: %s", ErrMalformed, d.w.Kind, fmt.Sprintf(format, args...))
	}
}

func (d *decoder) signed() Signed {
	if len(d.w.Signature) == 0 {
		return Signed{}
	}
	sig, err := crypto.SignatureFromBytes(d.w.Signature)
	if err != nil {
		d.fail("signature: %v", err)
		return Signed{}
	}
	return Signed{Sig: &sig}
}

func (d *decoder) header() ProofHeader {
	return ProofHeader{
		Nonce:             d.number("nonce", d.w.Nonce),
		TransferredAmount: d.amount("transferredAmount", d.w.TransferredAmount),
		LocksRoot:         d.hash("locksRoot", d.w.LocksRoot),
		ChannelAddress:    d.address("channelAddress", d.w.ChannelAddress),
	}
}

func (d *decoder) lock() Lock {
	if d.w.Lock == nil {
		d.fail("missing lock")
		return Lock{}
	}
	return Lock{
		Amount:     d.amount("lock.amount", d.w.Lock.Amount),
		Expiration: d.number("lock.expiration", d.w.Lock.Expiration),
		HashLock:   d.hash("lock.hashLock", d.w.Lock.HashLock),
	}
}

func (d *decoder) number(name string, v *uint64) uint64 {
	if v == nil {
		d.fail("missing %s", name)
		return 0
	}
	return *v
}

func (d *decoder) address(name string, v *common.Address) common.Address {
	if v == nil {
		d.fail("missing %s", name)
		return common.Address{}
	}
	return *v
}

func (d *decoder) hash(name string, v *common.Hash) common.Hash {
	if v == nil {
		d.fail("missing %s", name)
		return common.Hash{}
	}
	return *v
}

func (d *decoder) amount(name string, v string) uint256.Int {
	if v == "" {
		d.fail("missing %s", name)
		return uint256.Int{}
	}
	amount, err := uint256.FromDecimal(v)
	if err != nil {
		d.fail("%s: %v", name, err)
		return uint256.Int{}
	}
	return *amount
}
