package messages

import (
	"fmt"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// SigningHash is the digest a signature over m covers. Proof carrying messages sign the
// balance proof pre-image with their own Hash as messageHash, so the signature still
// verifies on the Proof returned by ToProof and on-chain.
func SigningHash(m SignedMessage) (common.Hash, error) {
	kindHash, err := Hash(m)
	if err != nil {
		return common.Hash{}, err
	}
	if _, isProof := m.(*Proof); isProof {
		return kindHash, nil
	}
	if pm, ok := m.(ProofMessage); ok {
		return proofDigest(pm.Header(), kindHash), nil
	}
	return kindHash, nil
}

// Hash computes the kind specific digest that identifies m
func Hash(m SignedMessage) (common.Hash, error) {
	switch msg := m.(type) {
	case *Proof:
		return proofDigest(msg.ProofHeader, msg.MessageHash), nil
	case *DirectTransfer:
		return crypto.Hash(directTransferPreimage(msg.MsgID, msg.ProofHeader, msg.To)...), nil
	case *LockedTransfer:
		lockHash := msg.Lock.Hash()
		parts := directTransferPreimage(msg.MsgID, msg.ProofHeader, msg.To)
		parts = append(parts, lockHash.Bytes())
		return crypto.Hash(parts...), nil
	case *MediatedTransfer:
		lockHash := msg.Lock.Hash()
		parts := directTransferPreimage(msg.MsgID, msg.ProofHeader, msg.To)
		parts = append(parts,
			lockHash.Bytes(),
			msg.Target.Bytes(),
			msg.Initiator.Bytes(),
			lockHash.Bytes(),
		)
		return crypto.Hash(parts...), nil
	case *RequestSecret:
		return crypto.Hash(
			packUint64(msg.MsgID),
			msg.To.Bytes(),
			msg.HashLock.Bytes(),
			packUint256(&msg.Amount),
		), nil
	case *RevealSecret:
		return crypto.Hash(
			msg.Secret.Bytes(),
			msg.To.Bytes(),
		), nil
	case *SecretToProof:
		return crypto.Hash(
			packUint64(msg.MsgID),
			packUint64(msg.Nonce),
			packUint256(&msg.TransferredAmount),
			msg.ChannelAddress.Bytes(),
			msg.LocksRoot.Bytes(),
			msg.To.Bytes(),
			msg.Secret.Bytes(),
		), nil
	default:
		return common.Hash{}, fmt.Errorf("%w: %T", ErrUnimplementedHash, m)
	}
}

func proofDigest(h ProofHeader, messageHash common.Hash) common.Hash {
	return crypto.Hash(
		packUint64(h.Nonce),
		packUint256(&h.TransferredAmount),
		h.ChannelAddress.Bytes(),
		h.LocksRoot.Bytes(),
		messageHash.Bytes(),
	)
}

func directTransferPreimage(msgID uint64, h ProofHeader, to common.Address) [][]byte {
	return [][]byte{
		packUint64(msgID),
		packUint64(h.Nonce),
		packUint256(&h.TransferredAmount),
		h.ChannelAddress.Bytes(),
		h.LocksRoot.Bytes(),
		to.Bytes(),
	}
}

func packUint256(v *uint256.Int) []byte {
	b := v.Bytes32()
	return b[:]
}

func packUint64(v uint64) []byte {
	return packUint256(new(uint256.Int).SetUint64(v))
}
