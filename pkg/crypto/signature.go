package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an r || s || v signature
const SignatureLength = 65

var (
	// ErrRecovery is returned when an address cannot be recovered from a signature
	ErrRecovery = errors.New("signature recovery failed")
	// ErrInvalidSignatureLength is returned when decoding a signature of the wrong size
	ErrInvalidSignatureLength = errors.New("invalid signature length")
	// ErrNilPrivateKey is returned when signing without a key
	ErrNilPrivateKey = errors.New("private key is nil")
)

// Signature is a recoverable secp256k1 signature.
// V holds the recovery id (0 or 1).
type Signature struct {
	R [32]byte
	S [32]byte
	V byte
}

// Bytes returns the 65 byte r || s || v form expected by ecrecover helpers
func (s Signature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	copy(out[0:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

// Equal reports whether both signatures are byte-identical
func (s Signature) Equal(other Signature) bool {
	return s == other
}

// SignatureFromBytes parses a 65 byte signature.
// Ethereum style recovery bytes (27/28) are normalised to 0/1.
func SignatureFromBytes(b []byte) (Signature, error) {
	if len(b) != SignatureLength {
		return Signature{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignatureLength, SignatureLength, len(b))
	}
	var sig Signature
	copy(sig.R[:], b[0:32])
	copy(sig.S[:], b[32:64])
	sig.V = b[64]
	if sig.V >= 27 {
		sig.V -= 27
	}
	return sig, nil
}

// Sign signs a 32 byte digest with the given secp256k1 key
func Sign(digest common.Hash, key *ecdsa.PrivateKey) (Signature, error) {
	if key == nil {
		return Signature{}, ErrNilPrivateKey
	}
	raw, err := ethcrypto.Sign(digest.Bytes(), key)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to sign digest: %w", err)
	}
	return SignatureFromBytes(raw)
}

// RecoverAddress recovers the signer's address from a digest and signature
func RecoverAddress(digest common.Hash, sig Signature) (common.Address, error) {
	v := sig.V
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("%w: invalid recovery id %d", ErrRecovery, sig.V)
	}

	raw := sig.Bytes()
	raw[64] = v

	pub, err := ethcrypto.SigToPub(digest.Bytes(), raw)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrRecovery, err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// AddressFromKey derives the chain address controlled by a private key
func AddressFromKey(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}
