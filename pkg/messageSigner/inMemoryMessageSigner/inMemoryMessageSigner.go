package inMemoryMessageSigner

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messageSigner"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

type InMemoryMessageSigner struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// NewInMemoryMessageSignerFromHex loads a secp256k1 key from a hex string, with or without 0x
func NewInMemoryMessageSignerFromHex(privateKeyHex string, logger *zap.Logger) (*InMemoryMessageSigner, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("error loading private key: %w", err)
	}
	return NewInMemoryMessageSigner(key, logger)
}

func NewInMemoryMessageSigner(key *ecdsa.PrivateKey, logger *zap.Logger) (*InMemoryMessageSigner, error) {
	if key == nil {
		return nil, crypto.ErrNilPrivateKey
	}
	return &InMemoryMessageSigner{
		logger:     logger,
		privateKey: key,
		address:    crypto.AddressFromKey(key),
	}, nil
}

func (s *InMemoryMessageSigner) Address() common.Address {
	return s.address
}

func (s *InMemoryMessageSigner) SignMessage(m messages.SignedMessage) error {
	if err := messages.Sign(m, s.privateKey); err != nil {
		return fmt.Errorf("failed to sign %s: %w", m.Kind(), err)
	}
	s.logger.Sugar().Debugw("Signed message", "kind", m.Kind(), "signer", s.address.Hex())
	return nil
}

var _ messageSigner.IMessageSigner = (*InMemoryMessageSigner)(nil)
