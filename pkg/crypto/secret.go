package crypto

import (
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNilRandomSource is returned when no entropy source is supplied
var ErrNilRandomSource = errors.New("random source is nil")

// GenerateSecret draws a 32 byte secret from rng and returns it with its hash lock.
// Callers pass crypto/rand.Reader in production.
func GenerateSecret(rng io.Reader) (secret common.Hash, hashLock common.Hash, err error) {
	if rng == nil {
		return common.Hash{}, common.Hash{}, ErrNilRandomSource
	}
	if _, err := io.ReadFull(rng, secret[:]); err != nil {
		return common.Hash{}, common.Hash{}, fmt.Errorf("failed to read secret: %w", err)
	}
	return secret, Hash(secret.Bytes()), nil
}
