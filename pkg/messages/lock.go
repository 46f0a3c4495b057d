package messages

import (
	"fmt"
	"math/big"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/crypto"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// LockEncodedLength is the size of an encoded Lock
	LockEncodedLength = 3 * 32
	// OpenLockEncodedLength is the size of an encoded OpenLock
	OpenLockEncodedLength = 4 * 32
)

var (
	abiUint256, _ = abi.NewType("uint256", "", nil)
	abiBytes32, _ = abi.NewType("bytes32", "", nil)

	lockArguments = abi.Arguments{
		{Name: "amount", Type: abiUint256},
		{Name: "expiration", Type: abiUint256},
		{Name: "hashLock", Type: abiBytes32},
	}
	openLockArguments = abi.Arguments{
		{Name: "amount", Type: abiUint256},
		{Name: "expiration", Type: abiUint256},
		{Name: "hashLock", Type: abiBytes32},
		{Name: "secret", Type: abiBytes32},
	}
)

// Lock is a hash-time-lock: Amount is redeemable with the pre-image of HashLock until block Expiration
type Lock struct {
	Amount     uint256.Int
	Expiration uint64
	HashLock   common.Hash
}

// NewLock validates and builds a lock
func NewLock(amount *uint256.Int, expiration uint64, hashLock common.Hash) (Lock, error) {
	l := Lock{Expiration: expiration, HashLock: hashLock}
	if amount != nil {
		l.Amount = *amount
	}
	if err := l.Validate(); err != nil {
		return Lock{}, err
	}
	return l, nil
}

// NewLockFrom copies an existing lock, re-validating it rather than trusting the source
func NewLockFrom(src Lock) (Lock, error) {
	return NewLock(&src.Amount, src.Expiration, src.HashLock)
}

// Validate checks the lock can ever be redeemed
func (l Lock) Validate() error {
	if l.HashLock == (common.Hash{}) {
		return fmt.Errorf("%w: hash lock is empty", ErrInvalidLock)
	}
	if l.Expiration == 0 {
		return fmt.Errorf("%w: expiration is zero", ErrInvalidLock)
	}
	return nil
}

// Encode packs the lock as (uint256 amount, uint256 expiration, bytes32 hashLock).
// The layout is the ABI head encoding the settlement contract uses for locks-root leaves.
func (l Lock) Encode() []byte {
	encoded, err := lockArguments.Pack(l.Amount.ToBig(), new(big.Int).SetUint64(l.Expiration), [32]byte(l.HashLock))
	if err != nil {
		// static argument types, only reachable if lockArguments changes
		panic(fmt.Sprintf("failed to pack lock: %v", err))
	}
	return encoded
}

// Hash is keccak256 of the encoded lock
func (l Lock) Hash() common.Hash {
	return crypto.Hash(l.Encode())
}

// IsSafe reports whether the lock can still be acted upon at currentBlock
func (l Lock) IsSafe(currentBlock, revealTimeout uint64) bool {
	return currentBlock+revealTimeout < l.Expiration
}

// Matches reports whether secret unlocks this lock
func (l Lock) Matches(secret common.Hash) bool {
	return crypto.Hash(secret.Bytes()) == l.HashLock
}

// OpenLock is a lock together with the secret that redeems it
type OpenLock struct {
	Lock
	Secret common.Hash
}

// NewOpenLock pairs a lock with its secret, rejecting secrets that do not match
func NewOpenLock(lock Lock, secret common.Hash) (OpenLock, error) {
	if !lock.Matches(secret) {
		return OpenLock{}, fmt.Errorf("%w: secret does not match hash lock", ErrInvalidLock)
	}
	return OpenLock{Lock: lock, Secret: secret}, nil
}

// Encode packs the lock followed by its secret
func (o OpenLock) Encode() []byte {
	encoded, err := openLockArguments.Pack(
		o.Amount.ToBig(),
		new(big.Int).SetUint64(o.Expiration),
		[32]byte(o.HashLock),
		[32]byte(o.Secret),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to pack open lock: %v", err))
	}
	return encoded
}

// DecodeLock reads an ABI encoded lock
func DecodeLock(data []byte) (Lock, error) {
	if len(data) != LockEncodedLength {
		return Lock{}, fmt.Errorf("%w: lock must be %d bytes, got %d", ErrMalformed, LockEncodedLength, len(data))
	}
	values, err := lockArguments.Unpack(data)
	if err != nil {
		return Lock{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return lockFromValues(values)
}

func lockFromValues(values []interface{}) (Lock, error) {
	if len(values) != 3 {
		return Lock{}, fmt.Errorf("%w: expected 3 lock values, got %d", ErrMalformed, len(values))
	}
	amount, ok := values[0].(*big.Int)
	if !ok {
		return Lock{}, fmt.Errorf("%w: amount is not uint256", ErrMalformed)
	}
	expiration, ok := values[1].(*big.Int)
	if !ok || !expiration.IsUint64() {
		return Lock{}, fmt.Errorf("%w: expiration does not fit a block number", ErrMalformed)
	}
	hashLock, ok := values[2].([32]byte)
	if !ok {
		return Lock{}, fmt.Errorf("%w: hash lock is not bytes32", ErrMalformed)
	}

	var l Lock
	l.Amount.SetFromBig(amount)
	l.Expiration = expiration.Uint64()
	l.HashLock = common.Hash(hashLock)
	return l, nil
}
