package crypto

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Hash computes keccak256 over the concatenation of data.
// This is the same digest the settlement contract computes with keccak256(abi.encodePacked(...)).
func Hash(data ...[]byte) common.Hash {
	return ethcrypto.Keccak256Hash(data...)
}
