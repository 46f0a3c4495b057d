package contractCaller

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// ChannelABI is the part of the settlement contract interface the node calls.
// close submits the partner's latest balance proof; extraHash is the hash of
// the message the proof was taken from. unlock redeems one pending lock of the
// closed proof with its secret and inclusion proof.
const ChannelABI = `[
	{
		"type": "function",
		"name": "close",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "nonce", "type": "uint64"},
			{"name": "transferredAmount", "type": "uint256"},
			{"name": "locksRoot", "type": "bytes32"},
			{"name": "extraHash", "type": "bytes32"},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "unlock",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "leafIndex", "type": "uint256"},
			{"name": "openLock", "type": "bytes"},
			{"name": "merkleProof", "type": "bytes32[]"}
		],
		"outputs": []
	}
]`

type IContractCaller interface {
	// PackClose returns the calldata closing a channel with proof. A nil proof closes without one.
	PackClose(proof *messages.Proof) ([]byte, error)

	// CloseChannelWithProof submits close to channelAddress and waits for the receipt
	CloseChannelWithProof(ctx context.Context, channelAddress common.Address, proof *messages.Proof) (*ethereumTypes.Receipt, error)

	// PackUnlock returns the calldata redeeming one pending lock
	PackUnlock(unlock *channel.Unlock) ([]byte, error)

	// UnlockWithProof submits unlock to channelAddress and waits for the receipt
	UnlockWithProof(ctx context.Context, channelAddress common.Address, unlock *channel.Unlock) (*ethereumTypes.Receipt, error)

	// CloseChannel closes with proof, then submits every unlock
	CloseChannel(ctx context.Context, channelAddress common.Address, proof *messages.Proof, unlocks []*channel.Unlock) error
}
