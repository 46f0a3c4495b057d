package messageSigner

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
)

// IMessageSigner signs outgoing protocol messages with the node's identity key
type IMessageSigner interface {
	// Address is the account that recovers from every signature this signer produces
	Address() common.Address
	// SignMessage computes the message hash and stores the signature on m
	SignMessage(m messages.SignedMessage) error
}
