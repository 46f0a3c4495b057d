package caller

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/channel"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messages"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transactionSigner"
)

type ContractCaller struct {
	signer     transactionSigner.ITransactionSigner
	channelABI abi.ABI
	logger     *zap.Logger
}

func NewContractCaller(
	signer transactionSigner.ITransactionSigner,
	logger *zap.Logger,
) (*ContractCaller, error) {
	if signer == nil {
		return nil, fmt.Errorf("transaction signer is required")
	}
	parsed, err := abi.JSON(strings.NewReader(contractCaller.ChannelABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel ABI: %w", err)
	}
	return &ContractCaller{
		signer:     signer,
		channelABI: parsed,
		logger:     logger,
	}, nil
}

func (cc *ContractCaller) PackClose(proof *messages.Proof) ([]byte, error) {
	var (
		nonce     uint64
		amount    = new(big.Int)
		locksRoot [32]byte
		extraHash [32]byte
		signature []byte
	)
	if proof != nil {
		if proof.Signature() == nil {
			return nil, fmt.Errorf("%w: proof for channel %s", messages.ErrUnsigned, proof.ChannelAddress.Hex())
		}
		nonce = proof.Nonce
		amount = proof.TransferredAmount.ToBig()
		locksRoot = proof.LocksRoot
		extraHash = proof.MessageHash

		// ecrecover expects v in {27, 28}
		signature = proof.Signature().Bytes()
		signature[64] += 27
	}

	data, err := cc.channelABI.Pack("close", nonce, amount, locksRoot, extraHash, signature)
	if err != nil {
		return nil, fmt.Errorf("failed to pack close: %w", err)
	}
	return data, nil
}

func (cc *ContractCaller) CloseChannelWithProof(
	ctx context.Context,
	channelAddress common.Address,
	proof *messages.Proof,
) (*ethereumTypes.Receipt, error) {
	data, err := cc.PackClose(proof)
	if err != nil {
		return nil, err
	}
	tx := ethereumTypes.NewTx(&ethereumTypes.DynamicFeeTx{
		To:   &channelAddress,
		Data: data,
	})
	return cc.signAndSendTransaction(ctx, tx, "close")
}

func (cc *ContractCaller) PackUnlock(unlock *channel.Unlock) ([]byte, error) {
	if unlock == nil || unlock.Proof == nil {
		return nil, fmt.Errorf("unlock requires an inclusion proof")
	}
	data, err := cc.channelABI.Pack("unlock",
		big.NewInt(int64(unlock.Proof.LeafIndex)),
		unlock.OpenLock.Encode(),
		unlock.Proof.Proof,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack unlock: %w", err)
	}
	return data, nil
}

func (cc *ContractCaller) UnlockWithProof(
	ctx context.Context,
	channelAddress common.Address,
	unlock *channel.Unlock,
) (*ethereumTypes.Receipt, error) {
	data, err := cc.PackUnlock(unlock)
	if err != nil {
		return nil, err
	}
	tx := ethereumTypes.NewTx(&ethereumTypes.DynamicFeeTx{
		To:   &channelAddress,
		Data: data,
	})
	return cc.signAndSendTransaction(ctx, tx, "unlock")
}

func (cc *ContractCaller) CloseChannel(
	ctx context.Context,
	channelAddress common.Address,
	proof *messages.Proof,
	unlocks []*channel.Unlock,
) error {
	receipt, err := cc.CloseChannelWithProof(ctx, channelAddress, proof)
	if err != nil {
		return fmt.Errorf("failed to close channel %s: %w", channelAddress.Hex(), err)
	}
	cc.logger.Sugar().Infow("Closed channel",
		"channel", channelAddress.Hex(),
		"tx_hash", receipt.TxHash.Hex(),
		"with_proof", proof != nil)

	for _, unlock := range unlocks {
		receipt, err := cc.UnlockWithProof(ctx, channelAddress, unlock)
		if err != nil {
			return fmt.Errorf("failed to unlock %s on channel %s: %w", unlock.OpenLock.HashLock.Hex(), channelAddress.Hex(), err)
		}
		cc.logger.Sugar().Infow("Unlocked pending lock",
			"channel", channelAddress.Hex(),
			"hash_lock", unlock.OpenLock.HashLock.Hex(),
			"tx_hash", receipt.TxHash.Hex())
	}
	return nil
}

func (cc *ContractCaller) signAndSendTransaction(ctx context.Context, tx *ethereumTypes.Transaction, operation string) (*ethereumTypes.Receipt, error) {
	cc.logger.Sugar().Infow("Signing and sending transaction",
		"operation", operation,
		"from", cc.signer.GetFromAddress().Hex(),
		"to", tx.To().Hex(),
	)
	return cc.signer.SignAndSendTransaction(ctx, tx)
}

var _ contractCaller.IContractCaller = (*ContractCaller)(nil)
