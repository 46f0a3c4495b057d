package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

var (
	// FallbackGasTipCap is used when the backend does not support eth_maxPriorityFeePerGas
	FallbackGasTipCap = big.NewInt(1_500_000_000)

	// BaseFeeMultiplier leaves headroom for base fee spikes between pricing and inclusion
	BaseFeeMultiplier int64 = 2
)

// PrivateKeySigner implements ITransactionSigner with a local secp256k1 key
type PrivateKeySigner struct {
	ethClient   IEthClient
	logger      *zap.Logger
	chainID     *big.Int
	privateKey  *ecdsa.PrivateKey
	fromAddress common.Address
}

// NewPrivateKeySigner creates a signer from a hex encoded private key
func NewPrivateKeySigner(privateKeyHex string, ethClient IEthClient, logger *zap.Logger) (*PrivateKeySigner, error) {
	privateKey, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	chainID, err := ethClient.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	return &PrivateKeySigner{
		ethClient:   ethClient,
		logger:      logger,
		chainID:     chainID,
		privateKey:  privateKey,
		fromAddress: ethcrypto.PubkeyToAddress(privateKey.PublicKey),
	}, nil
}

// GetTransactOpts returns options that build transactions without sending them.
// The transaction is priced, signed and sent by SignAndSendTransaction.
func (pks *PrivateKeySigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(pks.privateKey, pks.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.NoSend = true
	return opts, nil
}

// SignAndSendTransaction reprices tx as an EIP-1559 transaction, signs it,
// sends it and waits for a successful receipt
func (pks *PrivateKeySigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	gasTipCap, maxFeePerGas, err := pks.suggestFees(ctx)
	if err != nil {
		return nil, err
	}

	gasLimit, err := pks.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:      pks.fromAddress,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}
	gasLimitWithBuffer := addGasBuffer(gasLimit)

	// the incoming nonce may be 0, which is also a valid nonce, so always ask the network
	nonce, err := pks.ethClient.PendingNonceAt(ctx, pks.fromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	signedTx, err := types.SignNewTx(pks.privateKey, types.LatestSignerForChainID(pks.chainID), &types.DynamicFeeTx{
		ChainID:   pks.chainID,
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimitWithBuffer,
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	pks.logger.Info("SignAndSendTransaction: sending transaction",
		zap.String("to", signedTx.To().Hex()),
		zap.String("maxPriorityFeePerGas", gasTipCap.String()),
		zap.String("maxFeePerGas", maxFeePerGas.String()),
		zap.Uint64("gasLimit", gasLimitWithBuffer),
		zap.Uint64("nonce", nonce),
	)

	if err := pks.ethClient.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, pks.ethClient, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		pks.logger.Error("SignAndSendTransaction: transaction failed",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("status", receipt.Status),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return nil, fmt.Errorf("transaction failed with status %d", receipt.Status)
	}

	pks.logger.Info("SignAndSendTransaction: transaction succeeded",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
	)
	return receipt, nil
}

// GetFromAddress returns the address that will be used for signing
func (pks *PrivateKeySigner) GetFromAddress() common.Address {
	return pks.fromAddress
}

// EstimateGasPriceAndLimit returns the max fee per gas and the buffered gas limit for tx
func (pks *PrivateKeySigner) EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error) {
	gasTipCap, maxFeePerGas, err := pks.suggestFees(ctx)
	if err != nil {
		return nil, 0, err
	}
	gasLimit, err := pks.ethClient.EstimateGas(ctx, ethereum.CallMsg{
		From:      pks.fromAddress,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return maxFeePerGas, addGasBuffer(gasLimit), nil
}

// suggestFees returns the priority fee and max fee per gas: basefee * BaseFeeMultiplier + tip
func (pks *PrivateKeySigner) suggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	gasTipCap, err := pks.ethClient.SuggestGasTipCap(ctx)
	if err != nil {
		pks.logger.Sugar().Warnw("Cannot get gasTipCap, using fallback", zap.Error(err))
		gasTipCap = new(big.Int).Set(FallbackGasTipCap)
	}

	header, err := pks.ethClient.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest block header: %w", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(0)
	}

	maxFeePerGas := new(big.Int).Add(
		new(big.Int).Mul(baseFee, big.NewInt(BaseFeeMultiplier)),
		gasTipCap,
	)
	return gasTipCap, maxFeePerGas, nil
}

// addGasBuffer adds 20% to an estimated gas limit
func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit + gasLimit/5
}

var _ ITransactionSigner = (*PrivateKeySigner)(nil)
