package transactionSigner

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// ITransactionSigner provides methods for signing Ethereum transactions
type ITransactionSigner interface {
	// GetTransactOpts returns transaction options for creating unsigned transactions
	GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// SignAndSendTransaction signs a transaction and sends it to the network
	SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address

	// EstimateGasPriceAndLimit estimates gas price and limit for a transaction
	EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error)
}

// IEthClient is the subset of *ethclient.Client used to price, send and await transactions
type IEthClient interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type SignerConfig struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
}

func NewTransactionSigner(cfg *SignerConfig, ethClient IEthClient, logger *zap.Logger) (ITransactionSigner, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	return NewPrivateKeySigner(cfg.PrivateKey, ethClient, logger)
}
