package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	EVMChainPoller "github.com/Layr-Labs/chain-indexer/pkg/chainPollers/evm"
	"github.com/Layr-Labs/chain-indexer/pkg/chainPollers/persistence/memory"
	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	chainIndexerConfig "github.com/Layr-Labs/chain-indexer/pkg/config"
	"github.com/Layr-Labs/chain-indexer/pkg/contractStore/inMemoryContractStore"
	"github.com/Layr-Labs/chain-indexer/pkg/transactionLogParser"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-channels-go/pkg/blockHandler"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/config"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/engine"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/messageSigner/inMemoryMessageSigner"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/peering"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/peering/localPeeringDataFetcher"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/persistence"
	badgerPersistence "github.com/Layr-Labs/eigenx-channels-go/pkg/persistence/badger"
	memoryPersistence "github.com/Layr-Labs/eigenx-channels-go/pkg/persistence/memory"
	redisPersistence "github.com/Layr-Labs/eigenx-channels-go/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transactionSigner"
	"github.com/Layr-Labs/eigenx-channels-go/pkg/transport"
)

func main() {
	app := &cli.App{
		Name:  "channel-node",
		Usage: "Off-chain payment channel node",
		Description: `A node that exchanges signed balance proofs with its channel partners.

The node:
- Initiates and receives hash-locked mediated transfers
- Reveals and unlocks secrets into settleable balance proofs
- Follows the chain to expire locks and close channels`,
		Version: "1.0.0",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the channel node",
				Flags:  runFlags(),
				Action: runChannelNode,
			},
			{
				Name:   "keygen",
				Usage:  "Generate a secp256k1 node key",
				Action: keygenCommand,
			},
			{
				Name:  "register-channel",
				Usage: "Register a channel with a partner on a running node",
				Flags: []cli.Flag{
					nodeURLFlag(),
					&cli.StringFlag{Name: "channel", Usage: "Channel contract address", Required: true},
					&cli.StringFlag{Name: "partner", Usage: "Partner node address", Required: true},
				},
				Action: registerChannelCommand,
			},
			{
				Name:  "send",
				Usage: "Initiate a mediated transfer on a running node",
				Flags: []cli.Flag{
					nodeURLFlag(),
					&cli.StringFlag{Name: "channel", Usage: "Channel contract address", Required: true},
					&cli.StringFlag{Name: "amount", Usage: "Amount to transfer (decimal)", Required: true},
					&cli.StringFlag{Name: "target", Usage: "Target address, defaults to the channel partner"},
					&cli.Uint64Flag{Name: "expiration", Usage: "Lock expiration block, defaults to current block plus the settle timeout"},
				},
				Action: sendCommand,
			},
			{
				Name:   "transfers",
				Usage:  "List transfers on a running node",
				Flags:  []cli.Flag{nodeURLFlag()},
				Action: listTransfersCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "private-key",
			Aliases:  []string{"key"},
			Usage:    "secp256k1 private key (hex string) used to sign messages",
			EnvVars:  []string{config.EnvChannelsPrivateKey},
			Required: true,
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Value:   8000,
			Usage:   "HTTP server port",
			EnvVars: []string{config.EnvChannelsPort},
		},
		&cli.Uint64Flag{
			Name:     "chain-id",
			Aliases:  []string{"chain"},
			Usage:    fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
			EnvVars:  []string{config.EnvChannelsChainID},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "rpc-url",
			Aliases: []string{"rpc"},
			Usage:   "Ethereum RPC endpoint URL",
			Value:   "http://localhost:8545",
			EnvVars: []string{config.EnvChannelsRPCURL},
		},
		&cli.Uint64Flag{
			Name:    "reveal-timeout",
			Usage:   "Blocks before lock expiration after which a secret is no longer safe to reveal (0 = chain default)",
			EnvVars: []string{config.EnvChannelsRevealTimeout},
		},
		&cli.StringFlag{
			Name:    "peers-file",
			Usage:   "JSON file listing peer addresses and socket addresses",
			EnvVars: []string{config.EnvChannelsPeersFile},
		},
		&cli.StringFlag{
			Name:    "persistence",
			Usage:   "Persistence backend: memory, badger or redis",
			Value:   string(config.PersistenceType_Memory),
			EnvVars: []string{config.EnvChannelsPersistenceType},
		},
		&cli.StringFlag{
			Name:    "badger-path",
			Usage:   "Data directory for the badger backend",
			EnvVars: []string{config.EnvChannelsBadgerPath},
		},
		&cli.StringFlag{
			Name:    "redis-address",
			Usage:   "host:port of the redis backend",
			EnvVars: []string{config.EnvChannelsRedisAddress},
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Password of the redis backend",
			EnvVars: []string{config.EnvChannelsRedisPassword},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Database number of the redis backend",
			EnvVars: []string{config.EnvChannelsRedisDB},
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Usage:   "Key prefix inside the redis database",
			EnvVars: []string{config.EnvChannelsRedisKeyPrefix},
		},
		&cli.Float64Flag{
			Name:    "rate-limit",
			Usage:   "Inbound peer messages per second (0 = unlimited)",
			EnvVars: []string{config.EnvChannelsRateLimit},
		},
		&cli.BoolFlag{
			Name:    "onchain-close",
			Usage:   "Submit close transactions to the channel contract when a lock expires unclaimed",
			EnvVars: []string{config.EnvChannelsOnchainClose},
		},
		&cli.BoolFlag{
			Name:    "disable-chain-polling",
			Usage:   "Do not follow the chain; blocks must be fed externally",
			EnvVars: []string{config.EnvChannelsDisableChainPoll},
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Usage:   "Enable verbose logging",
			EnvVars: []string{config.EnvChannelsVerbose},
		},
	}
}

func nodeURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "node-url",
		Usage:   "Base URL of a running channel node",
		Value:   "http://localhost:8000",
		EnvVars: []string{config.EnvChannelsNodeURL},
	}
}

func runChannelNode(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	nodeConfig := parseNodeConfig(c)
	if err := nodeConfig.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l.Sugar().Infow("Using chain", "name", nodeConfig.ChainName, "chain_id", nodeConfig.ChainID)

	signer, err := inMemoryMessageSigner.NewInMemoryMessageSignerFromHex(nodeConfig.PrivateKey, l)
	if err != nil {
		return fmt.Errorf("failed to create message signer: %w", err)
	}

	store, err := newPersistence(nodeConfig.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to create persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	peers, err := newPeeringDataFetcher(nodeConfig.PeersFile, l)
	if err != nil {
		return fmt.Errorf("failed to load peers: %w", err)
	}

	client := transport.NewClient(signer.Address(), peers, l)

	var closer engine.IChannelCloser
	if nodeConfig.OnchainClose {
		closer, err = newContractCloser(nodeConfig, l)
		if err != nil {
			return err
		}
	}

	e := engine.NewEngine(engine.Config{
		RevealTimeout: nodeConfig.RevealTimeout,
		SettleTimeout: nodeConfig.SettleTimeout,
		Port:          nodeConfig.Port,
		RateLimit:     nodeConfig.RateLimit,
	}, signer, store, client, closer, l)

	if nodeConfig.Verbose {
		l.Sugar().Infow("Channel node configuration",
			"address", e.Address.Hex(),
			"port", nodeConfig.Port,
			"chain", nodeConfig.ChainName,
			"reveal_timeout", nodeConfig.RevealTimeout,
			"settle_timeout", nodeConfig.SettleTimeout,
			"persistence", nodeConfig.Persistence.Type,
			"rate_limit", nodeConfig.RateLimit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Start(); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	if !c.Bool("disable-chain-polling") {
		bh := blockHandler.NewBlockHandler(l)
		if err := startChainPoller(ctx, nodeConfig, bh, l); err != nil {
			return err
		}
		go e.ListenToBlocks(ctx, bh)
	}

	l.Sugar().Infow("Channel node running", "address", e.Address.Hex(), "port", nodeConfig.Port)
	l.Sugar().Infow("Available endpoints",
		"messages", "POST /messages",
		"channels", "POST /channels",
		"transfers", "POST /transfers",
		"health", "GET /health")

	<-ctx.Done()
	l.Sugar().Infow("Shutting down channel node")
	return e.Stop()
}

func parseNodeConfig(c *cli.Context) *config.NodeConfig {
	return &config.NodeConfig{
		PrivateKey:    c.String("private-key"),
		Port:          c.Int("port"),
		ChainID:       config.ChainId(c.Uint64("chain-id")),
		RpcUrl:        c.String("rpc-url"),
		RevealTimeout: c.Uint64("reveal-timeout"),
		PeersFile:     c.String("peers-file"),
		Persistence: &config.PersistenceConfig{
			Type:          config.PersistenceType(c.String("persistence")),
			BadgerPath:    c.String("badger-path"),
			RedisAddress:  c.String("redis-address"),
			RedisPassword: c.String("redis-password"),
			RedisDB:       c.Int("redis-db"),
			RedisPrefix:   c.String("redis-key-prefix"),
		},
		RateLimit:    c.Float64("rate-limit"),
		OnchainClose: c.Bool("onchain-close"),
		Debug:        c.Bool("verbose"),
		Verbose:      c.Bool("verbose"),
	}
}

func newPersistence(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.ITransferPersistence, error) {
	switch cfg.Type {
	case config.PersistenceType_Badger:
		return badgerPersistence.NewBadgerPersistence(cfg.BadgerPath, l)
	case config.PersistenceType_Redis:
		return redisPersistence.NewRedisPersistence(&redisPersistence.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisPrefix,
		}, l)
	default:
		return memoryPersistence.NewMemoryPersistence(), nil
	}
}

func newPeeringDataFetcher(path string, l *zap.Logger) (peering.IPeeringDataFetcher, error) {
	if path == "" {
		l.Sugar().Warnw("No peers file configured, outbound messages will fail")
		return localPeeringDataFetcher.NewLocalPeeringDataFetcher(nil, l), nil
	}
	return localPeeringDataFetcher.NewLocalPeeringDataFetcherFromFile(path, l)
}

// newContractCloser closes channels on-chain with transactions signed by the node key
func newContractCloser(cfg *config.NodeConfig, l *zap.Logger) (engine.IChannelCloser, error) {
	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	l1Client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return nil, fmt.Errorf("failed to get Ethereum contract caller: %w", err)
	}

	txSigner, err := transactionSigner.NewTransactionSigner(&transactionSigner.SignerConfig{
		PrivateKey: cfg.PrivateKey,
	}, l1Client, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction signer: %w", err)
	}

	cc, err := caller.NewContractCaller(txSigner, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create contract caller: %w", err)
	}
	return cc, nil
}

func startChainPoller(ctx context.Context, cfg *config.NodeConfig, bh blockHandler.IBlockHandler, l *zap.Logger) error {
	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)

	// logs are not parsed, but the poller requires a parser
	cs := inMemoryContractStore.NewInMemoryContractStore(nil, l)
	logParser := transactionLogParser.NewTransactionLogParser(cs, l)
	pollerStore := memory.NewInMemoryChainPollerPersistence()

	poller, err := EVMChainPoller.NewEVMChainPoller(
		ethClient,
		logParser,
		&EVMChainPoller.EVMChainPollerConfig{
			ChainId:         chainIndexerConfig.ChainId(cfg.ChainID),
			PollingInterval: config.GetBlockTimeForChain(cfg.ChainID),
		},
		pollerStore, bh, l)
	if err != nil {
		return fmt.Errorf("failed to create EVM chain poller: %w", err)
	}
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start EVM chain poller: %w", err)
	}
	return nil
}

func keygenCommand(c *cli.Context) error {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	fmt.Printf("Private key: %s\n", hexutil.Encode(ethcrypto.FromECDSA(key)))
	fmt.Printf("Address:     %s\n", ethcrypto.PubkeyToAddress(key.PublicKey).Hex())
	return nil
}

func registerChannelCommand(c *cli.Context) error {
	channelAddress, err := config.ParseAddress(c.String("channel"))
	if err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	partner, err := config.ParseAddress(c.String("partner"))
	if err != nil {
		return fmt.Errorf("invalid partner: %w", err)
	}
	return postJSON(c.String("node-url"), "/channels", engine.RegisterChannelRequest{
		Address: channelAddress,
		Partner: partner,
	})
}

func sendCommand(c *cli.Context) error {
	channelAddress, err := config.ParseAddress(c.String("channel"))
	if err != nil {
		return fmt.Errorf("invalid channel: %w", err)
	}
	req := engine.InitiateTransferRequest{
		ChannelAddress: channelAddress,
		Amount:         c.String("amount"),
		Expiration:     c.Uint64("expiration"),
	}
	if t := c.String("target"); t != "" {
		target, err := config.ParseAddress(t)
		if err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
		req.Target = &target
	}
	return postJSON(c.String("node-url"), "/transfers", req)
}

func listTransfersCommand(c *cli.Context) error {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Get(strings.TrimSuffix(c.String("node-url"), "/") + "/transfers")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return printResponse(resp)
}

func postJSON(nodeURL, path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Post(strings.TrimSuffix(nodeURL, "/")+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
