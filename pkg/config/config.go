package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for channel node configuration
const (
	EnvChannelsPrivateKey       = "CHANNELS_PRIVATE_KEY"
	EnvChannelsPort             = "CHANNELS_PORT"
	EnvChannelsChainID          = "CHANNELS_CHAIN_ID"
	EnvChannelsRPCURL           = "CHANNELS_RPC_URL"
	EnvChannelsRevealTimeout    = "CHANNELS_REVEAL_TIMEOUT"
	EnvChannelsPeersFile        = "CHANNELS_PEERS_FILE"
	EnvChannelsPersistenceType  = "CHANNELS_PERSISTENCE_TYPE"
	EnvChannelsBadgerPath       = "CHANNELS_BADGER_PATH"
	EnvChannelsRedisAddress     = "CHANNELS_REDIS_ADDRESS"
	EnvChannelsRedisPassword    = "CHANNELS_REDIS_PASSWORD"
	EnvChannelsRedisDB          = "CHANNELS_REDIS_DB"
	EnvChannelsRedisKeyPrefix   = "CHANNELS_REDIS_KEY_PREFIX"
	EnvChannelsRateLimit        = "CHANNELS_RATE_LIMIT"
	EnvChannelsVerbose          = "CHANNELS_VERBOSE"
	EnvChannelsNodeURL          = "CHANNELS_NODE_URL"
	EnvChannelsDisableChainPoll = "CHANNELS_DISABLE_CHAIN_POLLING"
	EnvChannelsOnchainClose     = "CHANNELS_ONCHAIN_CLOSE"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// Reveal timeouts in blocks. A party stops revealing a secret once the lock
// expires within this many blocks.
const (
	RevealTimeout_Mainnet = 30 // ~6 minutes (12s per block)
	RevealTimeout_Sepolia = 10 // ~2 minutes (12s per block)
	RevealTimeout_Anvil   = 5  // 10 seconds with 2s blocks
)

// Settle timeouts in blocks, used to pick lock expirations for new transfers
const (
	SettleTimeout_Mainnet = 600
	SettleTimeout_Sepolia = 100
	SettleTimeout_Anvil   = 20
)

// GetRevealTimeoutForChain returns the reveal timeout in blocks for a given chain
func GetRevealTimeoutForChain(chainId ChainId) uint64 {
	switch chainId {
	case ChainId_EthereumMainnet:
		return RevealTimeout_Mainnet
	case ChainId_EthereumSepolia:
		return RevealTimeout_Sepolia
	case ChainId_EthereumAnvil:
		return RevealTimeout_Anvil
	default:
		return RevealTimeout_Mainnet
	}
}

// GetSettleTimeoutForChain returns the default lock lifetime in blocks for a given chain
func GetSettleTimeoutForChain(chainId ChainId) uint64 {
	switch chainId {
	case ChainId_EthereumMainnet:
		return SettleTimeout_Mainnet
	case ChainId_EthereumSepolia:
		return SettleTimeout_Sepolia
	case ChainId_EthereumAnvil:
		return SettleTimeout_Anvil
	default:
		return SettleTimeout_Mainnet
	}
}

// GetBlockTimeForChain returns the expected block time, used to size HTTP timeouts
func GetBlockTimeForChain(chainId ChainId) time.Duration {
	if chainId == ChainId_EthereumAnvil {
		return 2 * time.Second
	}
	return 12 * time.Second
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

// PersistenceConfig selects and configures the storage backend
type PersistenceConfig struct {
	Type          PersistenceType `json:"type"`
	BadgerPath    string          `json:"badger_path,omitempty"`
	RedisAddress  string          `json:"redis_address,omitempty"`
	RedisPassword string          `json:"-"`
	RedisDB       int             `json:"redis_db,omitempty"`
	RedisPrefix   string          `json:"redis_prefix,omitempty"`
}

func (pc *PersistenceConfig) Validate() error {
	return pc.validate(field.NewPath("persistence")).ToAggregate()
}

func (pc *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerPath"), "badgerPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(path.Child("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redisDB"), pc.RedisDB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), string(pc.Type),
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}
	return allErrors
}

// NodeConfig represents the complete configuration for a channel node
type NodeConfig struct {
	// Node identity
	PrivateKey string `json:"-"`
	Port       int    `json:"port"`

	// Chain configuration
	ChainID   ChainId   `json:"chain_id"`
	ChainName ChainName `json:"chain_name"`
	RpcUrl    string    `json:"rpc_url"`

	// Protocol settings, zero means the chain default
	RevealTimeout uint64 `json:"reveal_timeout"`
	SettleTimeout uint64 `json:"settle_timeout"`

	// Peers and storage
	PeersFile   string             `json:"peers_file"`
	Persistence *PersistenceConfig `json:"persistence"`

	// Inbound messages per second, zero disables limiting
	RateLimit float64 `json:"rate_limit"`

	// Submit close transactions instead of only logging them
	OnchainClose bool `json:"onchain_close"`

	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// Validate checks every field and fills chain derived defaults
func (c *NodeConfig) Validate() error {
	var allErrors field.ErrorList

	key := strings.TrimPrefix(c.PrivateKey, "0x")
	if key == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("privateKey"), "privateKey is required"))
	} else if len(key) != 64 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("privateKey"), "<redacted>",
			fmt.Sprintf("must be 32 bytes (64 hex chars), got %d chars", len(key))))
	}

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	chainName, exists := ChainIdToName[c.ChainID]
	if !exists {
		allErrors = append(allErrors, field.Invalid(field.NewPath("chainId"), c.ChainID,
			fmt.Sprintf("unsupported chain, supported: %s", GetSupportedChainIDsString())))
	} else {
		c.ChainName = chainName
	}

	if c.RpcUrl != "" {
		if _, err := url.ParseRequestURI(c.RpcUrl); err != nil {
			allErrors = append(allErrors, field.Invalid(field.NewPath("rpcUrl"), c.RpcUrl, err.Error()))
		}
	}

	if c.RevealTimeout == 0 {
		c.RevealTimeout = GetRevealTimeoutForChain(c.ChainID)
	}
	if c.SettleTimeout == 0 {
		c.SettleTimeout = GetSettleTimeoutForChain(c.ChainID)
	}
	if c.SettleTimeout <= c.RevealTimeout {
		allErrors = append(allErrors, field.Invalid(field.NewPath("settleTimeout"), c.SettleTimeout,
			fmt.Sprintf("must be greater than revealTimeout (%d)", c.RevealTimeout)))
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rateLimit"), c.RateLimit, "must not be negative"))
	}

	if c.Persistence == nil {
		c.Persistence = &PersistenceConfig{Type: PersistenceType_Memory}
	}
	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// GetSupportedChainIDs returns all supported chain IDs
func GetSupportedChainIDs() []ChainId {
	return []ChainId{
		ChainId_EthereumMainnet,
		ChainId_EthereumSepolia,
		ChainId_EthereumAnvil,
	}
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

// ParseAddress validates and parses a hex address
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address format: %s", s)
	}
	return common.HexToAddress(s), nil
}
