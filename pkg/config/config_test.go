package config

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func validConfig() *NodeConfig {
	return &NodeConfig{
		PrivateKey: testKey,
		Port:       7500,
		ChainID:    ChainId_EthereumAnvil,
		RpcUrl:     "http://localhost:8545",
	}
}

func TestNodeConfig_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ChainName_EthereumAnvil, cfg.ChainName)
	assert.Equal(t, uint64(RevealTimeout_Anvil), cfg.RevealTimeout)
	assert.Equal(t, uint64(SettleTimeout_Anvil), cfg.SettleTimeout)
	require.NotNil(t, cfg.Persistence)
	assert.Equal(t, PersistenceType_Memory, cfg.Persistence.Type)
}

func TestNodeConfig_Validate_KeepsExplicitTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.RevealTimeout = 3
	cfg.SettleTimeout = 9
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(3), cfg.RevealTimeout)
	assert.Equal(t, uint64(9), cfg.SettleTimeout)
}

func TestNodeConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *NodeConfig)
		field  string
	}{
		{"missing key", func(c *NodeConfig) { c.PrivateKey = "" }, "privateKey"},
		{"short key", func(c *NodeConfig) { c.PrivateKey = "0x1234" }, "privateKey"},
		{"port zero", func(c *NodeConfig) { c.Port = 0 }, "port"},
		{"port too large", func(c *NodeConfig) { c.Port = 70000 }, "port"},
		{"unknown chain", func(c *NodeConfig) { c.ChainID = 5 }, "chainId"},
		{"bad rpc url", func(c *NodeConfig) { c.RpcUrl = "not a url" }, "rpcUrl"},
		{"settle not above reveal", func(c *NodeConfig) { c.RevealTimeout = 10; c.SettleTimeout = 10 }, "settleTimeout"},
		{"negative rate", func(c *NodeConfig) { c.RateLimit = -1 }, "rateLimit"},
		{"badger without path", func(c *NodeConfig) {
			c.Persistence = &PersistenceConfig{Type: PersistenceType_Badger}
		}, "persistence.badgerPath"},
		{"unknown persistence", func(c *NodeConfig) {
			c.Persistence = &PersistenceConfig{Type: "sqlite"}
		}, "persistence.type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestNodeConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := &NodeConfig{ChainID: 5}
	err := cfg.Validate()
	require.Error(t, err)
	for _, f := range []string{"privateKey", "port", "chainId"} {
		assert.True(t, strings.Contains(err.Error(), f), "missing %s in %v", f, err)
	}
	assert.NotContains(t, err.Error(), testKey)
}

func TestPersistenceConfig_Validate(t *testing.T) {
	assert.NoError(t, (&PersistenceConfig{Type: PersistenceType_Memory}).Validate())
	assert.NoError(t, (&PersistenceConfig{Type: PersistenceType_Badger, BadgerPath: "/tmp/x"}).Validate())
	assert.NoError(t, (&PersistenceConfig{Type: PersistenceType_Redis, RedisAddress: "localhost:6379"}).Validate())
	assert.Error(t, (&PersistenceConfig{Type: PersistenceType_Redis}).Validate())
	assert.Error(t, (&PersistenceConfig{Type: PersistenceType_Redis, RedisAddress: "x:1", RedisDB: 16}).Validate())
}

func TestChainTables(t *testing.T) {
	for _, id := range GetSupportedChainIDs() {
		name, ok := ChainIdToName[id]
		require.True(t, ok)
		assert.Equal(t, id, ChainNameToId[name])
		assert.Less(t, GetRevealTimeoutForChain(id), GetSettleTimeoutForChain(id))
	}
	assert.Equal(t, uint64(RevealTimeout_Mainnet), GetRevealTimeoutForChain(ChainId(999)))
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), addr)

	_, err = ParseAddress("0x123")
	assert.Error(t, err)
}
