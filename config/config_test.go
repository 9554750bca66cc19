package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChainConfigs(t *testing.T) {
	chains, err := parseChainConfigs("8453=https://base.example.org,42161=wss://arb.example.org")
	require.NoError(t, err)
	require.Len(t, chains, 2)

	assert.Equal(t, "BASE", chains[8453].Name)
	assert.Equal(t, "https://base.example.org", chains[8453].RPCURL)
	assert.Equal(t, "ARBITRUM", chains[42161].Name)
	assert.Equal(t, "wss://arb.example.org", chains[42161].RPCURL)

	// Empty input yields an empty map, not an error
	chains, err = parseChainConfigs("")
	require.NoError(t, err)
	assert.Empty(t, chains)

	// Malformed pair
	_, err = parseChainConfigs("8453")
	assert.Error(t, err)

	// Non-numeric chain ID
	_, err = parseChainConfigs("base=https://base.example.org")
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://hermes.pyth.network", cfg.HermesURL)
	assert.False(t, cfg.Keeper.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Keeper.TickInterval)
	assert.Equal(t, uint64(60), cfg.Keeper.MaxStalenessSeconds)
	assert.Equal(t, uint64(50), cfg.Keeper.MaxConfidenceBps)
}

func TestLoadKeeperConfigRequiredFields(t *testing.T) {
	t.Setenv("KEEPER_ENABLED", "true")
	t.Setenv("KEEPER_PRIVATE_KEY", "")

	_, err := loadKeeperConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEEPER_PRIVATE_KEY")

	t.Setenv("KEEPER_PRIVATE_KEY", "ab1234")
	_, err = loadKeeperConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEEPER_VAULT_ADDRESS")

	t.Setenv("KEEPER_VAULT_ADDRESS", "0x1234567890123456789012345678901234567890")
	t.Setenv("KEEPER_ORACLE_ADDRESS", "0x0987654321098765432109876543210987654321")
	t.Setenv("KEEPER_PRICE_FEED_ID", "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace")
	t.Setenv("KEEPER_CHAIN_ID", "8453")
	t.Setenv("KEEPER_TICK_INTERVAL_SECONDS", "15")
	t.Setenv("KEEPER_MONITORED_ACCOUNTS", "0x1111111111111111111111111111111111111111, 0x2222222222222222222222222222222222222222")

	keeper, err := loadKeeperConfig()
	require.NoError(t, err)
	assert.Equal(t, uint64(8453), keeper.ChainID)
	assert.Equal(t, 15*time.Second, keeper.TickInterval)
	assert.Len(t, keeper.MonitoredAccounts, 2)
}
