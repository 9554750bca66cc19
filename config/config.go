package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port           string
	AllowedOrigins string

	// Database configuration
	DatabaseURL string

	// Chain connections, keyed by chain ID
	ChainConfigs map[uint64]*ChainConfig

	// Attestation service (Hermes-compatible) base URL
	HermesURL string

	Keeper KeeperConfig
}

// ChainConfig describes one chain connection
type ChainConfig struct {
	ChainID uint64
	Name    string
	RPCURL  string
}

// KeeperConfig holds the keeper execution loop configuration.
// Immutable after LoadConfig; the signing key backs every transaction the
// keeper submits.
type KeeperConfig struct {
	Enabled bool

	// Chain the vault and oracle contracts live on
	ChainID uint64

	PrivateKey    string
	VaultAddress  string
	OracleAddress string

	// Price feed to keep fresh
	PriceFeedID string
	FeedSymbol  string

	TickInterval        time.Duration
	MaxStalenessSeconds uint64
	MaxConfidenceBps    uint64

	// Accounts whose trigger conditions are attempted each tick. Empty means
	// the keeper falls back to its own signer address.
	MonitoredAccounts []string
}

const (
	defaultTickInterval        = 60 * time.Second
	defaultMaxStalenessSeconds = 60
	defaultMaxConfidenceBps    = 50
)

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	chains, err := parseChainConfigs(getEnvOrDefault("CHAIN_RPC_URLS", ""))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CHAIN_RPC_URLS")
	}

	keeper, err := loadKeeperConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		AllowedOrigins: getEnvOrDefault("ALLOWED_ORIGINS", ""),
		// Empty means the service runs without the audit trail.
		DatabaseURL:    getEnvOrDefault("DATABASE_URL", ""),
		ChainConfigs:   chains,
		HermesURL:      getEnvOrDefault("HERMES_URL", "https://hermes.pyth.network"),
		Keeper:         keeper,
	}

	return config, nil
}

func loadKeeperConfig() (KeeperConfig, error) {
	keeper := KeeperConfig{
		Enabled:             getEnvOrDefault("KEEPER_ENABLED", "false") == "true",
		PrivateKey:          os.Getenv("KEEPER_PRIVATE_KEY"),
		VaultAddress:        os.Getenv("KEEPER_VAULT_ADDRESS"),
		OracleAddress:       os.Getenv("KEEPER_ORACLE_ADDRESS"),
		PriceFeedID:         os.Getenv("KEEPER_PRICE_FEED_ID"),
		FeedSymbol:          getEnvOrDefault("KEEPER_FEED_SYMBOL", "ETH/USD"),
		TickInterval:        defaultTickInterval,
		MaxStalenessSeconds: defaultMaxStalenessSeconds,
		MaxConfidenceBps:    defaultMaxConfidenceBps,
	}

	chainID, err := parseUintEnv("KEEPER_CHAIN_ID", 0)
	if err != nil {
		return KeeperConfig{}, err
	}
	keeper.ChainID = chainID

	if raw := os.Getenv("KEEPER_TICK_INTERVAL_SECONDS"); raw != "" {
		seconds, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || seconds == 0 {
			return KeeperConfig{}, errors.Errorf("invalid KEEPER_TICK_INTERVAL_SECONDS: %q", raw)
		}
		keeper.TickInterval = time.Duration(seconds) * time.Second
	}

	if v, err := parseUintEnv("KEEPER_MAX_STALENESS_SECONDS", defaultMaxStalenessSeconds); err != nil {
		return KeeperConfig{}, err
	} else {
		keeper.MaxStalenessSeconds = v
	}

	if v, err := parseUintEnv("KEEPER_MAX_CONFIDENCE_BPS", defaultMaxConfidenceBps); err != nil {
		return KeeperConfig{}, err
	} else {
		keeper.MaxConfidenceBps = v
	}

	if raw := os.Getenv("KEEPER_MONITORED_ACCOUNTS"); raw != "" {
		for _, account := range strings.Split(raw, ",") {
			account = strings.TrimSpace(account)
			if account != "" {
				keeper.MonitoredAccounts = append(keeper.MonitoredAccounts, account)
			}
		}
	}

	if keeper.Enabled {
		switch {
		case keeper.PrivateKey == "":
			return KeeperConfig{}, errors.New("KEEPER_PRIVATE_KEY is required when the keeper is enabled")
		case keeper.VaultAddress == "":
			return KeeperConfig{}, errors.New("KEEPER_VAULT_ADDRESS is required when the keeper is enabled")
		case keeper.OracleAddress == "":
			return KeeperConfig{}, errors.New("KEEPER_ORACLE_ADDRESS is required when the keeper is enabled")
		case keeper.PriceFeedID == "":
			return KeeperConfig{}, errors.New("KEEPER_PRICE_FEED_ID is required when the keeper is enabled")
		case keeper.ChainID == 0:
			return KeeperConfig{}, errors.New("KEEPER_CHAIN_ID is required when the keeper is enabled")
		}
	}

	return keeper, nil
}

// parseChainConfigs parses a comma separated list of chainID=rpcURL pairs.
func parseChainConfigs(raw string) (map[uint64]*ChainConfig, error) {
	chains := make(map[uint64]*ChainConfig)
	if raw == "" {
		return chains, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("expected chainID=rpcURL, got %q", pair)
		}

		chainID, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid chain ID %q", parts[0])
		}

		name, err := chainNameFromID(chainID)
		if err != nil {
			name = "UNKNOWN"
		}

		chains[chainID] = &ChainConfig{
			ChainID: chainID,
			Name:    name,
			RPCURL:  parts[1],
		}
	}

	return chains, nil
}

func parseUintEnv(key string, defaultValue uint64) (uint64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid %s: %q", key, raw)
	}
	return value, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
