package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	PolygonRPCURL string
	ChainID       int64

	// Polymarket API
	PolymarketCLOBURL       string
	PolymarketGammaURL      string
	PolymarketDataAPIURL    string
	PolymarketAPIKey        string
	PolymarketSecret        string
	PolymarketPassphrase    string
	PolymarketSignatureType int
	PolymarketProxyAddress  string
	CLOBRateLimit           float64
	MarketCacheTTL          time.Duration

	// Account
	KeystorePath       string
	WalletPollInterval time.Duration

	// Hedge execution
	HedgeMinOrderSize   float64
	HedgeLegTimeout     time.Duration
	HedgeConcurrentLegs bool
	HedgeSellSlippage   float64
	HedgePriceTolerance float64
	PortfoliosPath      string

	// Storage
	StorageMode  string // "console", "postgres", "sqlite" or "kafka"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
	SQLitePath   string
	KafkaBrokers []string
	KafkaTopic   string

	// Account lock
	LockMode      string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration
	LockWait      time.Duration
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		LogLevel: v.GetString("LOG_LEVEL"),
		HTTPPort: v.GetString("HTTP_PORT"),

		PolygonRPCURL: v.GetString("POLYGON_RPC_URL"),
		ChainID:       v.GetInt64("CHAIN_ID"),

		PolymarketCLOBURL:       v.GetString("POLYMARKET_CLOB_URL"),
		PolymarketGammaURL:      v.GetString("POLYMARKET_GAMMA_API_URL"),
		PolymarketDataAPIURL:    v.GetString("POLYMARKET_DATA_API_URL"),
		PolymarketAPIKey:        v.GetString("POLYMARKET_API_KEY"),
		PolymarketSecret:        v.GetString("POLYMARKET_SECRET"),
		PolymarketPassphrase:    v.GetString("POLYMARKET_PASSPHRASE"),
		PolymarketSignatureType: v.GetInt("POLYMARKET_SIGNATURE_TYPE"),
		PolymarketProxyAddress:  v.GetString("POLYMARKET_PROXY_ADDRESS"),
		CLOBRateLimit:           v.GetFloat64("CLOB_RATE_LIMIT"),
		MarketCacheTTL:          v.GetDuration("MARKET_CACHE_TTL"),

		KeystorePath:       v.GetString("KEYSTORE_PATH"),
		WalletPollInterval: v.GetDuration("WALLET_POLL_INTERVAL"),

		HedgeMinOrderSize:   v.GetFloat64("HEDGE_MIN_ORDER_SIZE"),
		HedgeLegTimeout:     v.GetDuration("HEDGE_LEG_TIMEOUT"),
		HedgeConcurrentLegs: v.GetBool("HEDGE_CONCURRENT_LEGS"),
		HedgeSellSlippage:   v.GetFloat64("HEDGE_SELL_SLIPPAGE"),
		HedgePriceTolerance: v.GetFloat64("HEDGE_PRICE_TOLERANCE"),
		PortfoliosPath:      v.GetString("PORTFOLIOS_PATH"),

		StorageMode:  strings.ToLower(v.GetString("STORAGE_MODE")),
		PostgresHost: v.GetString("POSTGRES_HOST"),
		PostgresPort: v.GetString("POSTGRES_PORT"),
		PostgresUser: v.GetString("POSTGRES_USER"),
		PostgresPass: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:   v.GetString("POSTGRES_DB"),
		PostgresSSL:  v.GetString("POSTGRES_SSLMODE"),
		SQLitePath:   v.GetString("SQLITE_PATH"),
		KafkaBrokers: splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		LockMode:      strings.ToLower(v.GetString("LOCK_MODE")),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		LockTTL:       v.GetDuration("LOCK_TTL"),
		LockWait:      v.GetDuration("LOCK_WAIT"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_PORT", "8080")

	v.SetDefault("POLYGON_RPC_URL", "https://polygon-rpc.com")
	v.SetDefault("CHAIN_ID", 137)

	v.SetDefault("POLYMARKET_CLOB_URL", "https://clob.polymarket.com")
	v.SetDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com")
	v.SetDefault("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com")
	v.SetDefault("POLYMARKET_SIGNATURE_TYPE", 0)
	v.SetDefault("CLOB_RATE_LIMIT", 5.0)
	v.SetDefault("MARKET_CACHE_TTL", "1m")

	v.SetDefault("KEYSTORE_PATH", "keystore.json")
	v.SetDefault("WALLET_POLL_INTERVAL", "30s")

	v.SetDefault("HEDGE_MIN_ORDER_SIZE", 5.0)
	v.SetDefault("HEDGE_LEG_TIMEOUT", "3m")
	v.SetDefault("HEDGE_CONCURRENT_LEGS", false)
	v.SetDefault("HEDGE_SELL_SLIPPAGE", 0.02)
	v.SetDefault("HEDGE_PRICE_TOLERANCE", 0.02)
	v.SetDefault("PORTFOLIOS_PATH", "")

	v.SetDefault("STORAGE_MODE", "console")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "polymarket")
	v.SetDefault("POSTGRES_PASSWORD", "polymarket123")
	v.SetDefault("POSTGRES_DB", "polymarket_hedge")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "data/hedge.db")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC", "hedge-executions")

	v.SetDefault("LOCK_MODE", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LOCK_TTL", "10m")
	v.SetDefault("LOCK_WAIT", "30s")
}

// Validate checks that configuration values are valid and reports every problem found.
func (c *Config) Validate() error {
	var err error

	if c.HTTPPort == "" {
		err = multierr.Append(err, fmt.Errorf("HTTP_PORT cannot be empty"))
	}

	if c.PolygonRPCURL == "" {
		err = multierr.Append(err, fmt.Errorf("POLYGON_RPC_URL cannot be empty"))
	}

	if c.PolymarketCLOBURL == "" {
		err = multierr.Append(err, fmt.Errorf("POLYMARKET_CLOB_URL cannot be empty"))
	}

	if c.PolymarketGammaURL == "" {
		err = multierr.Append(err, fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty"))
	}

	if c.PolymarketSignatureType < 0 || c.PolymarketSignatureType > 2 {
		err = multierr.Append(err, fmt.Errorf("POLYMARKET_SIGNATURE_TYPE must be 0, 1 or 2, got %d", c.PolymarketSignatureType))
	}

	if c.PolymarketSignatureType != 0 && !common.IsHexAddress(c.PolymarketProxyAddress) {
		err = multierr.Append(err, fmt.Errorf("POLYMARKET_PROXY_ADDRESS is required for signature type %d", c.PolymarketSignatureType))
	}

	if c.HedgeMinOrderSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("HEDGE_MIN_ORDER_SIZE must be positive, got %f", c.HedgeMinOrderSize))
	}

	if c.HedgeLegTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("HEDGE_LEG_TIMEOUT must be positive, got %v", c.HedgeLegTimeout))
	}

	if c.HedgeSellSlippage < 0 || c.HedgeSellSlippage >= 1.0 {
		err = multierr.Append(err, fmt.Errorf("HEDGE_SELL_SLIPPAGE must be in [0, 1), got %f", c.HedgeSellSlippage))
	}

	if c.HedgePriceTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("HEDGE_PRICE_TOLERANCE cannot be negative, got %f", c.HedgePriceTolerance))
	}

	if c.CLOBRateLimit <= 0 {
		err = multierr.Append(err, fmt.Errorf("CLOB_RATE_LIMIT must be positive, got %f", c.CLOBRateLimit))
	}

	switch c.StorageMode {
	case "console", "postgres":
	case "sqlite":
		if c.SQLitePath == "" {
			err = multierr.Append(err, fmt.Errorf("SQLITE_PATH cannot be empty when STORAGE_MODE=sqlite"))
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			err = multierr.Append(err, fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required when STORAGE_MODE=kafka"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("STORAGE_MODE must be console, postgres, sqlite or kafka, got %q", c.StorageMode))
	}

	switch c.LockMode {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			err = multierr.Append(err, fmt.Errorf("REDIS_ADDR cannot be empty when LOCK_MODE=redis"))
		}
		if c.LockTTL <= c.HedgeLegTimeout*2 {
			err = multierr.Append(err, fmt.Errorf("LOCK_TTL (%v) must exceed two leg timeouts (%v)", c.LockTTL, c.HedgeLegTimeout*2))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("LOCK_MODE must be 'memory' or 'redis', got %q", c.LockMode))
	}

	return err
}

// HasCLOBCredentials reports whether L2 API credentials are configured.
func (c *Config) HasCLOBCredentials() bool {
	return c.PolymarketAPIKey != "" && c.PolymarketSecret != "" && c.PolymarketPassphrase != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
