package config

import (
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"log_level", cfg.LogLevel, "info"},
		{"http_port", cfg.HTTPPort, "8080"},
		{"chain_id", cfg.ChainID, int64(137)},
		{"clob_url", cfg.PolymarketCLOBURL, "https://clob.polymarket.com"},
		{"min_order_size", cfg.HedgeMinOrderSize, 5.0},
		{"leg_timeout", cfg.HedgeLegTimeout, 3 * time.Minute},
		{"concurrent_legs", cfg.HedgeConcurrentLegs, false},
		{"sell_slippage", cfg.HedgeSellSlippage, 0.02},
		{"price_tolerance", cfg.HedgePriceTolerance, 0.02},
		{"storage_mode", cfg.StorageMode, "console"},
		{"lock_mode", cfg.LockMode, "memory"},
		{"lock_ttl", cfg.LockTTL, 10 * time.Minute},
		{"kafka_topic", cfg.KafkaTopic, "hedge-executions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}

	if cfg.HasCLOBCredentials() {
		t.Error("no CLOB credentials expected by default")
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("HEDGE_MIN_ORDER_SIZE", "1.5")
	t.Setenv("HEDGE_LEG_TIMEOUT", "90s")
	t.Setenv("HEDGE_CONCURRENT_LEGS", "true")
	t.Setenv("STORAGE_MODE", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("POLYMARKET_API_KEY", "key")
	t.Setenv("POLYMARKET_SECRET", "secret")
	t.Setenv("POLYMARKET_PASSPHRASE", "pass")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %s, want 9090", cfg.HTTPPort)
	}
	if cfg.HedgeMinOrderSize != 1.5 {
		t.Errorf("HedgeMinOrderSize = %v, want 1.5", cfg.HedgeMinOrderSize)
	}
	if cfg.HedgeLegTimeout != 90*time.Second {
		t.Errorf("HedgeLegTimeout = %v, want 90s", cfg.HedgeLegTimeout)
	}
	if !cfg.HedgeConcurrentLegs {
		t.Error("HedgeConcurrentLegs should be true")
	}
	if cfg.StorageMode != "kafka" {
		t.Errorf("StorageMode = %s, want kafka", cfg.StorageMode)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "k1:9092" || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.HasCLOBCredentials() {
		t.Error("CLOB credentials should be detected")
	}
}

func TestLoadFromEnv_EmptyValueUsesDefault(t *testing.T) {
	t.Setenv("HTTP_PORT", "")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %s, want default 8080", cfg.HTTPPort)
	}
}

func validConfig() *Config {
	return &Config{
		HTTPPort:            "8080",
		PolygonRPCURL:       "https://polygon-rpc.com",
		PolymarketCLOBURL:   "https://clob.polymarket.com",
		PolymarketGammaURL:  "https://gamma-api.polymarket.com",
		HedgeMinOrderSize:   5,
		HedgeLegTimeout:     3 * time.Minute,
		HedgeSellSlippage:   0.02,
		HedgePriceTolerance: 0.02,
		CLOBRateLimit:       5,
		StorageMode:         "console",
		LockMode:            "memory",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty_port",
			mutate:  func(c *Config) { c.HTTPPort = "" },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "zero_min_order_size",
			mutate:  func(c *Config) { c.HedgeMinOrderSize = 0 },
			wantErr: "HEDGE_MIN_ORDER_SIZE",
		},
		{
			name:    "slippage_out_of_range",
			mutate:  func(c *Config) { c.HedgeSellSlippage = 1 },
			wantErr: "HEDGE_SELL_SLIPPAGE",
		},
		{
			name:    "proxy_required",
			mutate:  func(c *Config) { c.PolymarketSignatureType = 2 },
			wantErr: "POLYMARKET_PROXY_ADDRESS",
		},
		{
			name: "proxy_present",
			mutate: func(c *Config) {
				c.PolymarketSignatureType = 1
				c.PolymarketProxyAddress = "0x00000000000000000000000000000000000000aa"
			},
		},
		{
			name:    "unknown_storage",
			mutate:  func(c *Config) { c.StorageMode = "mongo" },
			wantErr: "STORAGE_MODE",
		},
		{
			name:    "kafka_without_topic",
			mutate:  func(c *Config) { c.StorageMode = "kafka"; c.KafkaBrokers = []string{"k:9092"} },
			wantErr: "KAFKA_TOPIC",
		},
		{
			name:    "unknown_lock_mode",
			mutate:  func(c *Config) { c.LockMode = "etcd" },
			wantErr: "LOCK_MODE",
		},
		{
			name: "redis_ttl_too_short",
			mutate: func(c *Config) {
				c.LockMode = "redis"
				c.RedisAddr = "localhost:6379"
				c.LockTTL = time.Minute
			},
			wantErr: "LOCK_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.HTTPPort = ""
	cfg.HedgeMinOrderSize = -1
	cfg.LockMode = "etcd"

	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", got, err)
	}
}

func TestNewLogger(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		logger, err := NewLogger(level)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", level, err)
		}
		_ = logger.Sync()
	}

	_, err := NewLogger("verbose")
	if err == nil {
		t.Error("expected error for unknown level")
	}
}
