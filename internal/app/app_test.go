package app

import (
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/polymarket-hedge/pkg/config"
	"github.com/mselser95/polymarket-hedge/pkg/lock"
	"github.com/mselser95/polymarket-hedge/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPassword = "correct horse battery staple"

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	ks, err := session.Encrypt(hex.EncodeToString(crypto.FromECDSA(key)), testPassword)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, ks.Save(path))

	return &config.Config{
		LogLevel:             "info",
		HTTPPort:             "0",
		PolygonRPCURL:        "http://127.0.0.1:1",
		ChainID:              137,
		PolymarketCLOBURL:    "http://127.0.0.1:1",
		PolymarketGammaURL:   "http://127.0.0.1:1",
		PolymarketDataAPIURL: "http://127.0.0.1:1",
		CLOBRateLimit:        5,
		MarketCacheTTL:       time.Minute,
		KeystorePath:         path,
		WalletPollInterval:   time.Minute,
		HedgeMinOrderSize:    5,
		HedgeLegTimeout:      time.Minute,
		HedgeSellSlippage:    0.02,
		HedgePriceTolerance:  0.02,
		StorageMode:          "console",
		LockMode:             "memory",
		LockWait:             time.Second,
	}
}

func TestNew_LockedSession(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	assert.False(t, a.stack.Session.IsUnlocked())
	assert.Nil(t, a.stack.Pairs)
	assert.NotNil(t, a.stack.Engine)

	a.healthChecker.SetReady(true)

	rec := httptest.NewRecorder()
	a.healthChecker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "session")

	require.NoError(t, a.Shutdown())
}

func TestNew_UnlocksWithPassword(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, zap.NewNop(), &Options{Password: testPassword})
	require.NoError(t, err)
	assert.True(t, a.stack.Session.IsUnlocked())

	a.healthChecker.SetReady(true)

	rec := httptest.NewRecorder()
	a.healthChecker.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, a.Shutdown())
	assert.False(t, a.stack.Session.IsUnlocked(), "shutdown should drop the key")
}

func TestNew_WrongPassword(t *testing.T) {
	cfg := testConfig(t)

	_, err := New(cfg, zap.NewNop(), &Options{Password: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrInvalidPassword)
}

func TestNew_MissingKeystore(t *testing.T) {
	cfg := testConfig(t)
	cfg.KeystorePath = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(cfg, zap.NewNop(), nil)
	require.Error(t, err)
}

func TestNew_PairsSourceFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.PortfoliosPath = filepath.Join(t.TempDir(), "missing.json")

	_, err := New(cfg, zap.NewNop(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load pairs")
}

func TestNewLocker(t *testing.T) {
	cfg := testConfig(t)

	l, err := NewLocker(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &lock.MemoryLocker{}, l)

	cfg.LockMode = "etcd"
	_, err = NewLocker(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestSetupStorage_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageMode = "sqlite"
	cfg.SQLitePath = filepath.Join(t.TempDir(), "hedge.db")

	s, err := setupStorage(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSetupSeller_WithoutCredentials(t *testing.T) {
	cfg := testConfig(t)

	seller, err := setupSeller(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	assert.Nil(t, seller)
}
