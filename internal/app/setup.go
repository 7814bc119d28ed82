package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/polymarket-hedge/internal/chain"
	"github.com/mselser95/polymarket-hedge/internal/clob"
	"github.com/mselser95/polymarket-hedge/internal/hedge"
	"github.com/mselser95/polymarket-hedge/internal/markets"
	"github.com/mselser95/polymarket-hedge/internal/pairs"
	"github.com/mselser95/polymarket-hedge/internal/storage"
	"github.com/mselser95/polymarket-hedge/pkg/cache"
	"github.com/mselser95/polymarket-hedge/pkg/config"
	"github.com/mselser95/polymarket-hedge/pkg/healthprobe"
	"github.com/mselser95/polymarket-hedge/pkg/httpserver"
	"github.com/mselser95/polymarket-hedge/pkg/lock"
	"github.com/mselser95/polymarket-hedge/pkg/session"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/mselser95/polymarket-hedge/pkg/wallet"
	"github.com/mselser95/polymarket-hedge/pkg/websocket"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stack is the execution stack shared by the server and the one-shot CLI commands.
type Stack struct {
	Session  *session.Session
	Cache    cache.Cache
	Resolver *markets.Resolver
	Chain    *chain.Client
	Wallet   *wallet.Client
	Pairs    *pairs.Source // nil without PORTFOLIOS_PATH
	Storage  storage.Storage
	Engine   *hedge.Engine

	rpc *ethclient.Client
}

// NewStack dials the RPC endpoint and wires every collaborator of the hedge engine.
// observer may be nil.
func NewStack(cfg *config.Config, logger *zap.Logger, sess *session.Session, observer hedge.Observer) (_ *Stack, err error) {
	s := &Stack{Session: sess}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.rpc, err = ethclient.Dial(cfg.PolygonRPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial polygon rpc: %w", err)
	}

	s.Cache, err = setupCache(logger)
	if err != nil {
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	s.Resolver, err = setupResolver(cfg, logger, s.Cache)
	if err != nil {
		return nil, fmt.Errorf("setup market resolver: %w", err)
	}

	s.Chain, err = chain.New(&chain.Config{
		Backend: s.rpc,
		Keys:    sess,
		ChainID: cfg.ChainID,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create chain client: %w", err)
	}

	splitter, err := chain.NewSplitter(s.Chain, s.Resolver)
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}

	seller, err := setupSeller(cfg, logger, s.Resolver)
	if err != nil {
		return nil, fmt.Errorf("setup seller: %w", err)
	}

	s.Wallet, err = wallet.NewClient(s.rpc, cfg.PolymarketDataAPIURL, logger)
	if err != nil {
		return nil, fmt.Errorf("create wallet client: %w", err)
	}

	if cfg.PortfoliosPath != "" {
		s.Pairs, err = pairs.NewSource(&pairs.Config{
			Path:   cfg.PortfoliosPath,
			Cache:  s.Cache,
			TTL:    cfg.MarketCacheTTL,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("load pairs: %w", err)
		}
	}

	s.Storage, err = setupStorage(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	engineCfg := &hedge.Config{
		Account:        sess,
		Balances:       s.Wallet,
		Splitter:       splitter,
		Recorder:       s.Storage,
		MinOrderSize:   cfg.HedgeMinOrderSize,
		LegTimeout:     cfg.HedgeLegTimeout,
		Concurrent:     cfg.HedgeConcurrentLegs,
		PriceTolerance: cfg.HedgePriceTolerance,
		Logger:         logger,
	}
	// typed nils must not reach the engine's optional interfaces
	if seller != nil {
		engineCfg.Seller = seller
	}
	if s.Pairs != nil {
		engineCfg.Pairs = s.Pairs
	}
	if observer != nil {
		engineCfg.Observer = observer
	}

	s.Engine, err = hedge.New(engineCfg)
	if err != nil {
		return nil, fmt.Errorf("create hedge engine: %w", err)
	}

	return s, nil
}

// Close releases the journal, cache and RPC connection.
func (s *Stack) Close() error {
	var err error

	if s.Storage != nil {
		err = multierr.Append(err, s.Storage.Close())
	}

	if s.Cache != nil {
		s.Cache.Close()
	}

	if s.rpc != nil {
		s.rpc.Close()
	}

	return err
}

// LoadSession opens the keystore and optionally unlocks it.
func LoadSession(path, password string, logger *zap.Logger) (*session.Session, error) {
	ks, err := session.LoadKeystore(path)
	if err != nil {
		return nil, fmt.Errorf("load keystore: %w", err)
	}

	sess, err := session.New(ks, logger)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if password != "" {
		err = sess.Unlock(password)
		if err != nil {
			return nil, fmt.Errorf("unlock session: %w", err)
		}
	}

	return sess, nil
}

// New creates the API server application.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	sess, err := LoadSession(cfg.KeystorePath, opts.Password, logger)
	if err != nil {
		return nil, err
	}

	return newWithSession(cfg, logger, sess)
}

func newWithSession(cfg *config.Config, logger *zap.Logger, sess *session.Session) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	hub := websocket.New(websocket.Config{Logger: logger})

	stack, err := NewStack(cfg, logger, sess, hub)
	if err != nil {
		cancel()
		return nil, err
	}

	locker, err := NewLocker(cfg, logger)
	if err != nil {
		cancel()
		_ = stack.Close()
		return nil, fmt.Errorf("setup locker: %w", err)
	}

	tracker, err := wallet.New(&wallet.Config{
		Client:       stack.Wallet,
		Address:      sess.Address(),
		PollInterval: cfg.WalletPollInterval,
		Logger:       logger,
	})
	if err != nil {
		cancel()
		_ = stack.Close()
		return nil, fmt.Errorf("create wallet tracker: %w", err)
	}

	healthChecker := setupHealthChecker(sess)

	serverCfg := &httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Executor:      stack.Engine,
		Session:       sess,
		Locker:        locker,
		Progress:      hub,
		LockWait:      cfg.LockWait,
		// both legs plus balance reads
		WriteTimeout: 2*cfg.HedgeLegTimeout + time.Minute,
	}
	if stack.Pairs != nil {
		serverCfg.Pairs = stack.Pairs
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		stack:         stack,
		healthChecker: healthChecker,
		httpServer:    httpserver.New(serverCfg),
		hub:           hub,
		locker:        locker,
		tracker:       tracker,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker(sess *session.Session) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.AddCheck("session", func() error {
		if !sess.IsUnlocked() {
			return types.ErrSessionLocked
		}
		return nil
	})
	return hc
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(cache.DefaultRistrettoConfig(logger))
}

func setupResolver(cfg *config.Config, logger *zap.Logger, c cache.Cache) (*markets.Resolver, error) {
	client, err := markets.NewClient(&markets.ClientConfig{
		GammaURL: cfg.PolymarketGammaURL,
		CLOBURL:  cfg.PolymarketCLOBURL,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	return markets.NewResolver(&markets.ResolverConfig{
		Client: client,
		Cache:  c,
		TTL:    cfg.MarketCacheTTL,
		Logger: logger,
	})
}

// setupSeller returns nil when no CLOB credentials are configured.
func setupSeller(cfg *config.Config, logger *zap.Logger, resolver *markets.Resolver) (*clob.Seller, error) {
	if !cfg.HasCLOBCredentials() {
		logger.Warn("clob-seller-disabled",
			zap.String("reason", "POLYMARKET_API_KEY/SECRET/PASSPHRASE not set"),
			zap.String("note", "only skip_clob_sell executions can succeed"))
		return nil, nil
	}

	return clob.NewSeller(&clob.Config{
		BaseURL: cfg.PolymarketCLOBURL,
		Credentials: clob.Credentials{
			APIKey:     cfg.PolymarketAPIKey,
			Secret:     cfg.PolymarketSecret,
			Passphrase: cfg.PolymarketPassphrase,
		},
		Markets:       resolver,
		ProxyAddress:  cfg.PolymarketProxyAddress,
		SignatureType: cfg.PolymarketSignatureType,
		Slippage:      cfg.HedgeSellSlippage,
		RateLimit:     cfg.CLOBRateLimit,
		ChainID:       cfg.ChainID,
		Logger:        logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	return storage.New(&storage.Config{
		Mode: cfg.StorageMode,
		Postgres: &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
		},
		SQLite: &storage.SQLiteConfig{Path: cfg.SQLitePath},
		Kafka: &storage.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		},
		Logger: logger,
	})
}

// NewLocker returns the account locker selected by LOCK_MODE.
func NewLocker(cfg *config.Config, logger *zap.Logger) (lock.Locker, error) {
	switch cfg.LockMode {
	case "", "memory":
		return lock.NewMemoryLocker(), nil
	case "redis":
		return lock.NewRedisLocker(&lock.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.LockTTL,
			Logger:   logger,
		})
	default:
		return nil, errors.New("unknown lock mode " + cfg.LockMode)
	}
}
