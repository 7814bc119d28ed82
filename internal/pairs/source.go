package pairs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/cache"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

// ErrPairNotFound is returned when no portfolio carries the requested pair id.
var ErrPairNotFound = errors.New("pair not found")

// portfolio is one entry of portfolios.json.
type portfolio struct {
	PairID         string  `json:"pair_id"`
	TargetMarketID string  `json:"target_market_id"`
	TargetPosition string  `json:"target_position"`
	TargetQuestion string  `json:"target_question"`
	TargetPrice    float64 `json:"target_price"`
	CoverMarketID  string  `json:"cover_market_id"`
	CoverPosition  string  `json:"cover_position"`
	CoverQuestion  string  `json:"cover_question"`
	CoverPrice     float64 `json:"cover_price"`
}

type portfolioFile struct {
	Portfolios []portfolio `json:"portfolios"`
}

// Source serves hedge pairs from a portfolios.json file, reloading it when the file changes.
type Source struct {
	path   string
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.RWMutex
	pairs   map[string]*types.HedgePair
	modTime time.Time
}

// Config holds pair source configuration.
type Config struct {
	Path   string
	Cache  cache.Cache
	TTL    time.Duration
	Logger *zap.Logger
}

// NewSource creates a pair source and performs the initial load.
func NewSource(cfg *Config) (*Source, error) {
	if cfg.Path == "" {
		return nil, errors.New("portfolios path is required")
	}
	if cfg.Cache == nil {
		return nil, errors.New("cache cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	s := &Source{
		path:   cfg.Path,
		cache:  cfg.Cache,
		ttl:    ttl,
		logger: cfg.Logger,
		pairs:  make(map[string]*types.HedgePair),
	}

	err := s.Reload()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Get returns the pair with the given id. File edits become visible once the cached entry expires.
func (s *Source) Get(ctx context.Context, pairID string) (*types.HedgePair, error) {
	key := "pair:" + pairID

	if cached, ok := s.cache.Get(key); ok {
		if pair, ok := cached.(*types.HedgePair); ok {
			return pair, nil
		}
	}

	err := s.reloadIfChanged()
	if err != nil {
		s.logger.Warn("portfolios-reload-failed", zap.Error(err))
	}

	s.mu.RLock()
	pair, ok := s.pairs[pairID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPairNotFound, pairID)
	}

	s.cache.Set(key, pair, s.ttl)
	return pair, nil
}

// Len returns the number of loaded pairs.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs)
}

// Reload re-reads the portfolios file unconditionally.
func (s *Source) Reload() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat portfolios: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read portfolios: %w", err)
	}

	entries, err := parsePortfolios(data)
	if err != nil {
		return err
	}

	pairs := make(map[string]*types.HedgePair, len(entries))
	skipped := 0
	for i := range entries {
		pair, err := toPair(&entries[i])
		if err != nil {
			skipped++
			s.logger.Debug("portfolio-skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		pairs[pair.PairID] = pair
	}

	s.mu.Lock()
	previous := s.pairs
	s.pairs = pairs
	s.modTime = info.ModTime()
	s.mu.Unlock()

	for id := range previous {
		s.cache.Delete("pair:" + id)
	}

	PairsLoaded.Set(float64(len(pairs)))

	s.logger.Info("portfolios-loaded",
		zap.String("path", s.path),
		zap.Int("pairs", len(pairs)),
		zap.Int("skipped", skipped))

	return nil
}

func (s *Source) reloadIfChanged() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("stat portfolios: %w", err)
	}

	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.modTime)
	s.mu.RUnlock()

	if unchanged {
		return nil
	}

	PortfolioReloadsTotal.Inc()
	return s.Reload()
}

// parsePortfolios accepts {"portfolios": [...]} or a bare list.
func parsePortfolios(data []byte) ([]portfolio, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []portfolio
		err := json.Unmarshal(data, &list)
		if err != nil {
			return nil, fmt.Errorf("decode portfolios list: %w", err)
		}
		return list, nil
	}

	var file portfolioFile
	err := json.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("decode portfolios: %w", err)
	}
	return file.Portfolios, nil
}

func toPair(p *portfolio) (*types.HedgePair, error) {
	if p.TargetMarketID == "" || p.CoverMarketID == "" {
		return nil, errors.New("missing market id")
	}

	targetPos := positionOrYes(p.TargetPosition)
	coverPos := positionOrYes(p.CoverPosition)
	if !targetPos.Valid() || !coverPos.Valid() {
		return nil, fmt.Errorf("invalid position %q/%q", p.TargetPosition, p.CoverPosition)
	}

	pairID := p.PairID
	if pairID == "" {
		pairID = DerivePairID(p.TargetMarketID, targetPos, p.CoverMarketID, coverPos)
	}

	return &types.HedgePair{
		PairID: pairID,
		Target: types.PairLeg{
			MarketID: p.TargetMarketID,
			Position: targetPos,
			Question: p.TargetQuestion,
			Price:    p.TargetPrice,
		},
		Cover: types.PairLeg{
			MarketID: p.CoverMarketID,
			Position: coverPos,
			Question: p.CoverQuestion,
			Price:    p.CoverPrice,
		},
	}, nil
}

func positionOrYes(s string) types.Position {
	if s == "" {
		return types.PositionYes
	}
	return types.ParsePosition(s)
}

// DerivePairID returns a stable id for a pair that was published without one.
func DerivePairID(targetMarketID string, targetPos types.Position, coverMarketID string, coverPos types.Position) string {
	raw := fmt.Sprintf("%s:%s|%s:%s", targetMarketID, targetPos, coverMarketID, coverPos)
	return crypto.Keccak256Hash([]byte(raw)).Hex()[:18]
}
