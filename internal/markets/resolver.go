package markets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/polymarket-hedge/pkg/cache"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

// Resolver turns market ids into fully populated markets, caching the result.
type Resolver struct {
	client *Client
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// ResolverConfig holds resolver configuration.
type ResolverConfig struct {
	Client *Client
	Cache  cache.Cache
	TTL    time.Duration
	Logger *zap.Logger
}

// NewResolver creates a new market resolver. A nil cache disables caching.
func NewResolver(cfg *ResolverConfig) (r *Resolver, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Client == nil {
		return nil, errors.New("client cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	r = &Resolver{
		client: cfg.Client,
		cache:  cfg.Cache,
		ttl:    ttl,
		logger: cfg.Logger,
	}

	return r, nil
}

func cacheKey(marketID string) string {
	return fmt.Sprintf("market:%s", marketID)
}

// Resolve returns the market for marketID, from cache when available.
func (r *Resolver) Resolve(ctx context.Context, marketID string) (*types.Market, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(cacheKey(marketID)); ok {
			if market, ok := cached.(*types.Market); ok {
				MarketCacheHitsTotal.Inc()
				return market, nil
			}
		}
		MarketCacheMissesTotal.Inc()
	}

	return r.Refresh(ctx, marketID)
}

// Refresh fetches marketID from the APIs, bypassing and then updating the cache.
func (r *Resolver) Refresh(ctx context.Context, marketID string) (*types.Market, error) {
	market, err := r.client.FetchMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	if len(market.Tokens) == 0 {
		return nil, fmt.Errorf("market %s has no CLOB tokens", marketID)
	}

	r.fillTradingRules(ctx, market)

	if r.cache != nil {
		r.cache.Set(cacheKey(marketID), market, r.ttl)
	}

	return market, nil
}

// fillTradingRules completes tick size and minimum order size from the CLOB
// when Gamma leaves them out. Lookup failures fall back to the defaults.
func (r *Resolver) fillTradingRules(ctx context.Context, market *types.Market) {
	tokenID := market.Tokens[0].TokenID

	if market.OrderTickSize <= 0 {
		tickSize, err := r.client.FetchTickSize(ctx, tokenID)
		if err != nil {
			r.logger.Warn("tick-size-fallback",
				zap.String("market-id", market.ID),
				zap.Error(err))
			tickSize = defaultTickSize
		}
		market.OrderTickSize = tickSize
	}

	if market.OrderMinSize <= 0 {
		minSize, err := r.client.FetchMinOrderSize(ctx, tokenID)
		if err != nil {
			r.logger.Warn("min-order-size-fallback",
				zap.String("market-id", market.ID),
				zap.Error(err))
			minSize = defaultMinOrderSize
		}
		market.OrderMinSize = minSize
	}
}
