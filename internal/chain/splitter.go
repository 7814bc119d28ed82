package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/mselser95/polymarket-hedge/pkg/types"
)

// MarketResolver looks up on-chain identifiers for a market id.
type MarketResolver interface {
	Resolve(ctx context.Context, marketID string) (*types.Market, error)
}

// Splitter splits collateral for markets addressed by their Gamma id.
type Splitter struct {
	client  *Client
	markets MarketResolver
}

// NewSplitter creates a market-addressed splitter.
func NewSplitter(client *Client, markets MarketResolver) (s *Splitter, err error) {
	if client == nil {
		return nil, errors.New("client cannot be nil")
	}

	if markets == nil {
		return nil, errors.New("market resolver cannot be nil")
	}

	s = &Splitter{
		client:  client,
		markets: markets,
	}

	return s, nil
}

// Split converts amount USDC.e into amount YES and amount NO tokens of marketID.
func (s *Splitter) Split(ctx context.Context, key *ecdsa.PrivateKey, marketID string, amount float64) (txHash string, err error) {
	market, err := s.markets.Resolve(ctx, marketID)
	if err != nil {
		return "", fmt.Errorf("resolve market %s: %w", marketID, err)
	}

	if market.ConditionID == "" {
		return "", fmt.Errorf("market %s has no condition id", marketID)
	}

	if market.Closed {
		return "", fmt.Errorf("market %s is closed", marketID)
	}

	return s.client.SplitPosition(ctx, key, market.ConditionID, amount, market.NegRisk)
}
