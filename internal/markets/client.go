package markets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

const (
	DefaultGammaURL = "https://gamma-api.polymarket.com"
	DefaultCLOBURL  = "https://clob.polymarket.com"

	defaultTickSize     = 0.01
	defaultMinOrderSize = 5.0
)

// ErrMarketNotFound is returned when the Gamma API has no market for an id.
var ErrMarketNotFound = errors.New("market not found")

// Client fetches market metadata from the Gamma and CLOB APIs.
type Client struct {
	gammaURL   string
	clobURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientConfig holds market client configuration.
type ClientConfig struct {
	GammaURL string
	CLOBURL  string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient creates a new market metadata client.
func NewClient(cfg *ClientConfig) (c *Client, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	gammaURL := cfg.GammaURL
	if gammaURL == "" {
		gammaURL = DefaultGammaURL
	}

	clobURL := cfg.CLOBURL
	if clobURL == "" {
		clobURL = DefaultCLOBURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c = &Client{
		gammaURL: strings.TrimRight(gammaURL, "/"),
		clobURL:  strings.TrimRight(clobURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: cfg.Logger,
	}

	return c, nil
}

// FetchMarket fetches a single market from the Gamma API.
func (c *Client) FetchMarket(ctx context.Context, marketID string) (market *types.Market, err error) {
	start := time.Now()
	defer func() {
		MetadataFetchDuration.WithLabelValues("market").Observe(time.Since(start).Seconds())
		if err != nil {
			MetadataFetchErrorsTotal.WithLabelValues("market").Inc()
		}
	}()

	endpoint := fmt.Sprintf("%s/markets/%s", c.gammaURL, url.PathEscape(marketID))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, marketID)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d: %s", status, string(body))
	}

	market = &types.Market{}
	err = json.Unmarshal(body, market)
	if err != nil {
		return nil, fmt.Errorf("unmarshal market: %w", err)
	}

	if market.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, marketID)
	}

	c.logger.Debug("market-fetched",
		zap.String("market-id", market.ID),
		zap.String("condition-id", market.ConditionID),
		zap.Int("tokens", len(market.Tokens)))

	return market, nil
}

// FetchTickSize fetches the tick size for a token from the CLOB API.
func (c *Client) FetchTickSize(ctx context.Context, tokenID string) (tickSize float64, err error) {
	start := time.Now()
	defer func() {
		MetadataFetchDuration.WithLabelValues("tick-size").Observe(time.Since(start).Seconds())
		if err != nil {
			MetadataFetchErrorsTotal.WithLabelValues("tick-size").Inc()
		}
	}()

	endpoint := fmt.Sprintf("%s/tick-size?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	if status != http.StatusOK {
		return 0, fmt.Errorf("API error: status %d", status)
	}

	var data struct {
		MinimumTickSize float64 `json:"minimum_tick_size"`
	}
	err = json.Unmarshal(body, &data)
	if err != nil {
		return 0, fmt.Errorf("unmarshal tick size: %w", err)
	}

	if data.MinimumTickSize <= 0 {
		return 0, fmt.Errorf("invalid tick size %v for token %s", data.MinimumTickSize, tokenID)
	}

	return data.MinimumTickSize, nil
}

// FetchMinOrderSize fetches the minimum order size for a token from its order book.
// Falls back to 5 shares when the book does not report one.
func (c *Client) FetchMinOrderSize(ctx context.Context, tokenID string) (minOrderSize float64, err error) {
	endpoint := fmt.Sprintf("%s/book?token_id=%s", c.clobURL, url.QueryEscape(tokenID))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return 0, err
	}

	if status != http.StatusOK {
		return defaultMinOrderSize, nil
	}

	var data struct {
		MinOrderSize string `json:"min_order_size"`
	}
	if json.Unmarshal(body, &data) != nil {
		return defaultMinOrderSize, nil
	}

	size, err := strconv.ParseFloat(data.MinOrderSize, 64)
	if err != nil || size <= 0 {
		return defaultMinOrderSize, nil
	}

	return size, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polymarket-hedge/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
