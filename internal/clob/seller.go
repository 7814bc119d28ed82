package clob

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL  = "https://clob.polymarket.com"
	DefaultSlippage = 0.02

	orderPath   = "/order"
	zeroAddress = "0x0000000000000000000000000000000000000000"
)

// ErrBelowMinimumSize is returned for sells smaller than the market's minimum order size.
var ErrBelowMinimumSize = errors.New("sell size below market minimum")

// MarketSource returns current market data, including outcome prices.
type MarketSource interface {
	Refresh(ctx context.Context, marketID string) (*types.Market, error)
}

// Seller places GTC sell orders for outcome tokens on the CLOB.
type Seller struct {
	baseURL       string
	creds         Credentials
	markets       MarketSource
	proxyAddress  string
	signatureType model.SignatureType
	slippage      float64
	orderBuilder  builder.ExchangeOrderBuilder
	limiter       *rate.Limiter
	httpClient    *http.Client
	logger        *zap.Logger
}

// Config holds seller configuration.
type Config struct {
	BaseURL       string
	Credentials   Credentials
	Markets       MarketSource
	ProxyAddress  string
	SignatureType int
	Slippage      float64
	RateLimit     float64 // requests per second
	ChainID       int64
	Timeout       time.Duration
	Logger        *zap.Logger
}

// NewSeller creates a new CLOB seller.
func NewSeller(cfg *Config) (s *Seller, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Markets == nil {
		return nil, errors.New("market source cannot be nil")
	}

	if !cfg.Credentials.Valid() {
		return nil, errors.New("CLOB API credentials are required")
	}

	if cfg.Slippage < 0 || cfg.Slippage >= 1 {
		return nil, fmt.Errorf("slippage must be in [0, 1), got %v", cfg.Slippage)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = 137
	}

	rateLimit := cfg.RateLimit
	if rateLimit <= 0 {
		rateLimit = 5
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s = &Seller{
		baseURL:       strings.TrimRight(baseURL, "/"),
		creds:         cfg.Credentials,
		markets:       cfg.Markets,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		slippage:      cfg.Slippage,
		orderBuilder:  builder.NewExchangeOrderBuilderImpl(big.NewInt(chainID), nil),
		limiter:       rate.NewLimiter(rate.Limit(rateLimit), 5),
		httpClient:    &http.Client{Timeout: timeout},
		logger:        cfg.Logger,
	}

	return s, nil
}

// Sell signs with key and places a GTC sell of amount outcome tokens of
// marketID priced just below the current quote.
func (s *Seller) Sell(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	marketID string,
	outcome types.Position,
	amount float64,
) (order types.SellOrder, err error) {
	if key == nil {
		return order, fmt.Errorf("signing key: %w", types.ErrSessionLocked)
	}

	market, err := s.markets.Refresh(ctx, marketID)
	if err != nil {
		return order, fmt.Errorf("refresh market %s: %w", marketID, err)
	}

	if market.OrderMinSize > 0 && amount < market.OrderMinSize {
		SellOrdersTotal.WithLabelValues("rejected").Inc()
		return order, fmt.Errorf("%w: %v < %v in market %s", ErrBelowMinimumSize, amount, market.OrderMinSize, marketID)
	}

	token := market.GetTokenByOutcome(outcome)
	if token == nil {
		return order, fmt.Errorf("market %s has no %s token", marketID, outcome)
	}

	if token.Price <= 0 || token.Price >= 1 {
		return order, fmt.Errorf("market %s has no usable %s quote (%v)", marketID, outcome, token.Price)
	}

	tickSize := market.OrderTickSize
	if tickSize <= 0 {
		tickSize = 0.01
	}

	price := LimitPrice(token.Price, s.slippage, tickSize)

	signed, err := s.buildSellOrder(key, token.TokenID, price, amount, tickSize, market.NegRisk)
	if err != nil {
		return order, err
	}

	s.logger.Info("sell-order-built",
		zap.String("market-id", marketID),
		zap.String("outcome", string(outcome)),
		zap.String("token-id", token.TokenID),
		zap.Float64("quote", token.Price),
		zap.Float64("limit-price", price),
		zap.Float64("size", amount),
		zap.Bool("neg-risk", market.NegRisk))

	resp, err := s.submit(ctx, key, signed)
	if err != nil {
		SellOrdersTotal.WithLabelValues("error").Inc()
		return order, err
	}

	if !resp.Success || resp.ErrorMsg != "" {
		SellOrdersTotal.WithLabelValues("rejected").Inc()
		return order, &types.OrderError{
			Code:    errorCode(resp.ErrorMsg),
			Message: resp.ErrorMsg,
			OrderID: resp.OrderID,
			Side:    string(outcome),
		}
	}

	order = types.SellOrder{
		OrderID: resp.OrderID,
		Price:   price,
		Quote:   token.Price,
		Status:  resp.Status,
	}
	if resp.Status == "matched" {
		order.RealizedPrice = realizedPrice(resp.TakingAmount, resp.MakingAmount)
	}

	SellOrdersTotal.WithLabelValues(resultLabel(resp.Status)).Inc()

	s.logger.Info("sell-order-placed",
		zap.String("market-id", marketID),
		zap.String("order-id", order.OrderID),
		zap.String("status", order.Status),
		zap.Float64("realized-price", order.RealizedPrice))

	return order, nil
}

// LimitPrice is quote*(1-slippage) rounded to the tick, kept inside the book's range.
func LimitPrice(quote, slippage, tickSize float64) float64 {
	ticks := math.Round(quote * (1 - slippage) / tickSize)
	price := ticks * tickSize

	if price < tickSize {
		price = tickSize
	}
	if price > 1-tickSize {
		price = 1 - tickSize
	}

	decimals := tickDecimals(tickSize)
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(price, 'f', decimals, 64), 64)
	return rounded
}

// buildSellOrder signs a SELL of size shares at price. Amounts are computed in
// integers so that takerAmount == price * makerAmount holds exactly.
func (s *Seller) buildSellOrder(
	key *ecdsa.PrivateKey,
	tokenID string,
	price float64,
	size float64,
	tickSize float64,
	negRisk bool,
) (*model.SignedOrder, error) {
	precision := int64(math.Pow10(tickDecimals(tickSize)))
	priceInt := int64(math.Round(price * float64(precision)))
	sharesCents := int64(math.Floor(size*100 + 1e-9))

	makerAmount := sharesCents * 10_000
	takerAmount := sharesCents * priceInt * (1_000_000 / (100 * precision))

	if makerAmount <= 0 || takerAmount <= 0 {
		return nil, fmt.Errorf("invalid amounts: maker=%d taker=%d (price=%.4f size=%.4f)", makerAmount, takerAmount, price, size)
	}

	signer := crypto.PubkeyToAddress(key.PublicKey).Hex()
	maker := signer
	if s.proxyAddress != "" {
		maker = s.proxyAddress
	}

	contract := model.CTFExchange
	if negRisk {
		contract = model.NegRiskCTFExchange
	}

	orderData := &model.OrderData{
		Maker:         maker,
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   strconv.FormatInt(makerAmount, 10),
		TakerAmount:   strconv.FormatInt(takerAmount, 10),
		Side:          model.SELL,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        signer,
		Expiration:    "0",
		SignatureType: s.signatureType,
	}

	signed, err := s.orderBuilder.BuildSignedOrder(key, orderData, contract)
	if err != nil {
		return nil, fmt.Errorf("build sell order: %w", err)
	}

	return signed, nil
}

func (s *Seller) submit(ctx context.Context, key *ecdsa.PrivateKey, order *model.SignedOrder) (*types.OrderSubmissionResponse, error) {
	err := s.limiter.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	side := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		side = "SELL"
	}

	request := types.OrderSubmissionRequest{
		Order: types.SignedOrderJSON{
			Salt:          order.Salt.Int64(),
			Maker:         order.Maker.Hex(),
			Signer:        order.Signer.Hex(),
			Taker:         order.Taker.Hex(),
			TokenID:       order.TokenId.String(),
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Side:          side,
			Expiration:    order.Expiration.String(),
			Nonce:         order.Nonce.String(),
			FeeRateBps:    order.FeeRateBps.String(),
			SignatureType: int(order.SignatureType.Int64()),
			Signature:     "0x" + common.Bytes2Hex(order.Signature),
		},
		Owner:     s.creds.APIKey,
		OrderType: "GTC",
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	headers, err := signL2(s.creds, address, http.MethodPost, orderPath, body, time.Now())
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+orderPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header = headers
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	SubmitDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result types.OrderSubmissionResponse
	parseErr := json.Unmarshal(respBody, &result)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		if parseErr == nil && result.ErrorMsg != "" {
			return &result, nil
		}
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if parseErr != nil {
		return nil, fmt.Errorf("parse response: %w", parseErr)
	}

	return &result, nil
}

// realizedPrice is USDC received per share sold, or 0 when amounts are unusable.
func realizedPrice(taking, making string) float64 {
	usdc, err := strconv.ParseFloat(taking, 64)
	if err != nil {
		return 0
	}

	shares, err := strconv.ParseFloat(making, 64)
	if err != nil || shares <= 0 {
		return 0
	}

	return usdc / shares
}

func errorCode(msg string) string {
	for _, code := range []string{types.ErrInvalidMinTickSize, types.ErrNotEnoughBalance, types.ErrMarketNotReady} {
		if strings.Contains(msg, code) {
			return code
		}
	}
	return types.ErrUnknownStatus
}

func resultLabel(status string) string {
	if status == "matched" {
		return "matched"
	}
	return "live"
}

func tickDecimals(tickSize float64) int {
	for decimals := 1; decimals <= 4; decimals++ {
		scaled := tickSize * math.Pow10(decimals)
		if math.Abs(scaled-math.Round(scaled)) < 1e-9 {
			return decimals
		}
	}
	return 4
}
