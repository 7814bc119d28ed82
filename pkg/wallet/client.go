package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

const (
	polygonUSDCe      = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonCTF        = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"
	DefaultDataAPIURL = "https://data-api.polymarket.com"
	polDecimals       = 1e18
	usdcDecimals      = 1e6
)

//nolint:gochecknoglobals // parsed once
var erc20ABI = mustParseABI(`[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("parse erc20 abi: " + err.Error())
	}
	return parsed
}

// Backend is the subset of ethclient.Client used for balance reads.
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client reads wallet balances from the chain and positions from the Data API.
type Client struct {
	backend    Backend
	dataAPIURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// Balances holds raw on-chain balances.
type Balances struct {
	POL          *big.Int // in wei
	USDCe        *big.Int // in 6-decimal units
	CTFAllowance *big.Int // USDC.e approved to the CTF contract, 6-decimal units
}

// Position is an outcome token holding reported by the Data API.
type Position struct {
	MarketSlug   string
	ConditionID  string
	Title        string
	Outcome      string
	Size         float64
	Value        float64 // current USD value
	InitialValue float64 // cost basis USD
}

type dataAPIPosition struct {
	Asset        string  `json:"asset"`
	ConditionID  string  `json:"conditionId"`
	Size         float64 `json:"size"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
}

// NewClient creates a new wallet client. An empty dataAPIURL uses the public Data API.
func NewClient(backend Backend, dataAPIURL string, logger *zap.Logger) (c *Client, err error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if dataAPIURL == "" {
		dataAPIURL = DefaultDataAPIURL
	}

	c = &Client{
		backend:    backend,
		dataAPIURL: strings.TrimRight(dataAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}

	return c, nil
}

// GetBalances fetches POL, USDC.e and the CTF allowance.
func (c *Client) GetBalances(ctx context.Context, address common.Address) (balances *Balances, err error) {
	pol, err := c.backend.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get POL balance: %w", err)
	}

	usdc, err := c.callUint(ctx, "balanceOf", address)
	if err != nil {
		return nil, fmt.Errorf("get USDC.e balance: %w", err)
	}

	allowance, err := c.callUint(ctx, "allowance", address, common.HexToAddress(polygonCTF))
	if err != nil {
		return nil, fmt.Errorf("get USDC.e allowance: %w", err)
	}

	balances = &Balances{
		POL:          pol,
		USDCe:        usdc,
		CTFAllowance: allowance,
	}

	return balances, nil
}

// Snapshot returns POL and USDC.e balances in display units.
func (c *Client) Snapshot(ctx context.Context, address common.Address) (types.Balances, error) {
	balances, err := c.GetBalances(ctx, address)
	if err != nil {
		return types.Balances{}, err
	}

	snapshot := types.Balances{
		POL:   ToFloat(balances.POL, polDecimals),
		USDCe: ToFloat(balances.USDCe, usdcDecimals),
	}

	return snapshot, nil
}

func (c *Client) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	token := common.HexToAddress(polygonUSDCe)
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call contract: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// ToFloat scales a raw integer amount down by decimals.
func ToFloat(raw *big.Int, decimals float64) float64 {
	if raw == nil {
		return 0
	}

	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(decimals)).Float64()
	return f
}

// GetPositions fetches outcome token holdings from the Polymarket Data API.
func (c *Client) GetPositions(ctx context.Context, address common.Address) (positions []Position, err error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.01", c.dataAPIURL, address.Hex())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var apiPositions []dataAPIPosition
	err = json.NewDecoder(resp.Body).Decode(&apiPositions)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	positions = make([]Position, 0, len(apiPositions))
	for _, pos := range apiPositions {
		if pos.Size <= 0 {
			continue
		}
		positions = append(positions, Position{
			MarketSlug:   pos.Slug,
			ConditionID:  pos.ConditionID,
			Title:        pos.Title,
			Outcome:      pos.Outcome,
			Size:         pos.Size,
			Value:        pos.CurrentValue,
			InitialValue: pos.InitialValue,
		})
	}

	return positions, nil
}
