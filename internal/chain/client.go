package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

const (
	PolygonChainID = int64(137)

	// USDC.e collateral on Polygon
	USDCeAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract, holds conditional tokens (ERC1155)
	CTFAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// NegRisk adapter splits positions of neg-risk markets
	NegRiskAdapterAddress = "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"

	// Gas limits used when estimation fails
	splitGasLimit    = uint64(300_000)
	approvalGasLimit = uint64(100_000)

	defaultReceiptTimeout = 2 * time.Minute
	defaultPollInterval   = 3 * time.Second

	usdcDecimals = 1e6
)

// Contract ABIs
//
//nolint:gochecknoglobals // parsed once in init
var (
	ctfABI     abi.ABI
	negRiskABI abi.ABI
	erc20ABI   abi.ABI
)

//nolint:gochecknoinits // ABI parsing
func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "splitPosition",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "partition", "type": "uint256[]"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	negRiskABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "splitPosition",
			"type": "function",
			"inputs": [
				{"name": "conditionId", "type": "bytes32"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": []
		}
	]`))
	if err != nil {
		panic("neg risk abi parse: " + err.Error())
	}

	erc20ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "approve",
			"type": "function",
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		},
		{
			"name": "allowance",
			"type": "function",
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// Backend is the subset of ethclient.Client used for transactions.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error)
}

// KeySource hands out the signing key of the unlocked account.
type KeySource interface {
	Key() (*ecdsa.PrivateKey, error)
}

// Client signs and submits CTF transactions.
type Client struct {
	backend        Backend
	keys           KeySource
	chainID        *big.Int
	receiptTimeout time.Duration
	pollInterval   time.Duration
	logger         *zap.Logger

	// serializes nonce assignment through broadcast
	sendMu sync.Mutex
}

// Config holds chain client configuration.
type Config struct {
	Backend        Backend
	Keys           KeySource
	ChainID        int64
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	Logger         *zap.Logger
}

// New creates a new chain client.
func New(cfg *Config) (c *Client, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Backend == nil {
		return nil, errors.New("backend cannot be nil")
	}

	if cfg.Keys == nil {
		return nil, errors.New("key source cannot be nil")
	}

	chainID := cfg.ChainID
	if chainID == 0 {
		chainID = PolygonChainID
	}

	receiptTimeout := cfg.ReceiptTimeout
	if receiptTimeout <= 0 {
		receiptTimeout = defaultReceiptTimeout
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	c = &Client{
		backend:        cfg.Backend,
		keys:           cfg.Keys,
		chainID:        big.NewInt(chainID),
		receiptTimeout: receiptTimeout,
		pollInterval:   pollInterval,
		logger:         cfg.Logger,
	}

	return c, nil
}

// ToUnits converts a USDC.e amount into 6-decimal base units.
func ToUnits(amount float64) (*big.Int, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, fmt.Errorf("invalid amount %v", amount)
	}

	return big.NewInt(int64(math.Round(amount * usdcDecimals))), nil
}

// Allowance returns the USDC.e allowance owner granted to spender.
func (c *Client) Allowance(ctx context.Context, owner, spender common.Address) (allowance *big.Int, err error) {
	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("pack allowance: %w", err)
	}

	token := common.HexToAddress(USDCeAddress)
	result, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call allowance: %w", err)
	}

	vals, err := erc20ABI.Unpack("allowance", result)
	if err != nil {
		return nil, fmt.Errorf("unpack allowance: %w", err)
	}
	if len(vals) == 0 {
		return nil, errors.New("empty allowance response")
	}

	allowance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance type %T", vals[0])
	}

	return allowance, nil
}

// EnsureAllowance approves spender for the maximum amount when the current
// allowance is below units. Returns the approval tx hash, or "" when none was needed.
func (c *Client) EnsureAllowance(ctx context.Context, spender common.Address, units *big.Int) (txHash string, err error) {
	key, err := c.keys.Key()
	if err != nil {
		return "", fmt.Errorf("signing key: %w", err)
	}

	return c.ensureAllowance(ctx, key, spender, units)
}

func (c *Client) ensureAllowance(ctx context.Context, key *ecdsa.PrivateKey, spender common.Address, units *big.Int) (string, error) {
	owner := crypto.PubkeyToAddress(key.PublicKey)

	allowance, err := c.Allowance(ctx, owner, spender)
	if err != nil {
		return "", err
	}

	if allowance.Cmp(units) >= 0 {
		c.logger.Debug("allowance-sufficient",
			zap.String("spender", spender.Hex()),
			zap.String("allowance", allowance.String()))
		return "", nil
	}

	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	data, err := erc20ABI.Pack("approve", spender, maxUint256)
	if err != nil {
		return "", fmt.Errorf("pack approve: %w", err)
	}

	c.logger.Info("allowance-approving", zap.String("spender", spender.Hex()))

	hash, err := c.sendAndWait(ctx, key, common.HexToAddress(USDCeAddress), data, approvalGasLimit, "approve")
	if err != nil {
		// An unconfirmed approval commits no collateral, so it is not reported as pending.
		return "", fmt.Errorf("approve USDC.e: %v", err) //nolint:errorlint // drops PendingTxError on purpose
	}

	return hash, nil
}

// SplitPosition signs with key and splits amount USDC.e into YES and NO tokens
// of conditionID. Neg-risk markets split through the NegRisk adapter.
func (c *Client) SplitPosition(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	conditionID string,
	amount float64,
	negRisk bool,
) (txHash string, err error) {
	if key == nil {
		return "", fmt.Errorf("signing key: %w", types.ErrSessionLocked)
	}

	condition, err := hexToBytes32(conditionID)
	if err != nil {
		return "", fmt.Errorf("invalid condition id: %w", err)
	}

	units, err := ToUnits(amount)
	if err != nil {
		return "", err
	}

	target := common.HexToAddress(CTFAddress)
	var data []byte
	if negRisk {
		target = common.HexToAddress(NegRiskAdapterAddress)
		data, err = negRiskABI.Pack("splitPosition", condition, units)
	} else {
		partition := []*big.Int{big.NewInt(1), big.NewInt(2)}
		data, err = ctfABI.Pack("splitPosition",
			common.HexToAddress(USDCeAddress),
			[32]byte{},
			condition,
			partition,
			units,
		)
	}
	if err != nil {
		return "", fmt.Errorf("pack split: %w", err)
	}

	_, err = c.ensureAllowance(ctx, key, target, units)
	if err != nil {
		return "", err
	}

	hash, err := c.sendAndWait(ctx, key, target, data, splitGasLimit, "split")
	if err != nil {
		return "", err
	}

	c.logger.Info("split-confirmed",
		zap.String("condition-id", conditionID),
		zap.Float64("amount", amount),
		zap.Bool("neg-risk", negRisk),
		zap.String("tx-hash", hash))

	return hash, nil
}

// sendAndWait broadcasts a transaction and waits for a successful receipt.
// A broadcast transaction whose receipt never arrives yields a PendingTxError.
func (c *Client) sendAndWait(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	to common.Address,
	data []byte,
	fallbackGas uint64,
	kind string,
) (string, error) {
	hash, err := c.send(ctx, key, to, data, fallbackGas)
	if err != nil {
		TransactionsTotal.WithLabelValues(kind, "send-error").Inc()
		return "", err
	}

	c.logger.Info("transaction-sent", zap.String("kind", kind), zap.String("tx-hash", hash.Hex()))

	start := time.Now()
	receipt, err := c.waitForReceipt(ctx, hash)
	ReceiptWaitDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		TransactionsTotal.WithLabelValues(kind, "pending").Inc()
		return hash.Hex(), &types.PendingTxError{TxHash: hash.Hex(), Err: err}
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		TransactionsTotal.WithLabelValues(kind, "reverted").Inc()
		return "", fmt.Errorf("%s tx %s reverted on-chain", kind, hash.Hex())
	}

	TransactionsTotal.WithLabelValues(kind, "confirmed").Inc()
	return hash.Hex(), nil
}

func (c *Client) send(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, data []byte, fallbackGas uint64) (common.Hash, error) {
	from := crypto.PubkeyToAddress(key.PublicKey)

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get gas price: %w", err)
	}

	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		c.logger.Warn("gas-estimate-failed", zap.Error(err), zap.Uint64("fallback-limit", fallbackGas))
		gasLimit = fallbackGas
	}
	// 20% buffer
	gasLimit = gasLimit * 12 / 10

	tx := ethtypes.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)

	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	err = c.backend.SendTransaction(ctx, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	return signed.Hash(), nil
}

// waitForReceipt polls for a transaction receipt until mined or timeout.
func (c *Client) waitForReceipt(ctx context.Context, hash common.Hash) (*ethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.backend.TransactionReceipt(ctx, hash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// hexToBytes32 converts a 0x-prefixed hex string to [32]byte.
func hexToBytes32(s string) ([32]byte, error) {
	raw := strings.TrimPrefix(s, "0x")
	if len(raw) != 64 {
		return [32]byte{}, fmt.Errorf("expected 64 hex chars, got %d", len(raw))
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return [32]byte{}, err
	}

	var arr [32]byte
	copy(arr[:], b)
	return arr, nil
}
