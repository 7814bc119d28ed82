package hedge

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrBalanceUnavailable wraps failures of the pre-execution balance read.
var ErrBalanceUnavailable = errors.New("balance unavailable")

const (
	defaultLegTimeout     = 3 * time.Minute
	defaultBalanceTimeout = 15 * time.Second
)

// Account is the signing identity executions run under.
// Key returns types.ErrSessionLocked while the account is locked.
type Account interface {
	Key() (*ecdsa.PrivateKey, error)
	Address() common.Address
}

// BalanceReader reads POL and USDC.e balances for an address.
type BalanceReader interface {
	Snapshot(ctx context.Context, address common.Address) (types.Balances, error)
}

// PairSource supplies quoted pair context.
type PairSource interface {
	Get(ctx context.Context, pairID string) (*types.HedgePair, error)
}

// Recorder journals finished executions.
type Recorder interface {
	StoreExecution(ctx context.Context, record *types.ExecutionRecord) error
}

// Engine executes hedge pairs.
type Engine struct {
	account        Account
	balances       BalanceReader
	legs           *LegExecutor
	pairs          PairSource
	recorder       Recorder
	observer       Observer
	minOrderSize   float64
	legTimeout     time.Duration
	concurrent     bool
	priceTolerance float64
	logger         *zap.Logger
}

// Config holds engine configuration.
type Config struct {
	Account  Account
	Balances BalanceReader
	Splitter Splitter
	// Seller may be nil, in which case every non-skipped sell fails.
	Seller Seller
	// Pairs, Recorder and Observer are optional.
	Pairs    PairSource
	Recorder Recorder
	Observer Observer

	MinOrderSize   float64
	LegTimeout     time.Duration
	Concurrent     bool
	PriceTolerance float64
	Logger         *zap.Logger
}

// New creates a new hedge engine.
func New(cfg *Config) (e *Engine, err error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Account == nil {
		return nil, errors.New("account cannot be nil")
	}

	if cfg.Balances == nil {
		return nil, errors.New("balance reader cannot be nil")
	}

	if cfg.MinOrderSize < 0 {
		return nil, errors.New("min order size cannot be negative")
	}

	legs, err := NewLegExecutor(cfg.Splitter, cfg.Seller, cfg.Observer, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create leg executor: %w", err)
	}

	legTimeout := cfg.LegTimeout
	if legTimeout <= 0 {
		legTimeout = defaultLegTimeout
	}

	e = &Engine{
		account:        cfg.Account,
		balances:       cfg.Balances,
		legs:           legs,
		pairs:          cfg.Pairs,
		recorder:       cfg.Recorder,
		observer:       cfg.Observer,
		minOrderSize:   cfg.MinOrderSize,
		legTimeout:     legTimeout,
		concurrent:     cfg.Concurrent,
		priceTolerance: cfg.PriceTolerance,
		logger:         cfg.Logger,
	}

	return e, nil
}

// Execute runs both legs of a pair and returns the aggregated result.
// A non-nil error means no leg was started; once legs run, every failure is
// reported inside the TradeResult instead.
func (e *Engine) Execute(ctx context.Context, req *types.ExecutionRequest) (result types.TradeResult, err error) {
	err = ValidateRequest(req)
	if err != nil {
		return types.TradeResult{}, err
	}

	// Both legs sign with this key, even if the account is locked meanwhile.
	key, err := e.account.Key()
	if err != nil {
		return types.TradeResult{}, err
	}
	address := e.account.Address()

	balCtx, balCancel := context.WithTimeout(ctx, defaultBalanceTimeout)
	snapshot, err := e.balances.Snapshot(balCtx, address)
	balCancel()
	if err != nil {
		return types.TradeResult{}, fmt.Errorf("%w: %w", ErrBalanceUnavailable, err)
	}

	verdict := Validate(snapshot.USDCe, req.AmountPerPosition, e.minOrderSize)
	if verdict != VerdictOK {
		PreconditionRejectionsTotal.WithLabelValues(string(verdict)).Inc()
		e.logger.Warn("execution-rejected",
			zap.String("pair-id", req.PairID),
			zap.String("reason", string(verdict)),
			zap.Float64("amount", req.AmountPerPosition),
			zap.Float64("balance", snapshot.USDCe))
		return types.TradeResult{}, verdict.Err(snapshot.USDCe, req.AmountPerPosition, e.minOrderSize)
	}

	executionID := uuid.New().String()
	startedAt := time.Now()
	logger := e.logger.With(zap.String("execution-id", executionID), zap.String("pair-id", req.PairID))

	logger.Info("execution-starting",
		zap.String("target-market-id", req.TargetMarketID),
		zap.String("target-position", string(req.TargetPosition)),
		zap.String("cover-market-id", req.CoverMarketID),
		zap.String("cover-position", string(req.CoverPosition)),
		zap.Float64("amount", req.AmountPerPosition),
		zap.Bool("skip-clob-sell", req.SkipClobSell),
		zap.Bool("concurrent", e.concurrent))
	e.publish(executionID, "executing")

	target, cover := e.runLegs(ctx, executionID, key, req)

	pair := e.lookupPair(ctx, req, logger)

	// Final balances are read even when the caller has gone away.
	finalCtx, finalCancel := context.WithTimeout(context.WithoutCancel(ctx), defaultBalanceTimeout)
	final, balErr := e.balances.Snapshot(finalCtx, address)
	finalCancel()
	if balErr != nil {
		logger.Warn("final-balances-read-failed", zap.Error(balErr))
	}

	result = Aggregate(&Aggregation{
		ExecutionID:    executionID,
		Request:        req,
		Target:         target,
		Cover:          cover,
		Pair:           pair,
		PriceTolerance: e.priceTolerance,
		FinalBalances:  final,
		BalancesErr:    balErr,
	})

	finishedAt := time.Now()
	ExecutionsTotal.WithLabelValues(string(result.Status)).Inc()
	ExecutionDuration.Observe(finishedAt.Sub(startedAt).Seconds())

	legErr := multierr.Combine(target.Err, cover.Err)
	logger.Info("execution-complete",
		zap.String("status", string(result.Status)),
		zap.Bool("success", result.Success),
		zap.Float64("total-spent", result.TotalSpent),
		zap.Int("warning-count", len(result.Warnings)),
		zap.NamedError("leg-errors", legErr),
		zap.Duration("duration", finishedAt.Sub(startedAt)))
	e.publish(executionID, string(result.Status))

	journaled := result
	journaled.Warnings = append([]string(nil), result.Warnings...)
	e.record(ctx, &types.ExecutionRecord{
		ExecutionID: executionID,
		Request:     *req,
		Result:      journaled,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
	}, logger)

	return result, nil
}

// runLegs executes target then cover, or both at once in concurrent mode.
// Neither leg's failure prevents the other from being attempted.
func (e *Engine) runLegs(
	ctx context.Context,
	executionID string,
	key *ecdsa.PrivateKey,
	req *types.ExecutionRequest,
) (target, cover *LegRun) {
	target = newLegRun(req.Leg(types.RoleTarget))
	cover = newLegRun(req.Leg(types.RoleCover))

	if !e.concurrent {
		e.runLeg(ctx, executionID, key, target)
		e.runLeg(ctx, executionID, key, cover)
		return target, cover
	}

	// No shared cancellation: a failing leg must not cancel its sibling.
	var g errgroup.Group
	g.Go(func() error {
		e.runLeg(ctx, executionID, key, target)
		return nil
	})
	g.Go(func() error {
		e.runLeg(ctx, executionID, key, cover)
		return nil
	})
	_ = g.Wait()

	return target, cover
}

func (e *Engine) runLeg(ctx context.Context, executionID string, key *ecdsa.PrivateKey, run *LegRun) {
	defer recoverLeg(run, e.logger)

	if err := ctx.Err(); err != nil {
		run.fail(StepStart, err)
		LegStepsTotal.WithLabelValues(string(run.Request.Role), string(StepStart), "cancelled").Inc()
		e.logger.Warn("leg-not-started",
			zap.String("execution-id", executionID),
			zap.String("role", string(run.Request.Role)),
			zap.Error(err))
		return
	}

	legCtx, cancel := context.WithTimeout(ctx, e.legTimeout)
	defer cancel()

	e.legs.Run(legCtx, executionID, key, run)
}

func (e *Engine) lookupPair(ctx context.Context, req *types.ExecutionRequest, logger *zap.Logger) *types.HedgePair {
	if e.pairs == nil {
		return nil
	}

	pair, err := e.pairs.Get(ctx, req.PairID)
	if err != nil {
		logger.Debug("pair-context-unavailable", zap.Error(err))
		return nil
	}

	return pair
}

func (e *Engine) record(ctx context.Context, record *types.ExecutionRecord, logger *zap.Logger) {
	if e.recorder == nil {
		return
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	err := e.recorder.StoreExecution(recCtx, record)
	if err != nil {
		logger.Error("execution-record-failed", zap.Error(err))
	}
}

func (e *Engine) publish(executionID, stage string) {
	if e.observer == nil {
		return
	}

	e.observer.Publish(types.ExecutionEvent{
		ExecutionID: executionID,
		Stage:       stage,
		Timestamp:   time.Now(),
	})
}
