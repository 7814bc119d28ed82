package hedge

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

// ErrSellUnavailable is the leg error when no order-book client is configured.
var ErrSellUnavailable = errors.New("order book client unavailable")

// LegState is the tag of the per-leg state machine.
type LegState string

const (
	StateNotStarted   LegState = "not-started"
	StateSplitPending LegState = "split-pending"
	StateSplitDone    LegState = "split-done"
	StateSellPending  LegState = "sell-pending"
	StateDone         LegState = "done"
	StateFailed       LegState = "failed"
)

// LegStep names the step a failed leg stopped at.
type LegStep string

const (
	StepStart LegStep = "start"
	StepSplit LegStep = "split"
	StepSell  LegStep = "sell"
)

// Splitter converts collateral into a full set of outcome tokens for a market.
type Splitter interface {
	Split(ctx context.Context, key *ecdsa.PrivateKey, marketID string, amount float64) (txHash string, err error)
}

// Seller sells outcome tokens on the order book.
type Seller interface {
	Sell(
		ctx context.Context,
		key *ecdsa.PrivateKey,
		marketID string,
		outcome types.Position,
		amount float64,
	) (order types.SellOrder, err error)
}

// Observer receives progress events. Publish must not block.
type Observer interface {
	Publish(event types.ExecutionEvent)
}

// LegRun is the state of one leg. Only the goroutine executing the leg mutates it.
type LegRun struct {
	Request     types.LegRequest
	State       LegState
	FailedStep  LegStep
	Err         error
	SplitTx     string
	PendingTx   string
	Order       *types.SellOrder
	SellSkipped bool
}

func newLegRun(req types.LegRequest) *LegRun {
	return &LegRun{
		Request: req,
		State:   StateNotStarted,
	}
}

// Committed reports whether the split confirmed and collateral left the account.
func (r *LegRun) Committed() bool {
	return r.SplitTx != ""
}

// Unhedged reports whether the leg holds unsold unwanted tokens for a reason
// other than the caller asking to skip the sell.
func (r *LegRun) Unhedged() bool {
	if !r.Committed() {
		return false
	}

	if r.State == StateFailed && r.FailedStep == StepSell {
		return true
	}

	return r.SellSkipped && !r.Request.SkipSell
}

// Outcome projects the run onto the caller-visible result.
func (r *LegRun) Outcome() types.LegOutcome {
	outcome := types.LegOutcome{
		SplitTx: r.SplitTx,
	}

	if r.Order != nil && r.State == StateDone {
		outcome.ClobOrderID = r.Order.OrderID
	}

	if r.Err != nil {
		outcome.Error = r.Err.Error()
	}

	return outcome
}

// failedStep maps the state a leg was in to the step that broke.
func (r *LegRun) failedStep() LegStep {
	switch r.State {
	case StateSplitPending:
		return StepSplit
	case StateSplitDone, StateSellPending:
		return StepSell
	default:
		return StepStart
	}
}

func (r *LegRun) fail(step LegStep, err error) {
	r.State = StateFailed
	r.FailedStep = step
	r.Err = err
}

// LegExecutor runs the split-then-sell sequence for one leg.
type LegExecutor struct {
	splitter Splitter
	seller   Seller
	observer Observer
	logger   *zap.Logger
}

// NewLegExecutor creates a leg executor. seller and observer may be nil.
func NewLegExecutor(splitter Splitter, seller Seller, observer Observer, logger *zap.Logger) (e *LegExecutor, err error) {
	if splitter == nil {
		return nil, errors.New("splitter cannot be nil")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	e = &LegExecutor{
		splitter: splitter,
		seller:   seller,
		observer: observer,
		logger:   logger,
	}

	return e, nil
}

// Run drives run from NotStarted to Done or Failed, signing every step with key.
// Each step is attempted at most once.
func (e *LegExecutor) Run(ctx context.Context, executionID string, key *ecdsa.PrivateKey, run *LegRun) {
	req := run.Request
	start := time.Now()
	defer func() {
		LegDuration.WithLabelValues(string(req.Role)).Observe(time.Since(start).Seconds())
	}()

	logger := e.logger.With(
		zap.String("execution-id", executionID),
		zap.String("role", string(req.Role)),
		zap.String("market-id", req.MarketID),
		zap.String("position", string(req.Position)))

	run.State = StateSplitPending
	e.publish(executionID, req.Role, "split-pending", "", "", nil)
	logger.Info("leg-split-starting", zap.Float64("amount", req.Amount))

	txHash, err := e.splitter.Split(ctx, key, req.MarketID, req.Amount)
	if err != nil {
		var pending *types.PendingTxError
		if errors.As(err, &pending) {
			run.PendingTx = pending.TxHash
		}
		run.fail(StepSplit, err)
		LegStepsTotal.WithLabelValues(string(req.Role), string(StepSplit), "error").Inc()
		logger.Error("leg-split-failed", zap.Error(err), zap.String("pending-tx", run.PendingTx))
		e.publish(executionID, req.Role, "split-failed", run.PendingTx, "", err)
		return
	}

	run.SplitTx = txHash
	run.State = StateSplitDone
	LegStepsTotal.WithLabelValues(string(req.Role), string(StepSplit), "ok").Inc()
	CommittedUSDCTotal.Add(req.Amount)
	logger.Info("leg-split-confirmed", zap.String("tx-hash", txHash))
	e.publish(executionID, req.Role, "split-confirmed", txHash, "", nil)

	if req.SkipSell {
		run.SellSkipped = true
		run.State = StateDone
		LegStepsTotal.WithLabelValues(string(req.Role), string(StepSell), "skipped").Inc()
		logger.Info("leg-sell-skipped", zap.String("reason", "requested"))
		e.publish(executionID, req.Role, "sell-skipped", txHash, "", nil)
		return
	}

	if e.seller == nil {
		run.fail(StepSell, ErrSellUnavailable)
		LegStepsTotal.WithLabelValues(string(req.Role), string(StepSell), "error").Inc()
		logger.Warn("leg-sell-unavailable")
		e.publish(executionID, req.Role, "sell-failed", txHash, "", ErrSellUnavailable)
		return
	}

	run.State = StateSellPending
	unwanted := req.Position.Opposite()
	e.publish(executionID, req.Role, "sell-pending", txHash, "", nil)
	logger.Info("leg-sell-starting", zap.String("outcome", string(unwanted)))

	order, err := e.seller.Sell(ctx, key, req.MarketID, unwanted, req.Amount)
	if err != nil {
		run.fail(StepSell, err)
		LegStepsTotal.WithLabelValues(string(req.Role), string(StepSell), "error").Inc()
		logger.Error("leg-sell-failed", zap.Error(err), zap.String("split-tx", txHash))
		e.publish(executionID, req.Role, "sell-failed", txHash, "", err)
		return
	}

	run.Order = &order
	run.State = StateDone
	LegStepsTotal.WithLabelValues(string(req.Role), string(StepSell), "ok").Inc()
	logger.Info("leg-sell-placed",
		zap.String("order-id", order.OrderID),
		zap.Float64("price", order.Price),
		zap.String("status", order.Status))
	e.publish(executionID, req.Role, "sell-placed", txHash, order.OrderID, nil)
}

func (e *LegExecutor) publish(executionID string, role types.LegRole, stage, txHash, orderID string, err error) {
	if e.observer == nil {
		return
	}

	event := types.ExecutionEvent{
		ExecutionID: executionID,
		Role:        role,
		Stage:       stage,
		TxHash:      txHash,
		OrderID:     orderID,
		Timestamp:   time.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}

	e.observer.Publish(event)
}

// recoverLeg converts a panic inside a leg into a failure at the step it interrupted.
func recoverLeg(run *LegRun, logger *zap.Logger) {
	r := recover()
	if r == nil {
		return
	}

	err := fmt.Errorf("leg panicked: %v", r)
	run.fail(run.failedStep(), err)
	LegStepsTotal.WithLabelValues(string(run.Request.Role), string(run.FailedStep), "panic").Inc()
	logger.Error("leg-panic-recovered",
		zap.String("role", string(run.Request.Role)),
		zap.String("step", string(run.FailedStep)),
		zap.Error(err))
}
