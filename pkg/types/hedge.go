package types

import (
	"strings"
	"time"
)

// Position is the outcome side a leg intends to keep.
type Position string

const (
	PositionYes Position = "YES"
	PositionNo  Position = "NO"
)

// Valid reports whether p is YES or NO.
func (p Position) Valid() bool {
	return p == PositionYes || p == PositionNo
}

// Opposite returns the outcome that gets sold after the split.
func (p Position) Opposite() Position {
	if p == PositionYes {
		return PositionNo
	}
	return PositionYes
}

// ParsePosition accepts YES/NO in any case.
func ParsePosition(s string) Position {
	return Position(strings.ToUpper(strings.TrimSpace(s)))
}

// LegRole distinguishes the two legs of a pair.
type LegRole string

const (
	RoleTarget LegRole = "target"
	RoleCover  LegRole = "cover"
)

// PairLeg is one side of a hedge pair as quoted by the pair source.
type PairLeg struct {
	MarketID string   `json:"market_id"`
	Position Position `json:"position"`
	Question string   `json:"question"`
	Price    float64  `json:"price"`
}

// HedgePair couples a target position with a cover position.
type HedgePair struct {
	PairID string  `json:"pair_id"`
	Target PairLeg `json:"target"`
	Cover  PairLeg `json:"cover"`
}

// ExecutionRequest is the input accepted by the engine.
type ExecutionRequest struct {
	PairID            string   `json:"pair_id"`
	TargetMarketID    string   `json:"target_market_id"`
	TargetPosition    Position `json:"target_position"`
	CoverMarketID     string   `json:"cover_market_id"`
	CoverPosition     Position `json:"cover_position"`
	AmountPerPosition float64  `json:"amount_per_position"`
	SkipClobSell      bool     `json:"skip_clob_sell"`
}

// Leg returns the per-leg view of the request.
func (r *ExecutionRequest) Leg(role LegRole) LegRequest {
	if role == RoleCover {
		return LegRequest{
			Role:     RoleCover,
			MarketID: r.CoverMarketID,
			Position: r.CoverPosition,
			Amount:   r.AmountPerPosition,
			SkipSell: r.SkipClobSell,
		}
	}

	return LegRequest{
		Role:     RoleTarget,
		MarketID: r.TargetMarketID,
		Position: r.TargetPosition,
		Amount:   r.AmountPerPosition,
		SkipSell: r.SkipClobSell,
	}
}

// LegRequest is the input of a single leg execution.
type LegRequest struct {
	Role     LegRole
	MarketID string
	Position Position
	Amount   float64
	SkipSell bool
}

// LegOutcome is the caller-visible result of one leg.
type LegOutcome struct {
	SplitTx     string `json:"split_tx,omitempty"`
	ClobOrderID string `json:"clob_order_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Succeeded reports whether the leg finished without error.
func (o LegOutcome) Succeeded() bool {
	return o.Error == ""
}

// Balances is a point-in-time read of the account's holdings.
type Balances struct {
	POL   float64 `json:"pol"`
	USDCe float64 `json:"usdc_e"`
}

// ExecutionStatus classifies a TradeResult.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusPartial ExecutionStatus = "partial"
	StatusFailed  ExecutionStatus = "failed"
)

// TradeResult is the aggregated outcome of a pair execution.
// It is built once and never mutated afterwards.
type TradeResult struct {
	Success       bool            `json:"success"`
	Target        LegOutcome      `json:"target"`
	Cover         LegOutcome      `json:"cover"`
	TotalSpent    float64         `json:"total_spent"`
	FinalBalances Balances        `json:"final_balances"`
	Warnings      []string        `json:"warnings,omitempty"`
	ExecutionID   string          `json:"execution_id,omitempty"`
	Status        ExecutionStatus `json:"status,omitempty"`
}

// SellOrder describes a CLOB sell submitted for the unwanted outcome.
type SellOrder struct {
	OrderID string
	// Price is the limit price sent to the book.
	Price float64
	// Quote is the book price Price was derived from, 0 when unknown.
	Quote float64
	// RealizedPrice is the average fill price when the order matched immediately, else 0.
	RealizedPrice float64
	Status        string
}

// ExecutionRecord is a journal entry for a finished execution.
type ExecutionRecord struct {
	ExecutionID string           `json:"execution_id"`
	Request     ExecutionRequest `json:"request"`
	Result      TradeResult      `json:"result"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// ExecutionEvent is a progress notification published while a pair executes.
type ExecutionEvent struct {
	ExecutionID string    `json:"execution_id"`
	Role        LegRole   `json:"role,omitempty"`
	Stage       string    `json:"stage"`
	TxHash      string    `json:"tx_hash,omitempty"`
	OrderID     string    `json:"order_id,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
