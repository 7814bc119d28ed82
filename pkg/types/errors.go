package types

import (
	"errors"
	"fmt"
)

// ErrSessionLocked is returned when an execution is requested without an unlocked account.
var ErrSessionLocked = errors.New("session is locked")

// Precondition rejection reasons.
const (
	ReasonBelowMinimum        = "below-minimum"
	ReasonInsufficientBalance = "insufficient-balance"
)

// PreconditionError is returned when a request is rejected before any leg runs.
type PreconditionError struct {
	Reason       string
	Amount       float64
	Balance      float64
	MinOrderSize float64
}

func (e *PreconditionError) Error() string {
	switch e.Reason {
	case ReasonBelowMinimum:
		return fmt.Sprintf("amount %.2f is below minimum order size %.2f", e.Amount, e.MinOrderSize)
	case ReasonInsufficientBalance:
		return fmt.Sprintf("insufficient USDC.e balance: need %.2f, have %.2f", 2*e.Amount, e.Balance)
	default:
		return fmt.Sprintf("precondition failed: %s", e.Reason)
	}
}

// InvalidRequestError marks a malformed execution request.
type InvalidRequestError struct {
	Field   string
	Message string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Message)
}

// PendingTxError is returned when a transaction was broadcast but its receipt never arrived.
// The chain state is unknown and funds may be committed.
type PendingTxError struct {
	TxHash string
	Err    error
}

func (e *PendingTxError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed: %v", e.TxHash, e.Err)
}

func (e *PendingTxError) Unwrap() error {
	return e.Err
}

// OrderError represents an error that occurred during order placement or execution.
type OrderError struct {
	Code    string // API error code or internal error code
	Message string // Human-readable error message
	OrderID string // Order ID if available
	Side    string // YES or NO
}

func (e *OrderError) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("%s order failed (ID: %s): %s (%s)", e.Side, e.OrderID, e.Message, e.Code)
	}

	return fmt.Sprintf("%s order failed: %s (%s)", e.Side, e.Message, e.Code)
}

// Known Polymarket CLOB API error codes
const (
	ErrInvalidMinTickSize = "INVALID_ORDER_MIN_TICK_SIZE"
	ErrNotEnoughBalance   = "INVALID_ORDER_NOT_ENOUGH_BALANCE"
	ErrMarketNotReady     = "MARKET_NOT_READY"
	ErrUnknownStatus      = "UNKNOWN_STATUS"
)
