package hedge

import (
	"math"
	"strings"

	"github.com/mselser95/polymarket-hedge/pkg/types"
)

// Verdict is the outcome of the balance/precondition check.
type Verdict string

const (
	VerdictOK                  Verdict = "ok"
	VerdictBelowMinimum        Verdict = types.ReasonBelowMinimum
	VerdictInsufficientBalance Verdict = types.ReasonInsufficientBalance
)

// Validate decides whether a pair of amount-sized legs may start.
// The minimum order size is checked before the balance, so an amount that
// fails both is always reported as below-minimum.
func Validate(balance, amount, minOrderSize float64) Verdict {
	if amount < minOrderSize {
		return VerdictBelowMinimum
	}

	// Both legs split the same amount.
	if 2*amount > balance {
		return VerdictInsufficientBalance
	}

	return VerdictOK
}

// Err converts a non-ok verdict into a PreconditionError.
func (v Verdict) Err(balance, amount, minOrderSize float64) error {
	if v == VerdictOK {
		return nil
	}

	return &types.PreconditionError{
		Reason:       string(v),
		Amount:       amount,
		Balance:      balance,
		MinOrderSize: minOrderSize,
	}
}

// ValidateRequest checks the shape of a request before any network call.
func ValidateRequest(req *types.ExecutionRequest) error {
	if req == nil {
		return &types.InvalidRequestError{Field: "request", Message: "cannot be nil"}
	}

	if strings.TrimSpace(req.PairID) == "" {
		return &types.InvalidRequestError{Field: "pair_id", Message: "cannot be empty"}
	}

	if strings.TrimSpace(req.TargetMarketID) == "" {
		return &types.InvalidRequestError{Field: "target_market_id", Message: "cannot be empty"}
	}

	if strings.TrimSpace(req.CoverMarketID) == "" {
		return &types.InvalidRequestError{Field: "cover_market_id", Message: "cannot be empty"}
	}

	if req.TargetMarketID == req.CoverMarketID {
		return &types.InvalidRequestError{Field: "cover_market_id", Message: "must differ from target_market_id"}
	}

	if !req.TargetPosition.Valid() {
		return &types.InvalidRequestError{Field: "target_position", Message: "must be YES or NO"}
	}

	if !req.CoverPosition.Valid() {
		return &types.InvalidRequestError{Field: "cover_position", Message: "must be YES or NO"}
	}

	if math.IsNaN(req.AmountPerPosition) || math.IsInf(req.AmountPerPosition, 0) || req.AmountPerPosition <= 0 {
		return &types.InvalidRequestError{Field: "amount_per_position", Message: "must be a positive number"}
	}

	return nil
}
