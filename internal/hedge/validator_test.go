package hedge

import (
	"errors"
	"math"
	"testing"

	"github.com/mselser95/polymarket-hedge/pkg/types"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		amount  float64
		min     float64
		want    Verdict
	}{
		{name: "ok", balance: 100, amount: 10, min: 5, want: VerdictOK},
		{name: "exact-balance", balance: 20, amount: 10, min: 5, want: VerdictOK},
		{name: "exact-minimum", balance: 100, amount: 5, min: 5, want: VerdictOK},
		{name: "one-cent-short", balance: 19.99, amount: 10, min: 5, want: VerdictInsufficientBalance},
		{name: "below-minimum", balance: 100, amount: 4.99, min: 5, want: VerdictBelowMinimum},
		// Both checks fail: the minimum wins.
		{name: "both-fail-minimum-first", balance: 3, amount: 4, min: 5, want: VerdictBelowMinimum},
		{name: "balance-only", balance: 3, amount: 5, min: 5, want: VerdictInsufficientBalance},
		{name: "zero-minimum", balance: 1, amount: 0.5, min: 0, want: VerdictOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.balance, tt.amount, tt.min)
			if got != tt.want {
				t.Errorf("Validate(%v, %v, %v) = %s, want %s", tt.balance, tt.amount, tt.min, got, tt.want)
			}
		})
	}
}

func TestValidate_Deterministic(t *testing.T) {
	for i := 0; i < 100; i++ {
		if got := Validate(3, 4, 5); got != VerdictBelowMinimum {
			t.Fatalf("iteration %d: got %s", i, got)
		}
	}
}

func TestVerdict_Err(t *testing.T) {
	if err := VerdictOK.Err(100, 10, 5); err != nil {
		t.Errorf("expected nil error for ok verdict, got %v", err)
	}

	err := VerdictInsufficientBalance.Err(19.99, 10, 5)

	var precondition *types.PreconditionError
	if !errors.As(err, &precondition) {
		t.Fatalf("expected PreconditionError, got %T", err)
	}

	if precondition.Reason != types.ReasonInsufficientBalance {
		t.Errorf("expected reason %s, got %s", types.ReasonInsufficientBalance, precondition.Reason)
	}

	if precondition.Balance != 19.99 || precondition.Amount != 10 {
		t.Errorf("unexpected fields: %+v", precondition)
	}
}

func TestValidateRequest(t *testing.T) {
	valid := func() *types.ExecutionRequest {
		return &types.ExecutionRequest{
			PairID:            "pair-1",
			TargetMarketID:    "100",
			TargetPosition:    types.PositionYes,
			CoverMarketID:     "200",
			CoverPosition:     types.PositionNo,
			AmountPerPosition: 10,
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *types.ExecutionRequest)
		wantField string
	}{
		{name: "valid-request", mutate: func(r *types.ExecutionRequest) {}},
		{name: "missing-pair-id", mutate: func(r *types.ExecutionRequest) { r.PairID = " " }, wantField: "pair_id"},
		{name: "missing-target", mutate: func(r *types.ExecutionRequest) { r.TargetMarketID = "" }, wantField: "target_market_id"},
		{name: "missing-cover", mutate: func(r *types.ExecutionRequest) { r.CoverMarketID = "" }, wantField: "cover_market_id"},
		{name: "same-market", mutate: func(r *types.ExecutionRequest) { r.CoverMarketID = "100" }, wantField: "cover_market_id"},
		{name: "bad-target-position", mutate: func(r *types.ExecutionRequest) { r.TargetPosition = "MAYBE" }, wantField: "target_position"},
		{name: "bad-cover-position", mutate: func(r *types.ExecutionRequest) { r.CoverPosition = "" }, wantField: "cover_position"},
		{name: "zero-amount", mutate: func(r *types.ExecutionRequest) { r.AmountPerPosition = 0 }, wantField: "amount_per_position"},
		{name: "negative-amount", mutate: func(r *types.ExecutionRequest) { r.AmountPerPosition = -1 }, wantField: "amount_per_position"},
		{name: "nan-amount", mutate: func(r *types.ExecutionRequest) { r.AmountPerPosition = math.NaN() }, wantField: "amount_per_position"},
		{name: "inf-amount", mutate: func(r *types.ExecutionRequest) { r.AmountPerPosition = math.Inf(1) }, wantField: "amount_per_position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			err := ValidateRequest(req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var invalid *types.InvalidRequestError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidRequestError, got %v", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("expected field %s, got %s", tt.wantField, invalid.Field)
			}
		})
	}

	if err := ValidateRequest(nil); err == nil {
		t.Error("expected error for nil request")
	}
}
