package hedge

import (
	"fmt"
	"math"
	"strings"

	"github.com/mselser95/polymarket-hedge/pkg/types"
)

// priceEpsilon absorbs float error in tick-rounded prices.
const priceEpsilon = 1e-9

// Aggregation is everything the aggregator needs to build a TradeResult.
type Aggregation struct {
	ExecutionID string
	Request     *types.ExecutionRequest
	Target      *LegRun
	Cover       *LegRun
	// Pair is the quoted pair context. Nil disables the price check.
	Pair           *types.HedgePair
	PriceTolerance float64
	FinalBalances  types.Balances
	// BalancesErr is set when the final balance read failed.
	BalancesErr error
}

// Aggregate merges both leg runs into the result returned to the caller.
func Aggregate(in *Aggregation) types.TradeResult {
	target := in.Target.Outcome()
	cover := in.Cover.Outcome()

	result := types.TradeResult{
		Success:       target.Succeeded() && cover.Succeeded(),
		Target:        target,
		Cover:         cover,
		TotalSpent:    totalSpent(in.Target, in.Cover),
		FinalBalances: in.FinalBalances,
		ExecutionID:   in.ExecutionID,
	}

	var warnings []string
	for _, run := range []*LegRun{in.Target, in.Cover} {
		if run.Unhedged() {
			warnings = append(warnings, unhedgedWarning(run, in.Pair))
			WarningsTotal.WithLabelValues("unhedged").Inc()
		}
		if run.PendingTx != "" {
			warnings = append(warnings, pendingWarning(run, in.Pair))
			WarningsTotal.WithLabelValues("pending-tx").Inc()
		}
	}

	if msg, ok := priceWarning(in); ok {
		warnings = append(warnings, msg)
		WarningsTotal.WithLabelValues("price-deviation").Inc()
	}

	if in.BalancesErr != nil {
		warnings = append(warnings, fmt.Sprintf("final balances unavailable: %v", in.BalancesErr))
		WarningsTotal.WithLabelValues("balances").Inc()
	}

	result.Warnings = warnings
	result.Status = classify(result.Success, in.Target, in.Cover)

	return result
}

// totalSpent sums the amounts of legs whose split confirmed.
func totalSpent(runs ...*LegRun) float64 {
	total := 0.0
	for _, run := range runs {
		if run.Committed() {
			total += run.Request.Amount
		}
	}
	return total
}

// classify derives the status from the legs, not from the warning list.
func classify(success bool, runs ...*LegRun) types.ExecutionStatus {
	if success {
		return types.StatusSuccess
	}

	for _, run := range runs {
		if run.Committed() || run.PendingTx != "" {
			return types.StatusPartial
		}
	}

	return types.StatusFailed
}

func unhedgedWarning(run *LegRun, pair *types.HedgePair) string {
	unwanted := run.Request.Position.Opposite()
	msg := fmt.Sprintf("position not fully hedged — you are holding unsold %s tokens for %s (split tx %s)",
		unwanted, legLabel(run.Request, pair), run.SplitTx)

	if run.Err != nil {
		msg += ": " + run.Err.Error()
	}

	return msg
}

func pendingWarning(run *LegRun, pair *types.HedgePair) string {
	return fmt.Sprintf("split transaction %s for %s was broadcast but not confirmed; check it on-chain before retrying",
		run.PendingTx, legLabel(run.Request, pair))
}

// legLabel names a leg by market id, adding the question when the pair is known.
func legLabel(req types.LegRequest, pair *types.HedgePair) string {
	label := fmt.Sprintf("%s leg market %s", req.Role, req.MarketID)

	quoted, ok := quotedLeg(req, pair)
	if ok && quoted.Question != "" {
		label += fmt.Sprintf(" (%q)", quoted.Question)
	}

	return label
}

func quotedLeg(req types.LegRequest, pair *types.HedgePair) (types.PairLeg, bool) {
	if pair == nil {
		return types.PairLeg{}, false
	}

	leg := pair.Target
	if req.Role == types.RoleCover {
		leg = pair.Cover
	}

	if leg.MarketID != req.MarketID {
		return types.PairLeg{}, false
	}

	return leg, true
}

// priceWarning compares the realized cost of each kept position with the quote.
// Splitting costs 1.00 per token pair, so the kept side costs 1 minus the sell price.
// The discount the seller applied below its quote is expected and never counts.
func priceWarning(in *Aggregation) (string, bool) {
	if in.Pair == nil || in.PriceTolerance < 0 {
		return "", false
	}

	runs := []*LegRun{in.Target, in.Cover}
	var deviations []string

	for _, run := range runs {
		if run.State != StateDone || run.Order == nil {
			return "", false
		}

		quoted, ok := quotedLeg(run.Request, in.Pair)
		if !ok || quoted.Price <= 0 {
			return "", false
		}

		sellPrice := run.Order.RealizedPrice
		if sellPrice <= 0 {
			sellPrice = run.Order.Price
		}
		realized := 1 - sellPrice

		if costDeviation(realized, quoted.Price, run.Order) > in.PriceTolerance+priceEpsilon {
			deviations = append(deviations, fmt.Sprintf("%s %s %.4f vs quoted %.4f",
				run.Request.Role, run.Request.Position, realized, quoted.Price))
		}
	}

	if len(deviations) == 0 {
		return "", false
	}

	return "realized prices differ from quote: " + strings.Join(deviations, ", "), true
}

// costDeviation is the distance of realized from the costs an unmoved market
// yields: quoted when filled at the book quote, quoted plus the discount when
// filled at the limit.
func costDeviation(realized, quoted float64, order *types.SellOrder) float64 {
	discount := 0.0
	if order.Quote > 0 {
		discount = order.Quote - order.Price
	}

	lo := math.Min(quoted, quoted+discount)
	hi := math.Max(quoted, quoted+discount)

	switch {
	case realized < lo:
		return lo - realized
	case realized > hi:
		return realized - hi
	default:
		return 0
	}
}
