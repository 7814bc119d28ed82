package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

// ConsoleStorage implements Storage by rendering each execution as a table.
type ConsoleStorage struct {
	out    io.Writer
	logger *zap.Logger
}

// NewConsoleStorage creates a new console storage writing to stdout.
func NewConsoleStorage(logger *zap.Logger) *ConsoleStorage {
	logger.Info("console-storage-initialized")
	return &ConsoleStorage{
		out:    os.Stdout,
		logger: logger,
	}
}

// StoreExecution prints the execution summary.
func (c *ConsoleStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	fmt.Fprintf(c.out, "\nHEDGE EXECUTION %s  pair=%s  %s\n",
		record.ExecutionID, record.Request.PairID, record.FinishedAt.Format("2006-01-02 15:04:05"))

	RenderResult(c.out, &record.Request, &record.Result)
	return nil
}

// RenderResult writes a per-leg table followed by totals and warnings.
func RenderResult(out io.Writer, req *types.ExecutionRequest, result *types.TradeResult) {
	table := tablewriter.NewWriter(out)
	table.Header("Leg", "Market", "Position", "Split Tx", "CLOB Order", "Error")

	legs := []struct {
		role    types.LegRole
		outcome types.LegOutcome
	}{
		{role: types.RoleTarget, outcome: result.Target},
		{role: types.RoleCover, outcome: result.Cover},
	}

	for _, leg := range legs {
		legReq := req.Leg(leg.role)
		_ = table.Append(
			string(leg.role),
			legReq.MarketID,
			string(legReq.Position),
			dash(leg.outcome.SplitTx),
			dash(leg.outcome.ClobOrderID),
			dash(leg.outcome.Error),
		)
	}

	_ = table.Render()

	fmt.Fprintf(out, "Status:       %s\n", result.Status)
	fmt.Fprintf(out, "Total spent:  $%.2f\n", result.TotalSpent)
	fmt.Fprintf(out, "Balances:     %.4f POL, %.2f USDC.e\n", result.FinalBalances.POL, result.FinalBalances.USDCe)
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "WARNING: %s\n", w)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Close is a no-op for console storage.
func (c *ConsoleStorage) Close() error {
	c.logger.Info("closing-console-storage")
	return nil
}
