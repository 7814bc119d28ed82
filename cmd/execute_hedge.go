package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/internal/app"
	"github.com/mselser95/polymarket-hedge/internal/pairs"
	"github.com/mselser95/polymarket-hedge/internal/storage"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var executeHedgeCmd = &cobra.Command{
	Use:   "execute-hedge",
	Short: "Execute a hedge pair once",
	Long: `Splits --amount USDC.e in the target and cover markets, keeps the chosen
position of each and sells the opposite tokens on the CLOB.

Either pass --pair to load both legs from PORTFOLIOS_PATH, or give the legs explicitly:

  polymarket-hedge execute-hedge \
    --target-market 516710 --target-position YES \
    --cover-market 516711 --cover-position NO \
    --amount 10

Use --skip-clob-sell to keep both sides of each split.`,
	RunE: runExecuteHedge,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	hedgePairID         string
	hedgeTargetMarket   string
	hedgeTargetPosition string
	hedgeCoverMarket    string
	hedgeCoverPosition  string
	hedgeAmount         float64
	hedgeSkipSell       bool
	hedgeJSON           bool
	hedgePassword       string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(executeHedgeCmd)

	f := executeHedgeCmd.Flags()
	f.StringVar(&hedgePairID, "pair", "", "Pair id from the portfolios file")
	f.StringVar(&hedgeTargetMarket, "target-market", "", "Target market id (numeric Gamma market id)")
	f.StringVar(&hedgeTargetPosition, "target-position", "YES", "Position to keep in the target market")
	f.StringVar(&hedgeCoverMarket, "cover-market", "", "Cover market id (numeric Gamma market id)")
	f.StringVar(&hedgeCoverPosition, "cover-position", "YES", "Position to keep in the cover market")
	f.Float64VarP(&hedgeAmount, "amount", "a", 0, "USDC.e split per leg")
	f.BoolVar(&hedgeSkipSell, "skip-clob-sell", false, "Keep both outcome tokens of each split")
	f.BoolVar(&hedgeJSON, "json", false, "Print the result as JSON")
	f.StringVar(&hedgePassword, "password", "", "Keystore password (default $KEYSTORE_PASSWORD)")
}

func runExecuteHedge(cmd *cobra.Command, args []string) error {
	req := buildHedgeRequest()

	password := passwordFrom(hedgePassword)
	if password == "" {
		return errors.New("keystore password required: use --password or KEYSTORE_PASSWORD")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	sess, err := app.LoadSession(cfg.KeystorePath, password, logger)
	if err != nil {
		return err
	}
	defer sess.Lock()

	stack, err := app.NewStack(cfg, logger, sess, nil)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	defer func() {
		_ = stack.Close()
	}()

	locker, err := app.NewLocker(cfg, logger)
	if err != nil {
		return fmt.Errorf("setup locker: %w", err)
	}
	if closer, ok := locker.(io.Closer); ok {
		defer func() {
			_ = closer.Close()
		}()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	err = completeFromPair(ctx, req, stack.Pairs)
	if err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, cfg.LockWait)
	release, err := locker.Acquire(lockCtx, strings.ToLower(sess.Address().Hex()))
	cancel()
	if err != nil {
		return fmt.Errorf("another execution holds the account: %w", err)
	}
	defer release()

	logger.Info("execute-hedge-starting",
		zap.String("pair-id", req.PairID),
		zap.String("target-market", req.TargetMarketID),
		zap.String("cover-market", req.CoverMarketID),
		zap.Float64("amount", req.AmountPerPosition),
		zap.Bool("skip-clob-sell", req.SkipClobSell))

	// legs keep running after ^C; stopping midway strands split collateral
	result, err := stack.Engine.Execute(context.WithoutCancel(ctx), req)
	if err != nil {
		var precondition *types.PreconditionError
		if errors.As(err, &precondition) {
			return fmt.Errorf("not executed: %w", err)
		}
		return err
	}

	err = printResult(os.Stdout, req, &result, hedgeJSON)
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("execution %s finished with status %s", result.ExecutionID, result.Status)
	}

	return nil
}

func buildHedgeRequest() *types.ExecutionRequest {
	return &types.ExecutionRequest{
		PairID:            hedgePairID,
		TargetMarketID:    hedgeTargetMarket,
		TargetPosition:    types.ParsePosition(hedgeTargetPosition),
		CoverMarketID:     hedgeCoverMarket,
		CoverPosition:     types.ParsePosition(hedgeCoverPosition),
		AmountPerPosition: hedgeAmount,
		SkipClobSell:      hedgeSkipSell,
	}
}

// completeFromPair fills missing legs from the pair source, or derives a pair id
// when the legs were given explicitly.
func completeFromPair(ctx context.Context, req *types.ExecutionRequest, source *pairs.Source) error {
	if req.PairID == "" {
		req.PairID = pairs.DerivePairID(req.TargetMarketID, req.TargetPosition, req.CoverMarketID, req.CoverPosition)
		return nil
	}

	if req.TargetMarketID != "" && req.CoverMarketID != "" {
		return nil
	}

	if source == nil {
		return errors.New("--pair without explicit markets requires PORTFOLIOS_PATH")
	}

	pair, err := source.Get(ctx, req.PairID)
	if err != nil {
		return err
	}

	req.TargetMarketID = pair.Target.MarketID
	req.TargetPosition = pair.Target.Position
	req.CoverMarketID = pair.Cover.MarketID
	req.CoverPosition = pair.Cover.Position

	return nil
}

func printResult(out io.Writer, req *types.ExecutionRequest, result *types.TradeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(out, "Execution %s\n\n", result.ExecutionID)
	storage.RenderResult(out, req, result)
	return nil
}
