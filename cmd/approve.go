package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/polymarket-hedge/internal/app"
	"github.com/mselser95/polymarket-hedge/internal/chain"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Grant the contracts used by hedge executions",
	Long: `Sends the one-time on-chain approvals a hedge execution relies on:

  USDC.e allowance    CTF contract and NegRisk adapter (split collateral)
  Outcome token use   CTF Exchange, NegRisk CTF Exchange and NegRisk adapter (CLOB sells)

Approvals already in place are skipped. Splits approve USDC.e on demand as well,
so running this first only moves that transaction out of the first execution.`,
	RunE: runApprove,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	approvePassword string
	approveSkipSell bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(approveCmd)

	approveCmd.Flags().StringVar(&approvePassword, "password", "", "Keystore password (default $KEYSTORE_PASSWORD)")
	approveCmd.Flags().BoolVar(&approveSkipSell, "skip-sell", false, "Only approve USDC.e, not outcome token transfers")
}

// approval is one contract permission requested by approve.
type approval struct {
	name    string
	address string
	erc1155 bool
}

func requiredApprovals(skipSell bool) []approval {
	approvals := []approval{
		{name: "USDC.e -> CTF", address: chain.CTFAddress},
		{name: "USDC.e -> NegRisk adapter", address: chain.NegRiskAdapterAddress},
	}

	if skipSell {
		return approvals
	}

	return append(approvals,
		approval{name: "CTF -> CTF Exchange", address: chain.CTFExchangeAddress, erc1155: true},
		approval{name: "CTF -> NegRisk CTF Exchange", address: chain.NegRiskCTFExchangeAddress, erc1155: true},
		approval{name: "CTF -> NegRisk adapter", address: chain.NegRiskAdapterAddress, erc1155: true},
	)
}

func runApprove(cmd *cobra.Command, args []string) error {
	password := passwordFrom(approvePassword)
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

	rpc, err := ethclient.Dial(cfg.PolygonRPCURL)
	if err != nil {
		return fmt.Errorf("connect to Polygon: %w", err)
	}
	defer rpc.Close()

	client, err := chain.New(&chain.Config{
		Backend: rpc,
		Keys:    sess,
		ChainID: cfg.ChainID,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "=== Approve Polymarket Contracts ===\n\n")
	fmt.Fprintf(out, "Account: %s\n\n", sess.Address().Hex())

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	return runApprovals(ctx, out, client, requiredApprovals(approveSkipSell))
}

// approver is the part of chain.Client that grants permissions.
type approver interface {
	EnsureAllowance(ctx context.Context, spender common.Address, units *big.Int) (string, error)
	EnsureApprovalForAll(ctx context.Context, operator common.Address) (string, error)
}

func runApprovals(ctx context.Context, out io.Writer, client approver, approvals []approval) error {
	// any positive allowance below max is topped up to max
	threshold := new(big.Int).Lsh(big.NewInt(1), 128)

	for _, a := range approvals {
		var (
			hash string
			err  error
		)

		target := common.HexToAddress(a.address)
		if a.erc1155 {
			hash, err = client.EnsureApprovalForAll(ctx, target)
		} else {
			hash, err = client.EnsureAllowance(ctx, target, threshold)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", a.name, err)
		}

		if hash == "" {
			fmt.Fprintf(out, "%-30s already approved\n", a.name)
			continue
		}

		fmt.Fprintf(out, "%-30s approved  https://polygonscan.com/tx/%s\n", a.name, hash)
	}

	fmt.Fprintf(out, "\nAll approvals in place.\n")
	return nil
}
