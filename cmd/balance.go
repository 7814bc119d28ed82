package cmd

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/mselser95/polymarket-hedge/pkg/session"
	"github.com/mselser95/polymarket-hedge/pkg/wallet"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check the account's balances and positions",
	Long: `Display the holdings of the keystore account (or --address):
- POL balance (for gas)
- USDC.e balance (split collateral)
- USDC.e allowance granted to the CTF contract
- Outcome token positions from the Polymarket Data API`,
	RunE: runBalance,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	showPositions  bool
	balanceAddress string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)

	balanceCmd.Flags().BoolVarP(&showPositions, "positions", "p", true, "Show active positions")
	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "Account to inspect (default: keystore address)")
}

func runBalance(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	address, err := balanceTarget(balanceAddress, cfg.KeystorePath)
	if err != nil {
		return err
	}

	rpc, err := ethclient.Dial(cfg.PolygonRPCURL)
	if err != nil {
		return fmt.Errorf("connect to Polygon: %w", err)
	}
	defer rpc.Close()

	client, err := wallet.NewClient(rpc, cfg.PolymarketDataAPIURL, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	balances, err := client.GetBalances(ctx, address)
	if err != nil {
		return err
	}

	out := os.Stdout
	printBalances(out, address, balances)

	if showPositions {
		positions, err := client.GetPositions(ctx, address)
		if err != nil {
			fmt.Fprintf(out, "\nError fetching positions: %v\n", err)
		} else {
			printPositions(out, positions)
		}
	}

	return nil
}

// balanceTarget prefers an explicit address over the keystore's.
func balanceTarget(flag, keystorePath string) (common.Address, error) {
	if flag != "" {
		if !common.IsHexAddress(flag) {
			return common.Address{}, fmt.Errorf("invalid address %q", flag)
		}
		return common.HexToAddress(flag), nil
	}

	ks, err := session.LoadKeystore(keystorePath)
	if err != nil {
		return common.Address{}, fmt.Errorf("load keystore: %w", err)
	}

	return common.HexToAddress(ks.Address), nil
}

func printBalances(out io.Writer, address common.Address, b *wallet.Balances) {
	fmt.Fprintf(out, "=== Wallet Balance Sheet ===\n\n")
	fmt.Fprintf(out, "Address:         %s\n", address.Hex())
	fmt.Fprintf(out, "POL:             %.6f\n", wallet.ToFloat(b.POL, 1e18))
	fmt.Fprintf(out, "USDC.e:          %.2f\n", wallet.ToFloat(b.USDCe, 1e6))

	unlimited := new(big.Int).Lsh(big.NewInt(1), 128)
	if b.CTFAllowance.Cmp(unlimited) > 0 {
		fmt.Fprintf(out, "CTF allowance:   unlimited\n")
	} else {
		fmt.Fprintf(out, "CTF allowance:   %.2f\n", wallet.ToFloat(b.CTFAllowance, 1e6))
	}

	if b.POL.Sign() == 0 {
		fmt.Fprintf(out, "\nNo POL for gas: splits will fail.\n")
	}
}

func printPositions(out io.Writer, positions []wallet.Position) {
	fmt.Fprintf(out, "\n=== Active Positions ===\n\n")

	if len(positions) == 0 {
		fmt.Fprintf(out, "No active positions\n")
		return
	}

	table := tablewriter.NewWriter(out)
	table.Header("Market", "Outcome", "Size", "Value", "Cost")

	var total float64
	for _, pos := range positions {
		_ = table.Append(
			pos.MarketSlug,
			pos.Outcome,
			fmt.Sprintf("%.2f", pos.Size),
			fmt.Sprintf("$%.2f", pos.Value),
			fmt.Sprintf("$%.2f", pos.InitialValue),
		)
		total += pos.Value
	}

	_ = table.Render()
	fmt.Fprintf(out, "Total position value: $%.2f\n", total)
}
