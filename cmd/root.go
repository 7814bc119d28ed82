package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mselser95/polymarket-hedge/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "polymarket-hedge",
	Short: "Polymarket hedge pair execution engine",
	Long: `Executes hedge pairs on Polymarket: for each of two markets it splits USDC.e
into YES and NO tokens on Polygon, keeps the wanted side and sells the other on the CLOB.

Run "serve" for the HTTP API, or "execute-hedge" for a single execution from the shell.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real environment variables take precedence
		_ = godotenv.Load()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration from the environment and builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, logger, nil
}

// passwordFrom returns the flag value, falling back to KEYSTORE_PASSWORD.
func passwordFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("KEYSTORE_PASSWORD")
}
