package cmd

import (
	"fmt"

	"github.com/mselser95/polymarket-hedge/internal/app"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hedge execution API",
	Long: `Starts the HTTP API, which exposes:
  POST /api/hedge/execute        execute a hedge pair
  POST /api/session/unlock       unlock the keystore
  POST /api/session/lock         drop the key from memory
  GET  /api/session              session state
  GET  /api/pairs/{pairID}       portfolio pair lookup
  GET  /ws/executions            live leg progress
  GET  /health, /ready, /metrics

The session starts locked unless --password or KEYSTORE_PASSWORD is given.`,
	RunE: runServe,
}

//nolint:gochecknoglobals // Cobra boilerplate
var servePassword string

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePassword, "password", "", "Keystore password to unlock at startup (default $KEYSTORE_PASSWORD)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, &app.Options{
		Password: passwordFrom(servePassword),
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
