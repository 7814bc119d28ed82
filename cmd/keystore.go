package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mselser95/polymarket-hedge/pkg/session"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "Manage the encrypted account keystore",
}

//nolint:gochecknoglobals // Cobra boilerplate
var keystoreCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Encrypt a private key into a keystore file",
	Long: `Reads the hex private key from POLYMARKET_PRIVATE_KEY and writes it encrypted
(PBKDF2-SHA256 + AES-256-GCM) to --out, default KEYSTORE_PATH.

Remove POLYMARKET_PRIVATE_KEY from your environment and .env afterwards.`,
	RunE: runKeystoreCreate,
}

//nolint:gochecknoglobals // Cobra boilerplate
var (
	keystoreOut      string
	keystorePassword string
	keystoreForce    bool
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.AddCommand(keystoreCreateCmd)

	keystoreCreateCmd.Flags().StringVarP(&keystoreOut, "out", "o", "", "Keystore file to write (default $KEYSTORE_PATH)")
	keystoreCreateCmd.Flags().StringVar(&keystorePassword, "password", "", "Encryption password (default $KEYSTORE_PASSWORD)")
	keystoreCreateCmd.Flags().BoolVar(&keystoreForce, "force", false, "Overwrite an existing keystore")
}

func runKeystoreCreate(cmd *cobra.Command, args []string) error {
	path := keystoreOut
	if path == "" {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.KeystorePath
	}

	return createKeystore(os.Stdout, path, os.Getenv("POLYMARKET_PRIVATE_KEY"), passwordFrom(keystorePassword), keystoreForce)
}

func createKeystore(out io.Writer, path, privateKeyHex, password string, force bool) error {
	if privateKeyHex == "" {
		return errors.New("POLYMARKET_PRIVATE_KEY not set")
	}

	if password == "" {
		return errors.New("password required: use --password or KEYSTORE_PASSWORD")
	}

	if !force {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	ks, err := session.Encrypt(privateKeyHex, password)
	if err != nil {
		return err
	}

	err = ks.Save(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Keystore written to %s\n", path)
	fmt.Fprintf(out, "Address: %s\n", ks.Address)

	return nil
}
