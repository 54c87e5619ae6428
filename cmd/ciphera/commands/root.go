// Package commands implements the ciphera CLI's command hierarchy: one
// cobra command per operation the cryptographic core exposes, wired
// against a single app.Manager built once in PersistentPreRunE.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ciphera/internal/app"
)

var (
	// Flags shared across all commands.
	homeDir    string
	relayURL   string
	passphrase string

	// mgr holds the wired Manager after PersistentPreRunE.
	mgr *app.Manager
)

// Execute loads .env/.env.local if present, initialises the application
// and runs the root cobra command.
func Execute() error {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "ciphera",
		Short: "End-to-end encrypted chat CLI",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if homeDir == "" {
				homeDir = os.Getenv("BACKUP_PATH")
			}
			if homeDir == "" {
				if h, err := os.UserHomeDir(); err == nil {
					homeDir = filepath.Join(h, ".ciphera")
				}
			}
			if err := os.MkdirAll(homeDir, 0o700); err != nil {
				return fmt.Errorf("creating config dir: %w", err)
			}
			if relayURL == "" {
				relayURL = os.Getenv("SERVER_URL")
			}
			if relayURL == "" {
				return fmt.Errorf("relay URL not set; pass --relay or set SERVER_URL")
			}

			mgr = app.NewManager(app.Config{Home: homeDir, RelayURL: relayURL})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if mgr != nil {
				mgr.Close()
			}
		},
	}

	root.PersistentFlags().StringVar(&homeDir, "home", "", "config directory (default: $BACKUP_PATH, else $HOME/.ciphera)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting your local keys")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "directory/mailbox relay URL, e.g. http://127.0.0.1:8080")

	root.AddCommand(
		initCmd(),
		registerCmd(),
		fingerprintCmd(),
		startSessionCmd(),
		acceptCmd(),
		sendCmd(),
		recvCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	root.SetContext(ctx)

	return root.Execute()
}

func requirePassphrase() error {
	if passphrase == "" {
		return fmt.Errorf("passphrase required (-p)")
	}
	return nil
}
