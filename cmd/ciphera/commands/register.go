package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// registerCmd publishes the local account's public bundle to the relay
// (spec §4.2 step 4, spec §6 /create/).
func registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Publish your identity bundle to the relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			acct, err := mgr.Register(cmd.Context(), passphrase)
			if err != nil {
				return fmt.Errorf("registering with relay: %w", err)
			}
			fmt.Printf("Registered %s with the relay\n", acct.Name)
			return nil
		},
	}
}
