package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/crypto"
)

// fingerprintCmd prints the local identity's fingerprint without touching
// the directory.
func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print your identity fingerprint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			acct, err := mgr.LoadIdentity(cmd.Context(), passphrase)
			if err != nil {
				return fmt.Errorf("loading identity: %w", err)
			}
			fmt.Printf("%s: %s\n", acct.Name, crypto.Fingerprint(acct.Identity.IKXPub.Slice()))
			return nil
		},
	}
}
