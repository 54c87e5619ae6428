package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/crypto"
	"ciphera/internal/domain"
)

// initCmd creates a new local identity: an Ed25519 signing key, an X25519
// DH key, a signed prekey, and a pool of one-time prekeys (spec §4.2).
func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <username>",
		Short: "Create a local identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			acct, err := mgr.CreateIdentity(cmd.Context(), passphrase, domain.Username(args[0]))
			if err != nil {
				return fmt.Errorf("creating identity: %w", err)
			}
			fmt.Printf("Identity created for %s\n", acct.Name)
			fmt.Printf("Fingerprint: %s\n", crypto.Fingerprint(acct.Identity.IKXPub.Slice()))
			return nil
		},
	}
}
