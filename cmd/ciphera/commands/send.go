package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"ciphera/internal/domain"
)

// sendCmd encrypts and sends a message to <peer> through its session
// coordinator (spec §4.5).
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			peer := domain.Username(args[0])
			if err := mgr.SendMessage(cmd.Context(), passphrase, peer, []byte(args[1])); err != nil {
				return fmt.Errorf("sending message to %q: %w", peer, err)
			}
			fmt.Println("Message sent")
			return nil
		},
	}
}
