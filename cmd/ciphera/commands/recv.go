package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// recvCmd drains the local account's mailbox and decrypts every queued
// message through its sender's session coordinator (spec §4.6).
func recvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt queued messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			msgs, err := mgr.ReceiveMessages(cmd.Context(), passphrase)
			if err != nil {
				return fmt.Errorf("receiving messages: %w", err)
			}
			if len(msgs) == 0 {
				fmt.Println("No new messages")
				return nil
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s\n", m.From, string(m.Plaintext))
			}
			return nil
		},
	}
}
