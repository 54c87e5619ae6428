package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// acceptCmd runs the responder side of X3DH for every pending
// session-initiation request addressed to the local account (spec §4.3).
func acceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept",
		Short: "Accept pending session requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requirePassphrase(); err != nil {
				return err
			}
			accepted, err := mgr.AcceptPendingSessions(cmd.Context(), passphrase)
			if err != nil {
				return fmt.Errorf("accepting pending sessions: %w", err)
			}
			if len(accepted) == 0 {
				fmt.Println("No pending session requests")
				return nil
			}
			for _, peer := range accepted {
				fmt.Printf("Session accepted from %s\n", peer)
			}
			return nil
		},
	}
}
