package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func SweepCmd(connect connector) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Queue a deadline sweep to run now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, func(b *backend) error {
				id, err := b.Scheduler.EnqueueSweepNow(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to queue sweep: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deadline sweep queued as %s.\n", id)
				return nil
			})
		},
	}
}
