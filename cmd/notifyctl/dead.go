package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/joshu-sajeev/coursenotify/internal/config"
	"github.com/spf13/cobra"
)

func DeadCmd(connect connector) *cobra.Command {
	deadCmd := &cobra.Command{
		Use:   "dead",
		Short: "Inspect and requeue dead jobs",
	}

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List dead jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, func(b *backend) error {
				jobs, total, err := b.Queue.ListByStatus(cmd.Context(), config.JobStatusDead, limit, offset)
				if err != nil {
					return fmt.Errorf("failed to list dead jobs: %w", err)
				}

				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No dead jobs.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tTYPE\tATTEMPTS\tUPDATED\tLAST ERROR")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						j.ID, j.Type, j.Attempts, j.UpdatedAt.UTC().Format(time.RFC3339), j.LastError)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "%d of %d dead jobs\n", len(jobs), total)
				return nil
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of jobs to show")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Number of jobs to skip")

	requeueCmd := &cobra.Command{
		Use:   "requeue [job-id]",
		Short: "Move a dead job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, connect, func(b *backend) error {
				if err := b.Queue.Requeue(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("failed to requeue %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s moved to pending.\n", args[0])
				return nil
			})
		},
	}

	deadCmd.AddCommand(listCmd)
	deadCmd.AddCommand(requeueCmd)
	return deadCmd
}
