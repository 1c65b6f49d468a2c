package main

import (
	"context"

	"github.com/joshu-sajeev/coursenotify/internal/app"
	"github.com/joshu-sajeev/coursenotify/internal/job"
	"github.com/spf13/cobra"
)

// backend is what the queue commands operate on.
type backend struct {
	Queue     job.AdminQueue
	Scheduler job.AlertScheduler
	Close     func()
}

type connector func(ctx context.Context) (*backend, error)

func connectApp(ctx context.Context) (*backend, error) {
	a, err := app.New(ctx, "notifyctl")
	if err != nil {
		return nil, err
	}
	return &backend{Queue: a.Queue, Scheduler: a.Scheduler, Close: a.Close}, nil
}

func newRootCmd(connect connector) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "notifyctl",
		Short:        "Operate the course notification queue",
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(MigrateCmd())
	rootCmd.AddCommand(DeadCmd(connect))
	rootCmd.AddCommand(SweepCmd(connect))
	return rootCmd
}

// withBackend connects, runs fn and releases the connection.
func withBackend(cmd *cobra.Command, connect connector, fn func(*backend) error) error {
	b, err := connect(cmd.Context())
	if err != nil {
		return err
	}
	if b.Close != nil {
		defer b.Close()
	}
	return fn(b)
}
