package main

import (
	"database/sql"
	"fmt"

	"github.com/joshu-sajeev/coursenotify/internal/storage/postgres"
	"github.com/joshu-sajeev/coursenotify/migrations"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

var migrateCommands = map[string]bool{"up": true, "down": true, "status": true, "version": true}

func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version]",
		Short:     "Apply or inspect the database schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), validMigrateCommand),
		ValidArgs: []string{"up", "down", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := postgres.LoadConfigFromEnv(cmd.Context())
			if err != nil {
				return err
			}
			db, err := sql.Open("postgres", cfg.DSN())
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer db.Close()

			if err := migrations.Run(cmd.Context(), db, command); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: done\n", command)
			return nil
		},
	}
}

func validMigrateCommand(_ *cobra.Command, args []string) error {
	if len(args) == 1 && !migrateCommands[args[0]] {
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
	return nil
}
