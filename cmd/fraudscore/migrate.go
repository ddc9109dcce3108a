package main

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/mbd888/fraudscore/internal/config"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate <command> [args]",
		Short: "Run artifact-store database migrations",
		Long: `Runs a goose command against DATABASE_URL.
Commands: up, down, status, version, redo, up-to <version>, down-to <version>`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL environment variable is required")
			}

			db, err := sql.Open("postgres", cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = db.Close() }()

			if err := db.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			if err := goose.RunContext(cmd.Context(), args[0], db, dir, args[1:]...); err != nil {
				return fmt.Errorf("migration %s failed: %w", args[0], err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "migrations", "Migrations directory")
	return cmd
}
