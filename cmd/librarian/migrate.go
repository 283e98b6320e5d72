package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/librarydesk/librarian/internal/backend/local"
	"github.com/librarydesk/librarian/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the local backend schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *local.Migrator) error {
			n, err := m.Up(ctx)
			if err != nil {
				return err
			}
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s), schema at version %d\n", n, v)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *local.Migrator) error {
			if err := m.Down(ctx); err != nil {
				return err
			}
			v, err := m.Version(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back, schema at version %d\n", v)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *local.Migrator) error {
			states, err := m.Status(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tMIGRATION\tAPPLIED AT")
			for _, s := range states {
				applied := "pending"
				if s.Applied {
					applied = s.AppliedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Path, applied)
			}
			return w.Flush()
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
}

var errRemoteBackend = errors.New("this command needs the local backend (BACKEND_MODE=local)")

func withMigrator(ctx context.Context, fn func(context.Context, *local.Migrator) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Backend.Mode != config.BackendLocal {
		return errRemoteBackend
	}
	if err := os.MkdirAll(cfg.Data.Path, 0o750); err != nil {
		return err
	}

	db, err := local.OpenDB(cfg.Data.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := local.NewMigrator(db)
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, m)
}
