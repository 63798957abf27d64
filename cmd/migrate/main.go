package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/gatepass/gatepass/internal/config"
	"github.com/gatepass/gatepass/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string

	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the Gatepass postgres schema",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", "migrations", "directory holding the SQL migration files")

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration failed: %w", err)
			}
			return reportVersion(cmd, m)
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations, one by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			if err := m.Steps(-steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			return reportVersion(cmd, m)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	root.AddCommand(down)

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := openMigrator(cmd.Context(), dir)
			if err != nil {
				return err
			}
			return reportVersion(cmd, m)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "create [name]",
		Short: "Create a pair of empty migration files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return createMigration(cmd, dir, args[0])
		},
	})

	return root
}

func openMigrator(ctx context.Context, dir string) (*migrate.Migrate, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Store.Backend != "postgres" {
		return nil, fmt.Errorf("migrations only apply to the postgres backend, store.backend is %q", cfg.Store.Backend)
	}

	db, err := store.NewPostgres(ctx, cfg.Store.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB(), &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	return migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
}

func reportVersion(cmd *cobra.Command, m *migrate.Migrate) error {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		cmd.Println("schema version: none")
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		cmd.Printf("schema version: %d (dirty)\n", version)
	default:
		cmd.Printf("schema version: %d\n", version)
	}
	return nil
}

func createMigration(cmd *cobra.Command, dir, name string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	version, err := nextVersion(dir)
	if err != nil {
		return err
	}

	for _, f := range []struct{ suffix, stub string }{
		{"up", "-- Add migration SQL here\n"},
		{"down", "-- Add rollback SQL here\n"},
	} {
		path := filepath.Join(dir, fmt.Sprintf("%06d_%s.%s.sql", version, name, f.suffix))
		if err := os.WriteFile(path, []byte(f.stub), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		cmd.Println("created", path)
	}
	return nil
}

// nextVersion scans existing migration files for the highest numeric
// prefix. Counting files instead would drift whenever a pair is
// deleted by hand.
func nextVersion(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	highest := 0
	for _, entry := range entries {
		prefix, _, ok := strings.Cut(entry.Name(), "_")
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(prefix); err == nil && v > highest {
			highest = v
		}
	}
	return highest + 1, nil
}
