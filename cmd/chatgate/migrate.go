// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

package main

import (
	"fmt"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/chatgate/chatgate/internal/auth/sqlite"
	"github.com/chatgate/chatgate/internal/store"
)

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(configPath func() string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the credential schema",
		Long: `Apply or roll back PostgreSQL schema migrations. SQLite databases
are created with the current schema on open, so only "up" applies to them.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, configPath(), true, func(m *store.Migrator) error {
				pending, err := m.Pending()
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					cmd.Println("Schema is up to date")
					return nil
				}
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Printf("Applied migrations %v\n", pending)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all credentials)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, configPath(), false, func(m *store.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rolled back all migrations")
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "steps N",
		Short: "Apply N migrations up (N > 0) or down (N < 0)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n == 0 {
				return oops.Code("INVALID_ARGUMENT").With("steps", args[0]).Errorf("steps must be a non-zero integer")
			}
			return withMigrator(cmd, configPath(), false, func(m *store.Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, configPath(), false, func(m *store.Migrator) error {
				return printVersion(cmd, m)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_ARGUMENT").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, configPath(), false, func(m *store.Migrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				return printVersion(cmd, m)
			})
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, m *store.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	pending, err := m.Pending()
	if err != nil {
		return err
	}
	cmd.Printf("version=%d dirty=%t pending=%d\n", v, dirty, len(pending))
	return nil
}

// withMigrator runs fn against the configured PostgreSQL database. For
// SQLite, sqliteUp decides whether opening the database (which applies the
// schema) satisfies the command.
func withMigrator(cmd *cobra.Command, configFile string, sqliteUp bool, fn func(*store.Migrator) error) (err error) {
	cfg, logger, err := loadConfig(cmd, configFile, true)
	if err != nil {
		return err
	}

	driver, dsn, err := store.ParseURL(cfg.Database.URL)
	if err != nil {
		return err
	}

	if driver == store.DriverSQLite {
		if !sqliteUp {
			return oops.Code("MIGRATE_UNSUPPORTED").
				With("driver", string(driver)).
				Errorf("%s is not supported for sqlite databases", cmd.Name())
		}
		db, err := sqlite.Open(cmd.Context(), logger, dsn)
		if err != nil {
			return err
		}
		cmd.Println("Schema is up to date")
		return db.Close()
	}

	m, err := store.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := fn(m); err != nil {
		return oops.With("operation", fmt.Sprintf("migrate %s", cmd.Name())).Wrap(err)
	}
	return nil
}
