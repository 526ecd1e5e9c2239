package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/erp/ledger/internal/infrastructure/config"
	"github.com/erp/ledger/internal/infrastructure/migration"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// resolveMigrationsPath returns an absolute migrations directory. With no explicit
// path it tries ./migrations, then the directory two levels above the executable.
func resolveMigrationsPath(path string) (string, error) {
	if path == "" {
		path = defaultMigrationsPath
		if _, err := os.Stat(path); err != nil {
			if execPath, err := os.Executable(); err == nil {
				candidate := filepath.Join(filepath.Dir(execPath), "..", "..", defaultMigrationsPath)
				if _, err := os.Stat(candidate); err == nil {
					path = candidate
				}
			}
		}
	}
	return filepath.Abs(path)
}

// withMigrator opens the configured database, runs fn against a migrator and closes both
func withMigrator(opts *cliOptions, fn func(m *migration.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, opts.migrationsPath, opts.log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	return fn(m)
}

func newUpCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *migration.Migrator) error {
				return m.Up(cmd.Context())
			})
		},
	}
}

func newDownCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *migration.Migrator) error {
				return m.Down(cmd.Context())
			})
		},
	}
}

func newStepCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "step <n>",
		Short:   "Apply n migrations (positive=up, negative=down)",
		Example: "  migrate step -- -1",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid step count %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error {
				return m.Steps(cmd.Context(), n)
			})
		},
	}
}

func newGotoCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "goto <version>",
		Short: "Migrate to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withMigrator(opts, func(m *migration.Migrator) error {
				return m.GoTo(cmd.Context(), uint(version))
			})
		},
	}
}

func newVersionCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current migration version",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withMigrator(opts, func(m *migration.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if version == 0 {
					opts.log.Info("No migrations applied")
					return nil
				}
				opts.log.Info("Current migration version",
					zap.Uint("version", version),
					zap.Bool("dirty", dirty),
				)
				return nil
			})
		},
	}
}

func newForceCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Force set migration version (use with caution)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q", args[0])
			}
			opts.log.Warn("Forcing migration version", zap.Int("version", version))
			return withMigrator(opts, func(m *migration.Migrator) error {
				return m.Force(version)
			})
		},
	}
}

func newDropCommand(opts *cliOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop all database objects (DANGEROUS)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("drop cancelled: rerun with --confirm")
			}
			opts.log.Warn("Dropping all database objects")
			return withMigrator(opts, func(m *migration.Migrator) error {
				return m.Drop()
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm dropping every table")

	return cmd
}

func newCreateCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "create <name> [description]",
		Short:   "Create a new migration file pair",
		Example: `  migrate create add_period_locks "Lock closed accounting periods"`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			description := ""
			if len(args) > 1 {
				description = args[1]
			}

			mf, err := migration.CreateMigration(opts.migrationsPath, args[0], description)
			if err != nil {
				return err
			}

			opts.log.Info("Migration created successfully",
				zap.String("version", mf.Version),
				zap.String("up_file", mf.UpPath),
				zap.String("down_file", mf.DownPath),
			)
			return nil
		},
	}
}

func newListCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrations, err := migration.ListMigrations(opts.migrationsPath)
			if err != nil {
				return err
			}
			if len(migrations) == 0 {
				opts.log.Info("No migrations found")
				return nil
			}
			for _, m := range migrations {
				fmt.Fprintln(cmd.OutOrStdout(), "  -", m)
			}
			return nil
		},
	}
}
