// Command migrate manages the ledger database schema.
package main

import (
	"os"

	"github.com/erp/ledger/internal/buildinfo"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

type cliOptions struct {
	migrationsPath string
	logLevel       string

	log *zap.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Ledger database migration tool",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      opts.logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return err
			}
			opts.log = log

			path, err := resolveMigrationsPath(opts.migrationsPath)
			if err != nil {
				return err
			}
			opts.migrationsPath = path

			log.Debug("Migration CLI started",
				zap.String("command", cmd.Name()),
				zap.String("migrations_path", path),
			)
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if opts.log != nil {
				_ = logger.Sync(opts.log)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.migrationsPath, "path", "", "Path to migrations directory (default: ./migrations)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newUpCommand(opts),
		newDownCommand(opts),
		newStepCommand(opts),
		newGotoCommand(opts),
		newVersionCommand(opts),
		newForceCommand(opts),
		newDropCommand(opts),
		newCreateCommand(opts),
		newListCommand(opts),
	)

	return rootCmd
}
