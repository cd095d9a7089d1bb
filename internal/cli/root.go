package cli

import (
	"context"
	"fmt"

	"xianyu-autosell/config"
	"xianyu-autosell/internal/app"
	"xianyu-autosell/pkg/logger"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	DBDriver   string
	SQLitePath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the autosellctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "autosellctl",
		Short: "Operator tool for the Xianyu auto-delivery service",
		Long: `Manage the auto-delivery database directly: apply migrations, configure
delivery rules, load stock and trigger a manual delivery for an order.

Database and Redis settings come from the same environment as the API service.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log service activity to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", "", "override DB_DRIVER (postgres|sqlite3)")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite", "", "override SQLITE_PATH")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewRulesCommand(opts))
	cmd.AddCommand(NewStockCommand(opts))
	cmd.AddCommand(NewDeliverCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) config() *config.Config {
	cfg := config.LoadConfig()
	if o.DBDriver != "" {
		cfg.DBDriver = o.DBDriver
	}
	if o.SQLitePath != "" {
		cfg.SQLitePath = o.SQLitePath
	}
	return cfg
}

func (o *RootOptions) logger() *logger.Logger {
	if o.Verbose {
		return logger.New(logger.DevelopmentMode)
	}
	return logger.NewNop()
}

// openApp builds the service graph against the configured database. The
// caller must Close it.
func (o *RootOptions) openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(ctx, o.config(), o.logger())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open service", err)
	}
	return a, nil
}
