package cli

import (
	"fmt"
	"io"
	"sort"

	"xianyu-autosell/pkg/database"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "up",
		Short:         "Apply the embedded schema for the configured driver",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "status",
		Short:         "Check the connection and print row counts per table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(rootOpts, cmd)
		},
	})

	return cmd
}

func runMigrateUp(opts *RootOptions, cmd *cobra.Command) error {
	db, dialect, err := database.Connect(opts.config())
	if err != nil {
		return WrapExitError(ExitCommandError, "connect", err)
	}
	defer db.Close()

	if err := database.ApplyMigrations(cmd.Context(), db, dialect); err != nil {
		return WrapExitError(ExitFailure, "migrate", err)
	}
	return newFormatter(opts, cmd).Success(map[string]string{"dialect": string(dialect)}, func(w io.Writer) {
		fmt.Fprintf(w, "schema applied (%s)\n", dialect)
	})
}

func runMigrateStatus(opts *RootOptions, cmd *cobra.Command) error {
	db, _, err := database.Connect(opts.config())
	if err != nil {
		return WrapExitError(ExitCommandError, "connect", err)
	}
	defer db.Close()

	counts, err := database.TableCounts(cmd.Context(), db)
	if err != nil {
		return WrapExitError(ExitFailure, "schema not applied", err)
	}
	return newFormatter(opts, cmd).Success(counts, func(w io.Writer) {
		tables := make([]string, 0, len(counts))
		for t := range counts {
			tables = append(tables, t)
		}
		sort.Strings(tables)
		for _, t := range tables {
			fmt.Fprintf(w, "%-16s %d rows\n", t, counts[t])
		}
	})
}
