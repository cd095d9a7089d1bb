package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStockCommand creates the stock command group.
func NewStockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Load and inspect stock pools of stock-type rules",
	}

	var key string
	importCmd := &cobra.Command{
		Use:   "import <rule-id> [file]",
		Short: "Add one stock unit per non-blank line",
		Long: `Add one stock unit per non-blank line of a file, of standard input when
the file is "-" or omitted, or of an uploaded object when --key is given.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockImport(rootOpts, cmd, args, key)
		},
	}
	importCmd.Flags().StringVar(&key, "key", "", "object storage key of an uploaded stock file")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:           "stats <rule-id>",
		Short:         "Show total, used and available units",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockStats(rootOpts, cmd, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "upload-url <rule-id>",
		Short:         "Presign an object storage upload for a stock file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStockUploadURL(rootOpts, cmd, args[0])
		},
	})

	return cmd
}

func parseRuleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid rule id %q", arg))
	}
	return id, nil
}

func runStockImport(opts *RootOptions, cmd *cobra.Command, args []string, key string) error {
	ruleID, err := parseRuleID(args[0])
	if err != nil {
		return err
	}
	if key != "" && len(args) > 1 {
		return NewExitError(ExitCommandError, "pass either a file or --key, not both")
	}

	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var n int
	if key != "" {
		n, err = a.Importer.ImportObject(cmd.Context(), ruleID, key)
	} else {
		var in io.Reader = cmd.InOrStdin()
		if len(args) > 1 && args[1] != "-" {
			f, ferr := os.Open(args[1])
			if ferr != nil {
				return WrapExitError(ExitCommandError, "open stock file", ferr)
			}
			defer f.Close()
			in = f
		}
		n, err = a.Importer.Import(cmd.Context(), ruleID, in)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "import stock", err)
	}

	stats, err := a.AutoSell.GetRuleStockStatus(cmd.Context(), ruleID)
	if err != nil {
		return WrapExitError(ExitFailure, "stock stats", err)
	}
	data := map[string]interface{}{"imported": n, "stock": stats}
	return newFormatter(opts, cmd).Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "imported %d units, %d available of %d\n", n, stats.Available, stats.Total)
	})
}

func runStockStats(opts *RootOptions, cmd *cobra.Command, arg string) error {
	ruleID, err := parseRuleID(arg)
	if err != nil {
		return err
	}
	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.AutoSell.GetRuleStockStatus(cmd.Context(), ruleID)
	if err != nil {
		return WrapExitError(ExitFailure, "stock stats", err)
	}
	return newFormatter(opts, cmd).Success(stats, func(w io.Writer) {
		fmt.Fprintf(w, "total %d, used %d, available %d\n", stats.Total, stats.Used, stats.Available)
	})
}

func runStockUploadURL(opts *RootOptions, cmd *cobra.Command, arg string) error {
	ruleID, err := parseRuleID(arg)
	if err != nil {
		return err
	}
	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	upload, err := a.Importer.UploadURL(cmd.Context(), ruleID)
	if err != nil {
		return WrapExitError(ExitFailure, "presign upload", err)
	}
	return newFormatter(opts, cmd).Success(upload, func(w io.Writer) {
		fmt.Fprintf(w, "key: %s\nPUT %s\n", upload.Key, upload.URL)
		for k, v := range upload.Headers {
			fmt.Fprintf(w, "  %s: %s\n", k, v)
		}
	})
}
