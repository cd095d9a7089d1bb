package cli

import (
	"fmt"
	"io"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/services"

	"github.com/spf13/cobra"
)

// DeliverOptions holds flags for the deliver command.
type DeliverOptions struct {
	AccountID   string
	OrderID     string
	ItemID      string
	Trigger     string
	SkuText     string
	BuyerUserID string
	ChatID      string
}

// NewDeliverCommand creates the deliver command.
func NewDeliverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeliverOptions{}

	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Run one delivery attempt for an order",
		Long: `Run the delivery pipeline for an order exactly as the service would:
match a rule, produce content and record the attempt. An order that already
has a delivery record is reported and left untouched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeliver(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AccountID, "account", "", "seller account id (required)")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id (required)")
	cmd.Flags().StringVar(&opts.ItemID, "item", "", "item id used for rule matching")
	cmd.Flags().StringVar(&opts.Trigger, "trigger", string(autosell.TriggerPaid), "trigger timing (paid|confirmed)")
	cmd.Flags().StringVar(&opts.SkuText, "sku", "", "sku text used for rule matching")
	cmd.Flags().StringVar(&opts.BuyerUserID, "buyer", "", "buyer user id passed to api rules")
	cmd.Flags().StringVar(&opts.ChatID, "chat", "", "chat id passed to api rules")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("order")

	return cmd
}

func runDeliver(opts *RootOptions, d *DeliverOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	outcome := a.AutoSell.ProcessAutoSell(cmd.Context(), services.ProcessRequest{
		AccountID: d.AccountID,
		OrderID:   d.OrderID,
		ItemID:    d.ItemID,
		TriggerOn: autosell.TriggerOn(d.Trigger),
		Context: autosell.OrderContext{
			BuyerUserID: d.BuyerUserID,
			ChatID:      d.ChatID,
			SkuText:     d.SkuText,
		},
	})

	f := newFormatter(opts, cmd)
	if !outcome.Success {
		return f.Failure(outcome, outcome.Err, func(w io.Writer) {
			fmt.Fprintf(w, "delivery failed: %s\n", outcome.Error)
		})
	}
	return f.Success(outcome, func(w io.Writer) {
		fmt.Fprintf(w, "delivered by rule %d (%s):\n%s\n", outcome.RuleID, outcome.RuleName, outcome.Content)
	})
}
