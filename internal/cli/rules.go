package cli

import (
	"database/sql"
	"fmt"
	"io"
	"strings"

	"xianyu-autosell/internal/domain/autosell"

	"github.com/spf13/cobra"
)

// RuleView is the printable form of a rule.
type RuleView struct {
	ID           int64                 `json:"id"`
	Name         string                `json:"name"`
	Enabled      bool                  `json:"enabled"`
	AccountID    string                `json:"accountId,omitempty"`
	ItemID       string                `json:"itemId,omitempty"`
	SkuText      string                `json:"skuText,omitempty"`
	DeliveryType autosell.DeliveryType `json:"deliveryType"`
	TriggerOn    autosell.TriggerOn    `json:"triggerOn"`
	WorkflowID   int64                 `json:"workflowId,omitempty"`
	DelaySeconds int                   `json:"delaySeconds,omitempty"`
}

func newRuleView(r autosell.Rule) RuleView {
	return RuleView{
		ID:           r.ID,
		Name:         r.Name,
		Enabled:      r.Enabled,
		AccountID:    r.AccountID.String,
		ItemID:       r.ItemID.String,
		SkuText:      r.SkuText.String,
		DeliveryType: r.DeliveryType,
		TriggerOn:    r.TriggerOn,
		WorkflowID:   r.WorkflowID.Int64,
		DelaySeconds: r.DelaySeconds,
	}
}

// RuleAddOptions holds flags for "rules add".
type RuleAddOptions struct {
	Name         string
	Type         string
	Content      string
	AccountID    string
	ItemID       string
	SkuText      string
	Trigger      string
	WorkflowID   int64
	DelaySeconds int
	Disabled     bool

	APIURL      string
	APIMethod   string
	APIBody     string
	APIHeaders  []string
	APIField    string
	APITemplate string
}

// NewRulesCommand creates the rules command group.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List and create delivery rules",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List all rules in catalog order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(newRulesAddCommand(rootOpts))

	return cmd
}

func newRulesAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RuleAddOptions{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a delivery rule",
		Long: `Create a delivery rule. Rules are matched in creation order, so add
sku-specific rules before catch-all rules for the same item.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesAdd(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "rule name (required)")
	cmd.Flags().StringVar(&opts.Type, "type", string(autosell.DeliveryFixed), "delivery type (fixed|stock|api)")
	cmd.Flags().StringVar(&opts.Content, "content", "", "content for fixed rules")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "only match orders of this account")
	cmd.Flags().StringVar(&opts.ItemID, "item", "", "only match orders of this item")
	cmd.Flags().StringVar(&opts.SkuText, "sku", "", "only match this exact sku text")
	cmd.Flags().StringVar(&opts.Trigger, "trigger", string(autosell.TriggerPaid), "trigger timing (paid|confirmed)")
	cmd.Flags().Int64Var(&opts.WorkflowID, "workflow", 0, "start this workflow instead of delivering directly")
	cmd.Flags().IntVar(&opts.DelaySeconds, "delay", 0, "seconds to wait before delivering")
	cmd.Flags().BoolVar(&opts.Disabled, "disabled", false, "create the rule disabled")
	cmd.Flags().StringVar(&opts.APIURL, "api-url", "", "content endpoint for api rules")
	cmd.Flags().StringVar(&opts.APIMethod, "api-method", "POST", "HTTP method for api rules")
	cmd.Flags().StringVar(&opts.APIBody, "api-body", "", "request body template for api rules")
	cmd.Flags().StringSliceVar(&opts.APIHeaders, "api-header", nil, "request header as Key=Value (repeatable)")
	cmd.Flags().StringVar(&opts.APIField, "api-field", "", "dotted path of the content in the response")
	cmd.Flags().StringVar(&opts.APITemplate, "api-template", "", "template rendered against the response")

	return cmd
}

// buildRule validates the flags and turns them into a rule.
func (o *RuleAddOptions) buildRule() (autosell.Rule, error) {
	if strings.TrimSpace(o.Name) == "" {
		return autosell.Rule{}, fmt.Errorf("--name is required")
	}
	rule := autosell.Rule{
		Name:         strings.TrimSpace(o.Name),
		Enabled:      !o.Disabled,
		AccountID:    optional(o.AccountID),
		ItemID:       optional(o.ItemID),
		SkuText:      optional(o.SkuText),
		DeliveryType: autosell.DeliveryType(o.Type),
		TriggerOn:    autosell.TriggerOn(o.Trigger),
		DelaySeconds: o.DelaySeconds,
	}
	if !rule.TriggerOn.Valid() {
		return autosell.Rule{}, fmt.Errorf("invalid --trigger %q", o.Trigger)
	}
	if o.DelaySeconds < 0 {
		return autosell.Rule{}, fmt.Errorf("--delay must not be negative")
	}
	if o.WorkflowID > 0 {
		rule.WorkflowID = sql.NullInt64{Int64: o.WorkflowID, Valid: true}
	}

	switch rule.DeliveryType {
	case autosell.DeliveryFixed:
		if strings.TrimSpace(o.Content) == "" {
			return autosell.Rule{}, fmt.Errorf("fixed rules need --content")
		}
		rule.DeliveryContent = sql.NullString{String: o.Content, Valid: true}
	case autosell.DeliveryStock:
	case autosell.DeliveryAPI:
		if strings.TrimSpace(o.APIURL) == "" {
			return autosell.Rule{}, fmt.Errorf("api rules need --api-url")
		}
		headers := make(map[string]string, len(o.APIHeaders))
		for _, h := range o.APIHeaders {
			k, v, ok := strings.Cut(h, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return autosell.Rule{}, fmt.Errorf("invalid --api-header %q, want Key=Value", h)
			}
			headers[strings.TrimSpace(k)] = v
		}
		rule.APIConfig = &autosell.APIConfig{
			URL:              o.APIURL,
			Method:           strings.ToUpper(o.APIMethod),
			Headers:          headers,
			Body:             o.APIBody,
			ResponseField:    o.APIField,
			ResponseTemplate: o.APITemplate,
		}
	default:
		return autosell.Rule{}, fmt.Errorf("invalid --type %q", o.Type)
	}
	return rule, nil
}

func optional(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func runRulesList(opts *RootOptions, cmd *cobra.Command) error {
	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	rules, err := a.Rules.List(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "list rules", err)
	}
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		views = append(views, newRuleView(r))
	}
	return newFormatter(opts, cmd).Success(views, func(w io.Writer) {
		for _, v := range views {
			state := "on"
			if !v.Enabled {
				state = "off"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s/%s\tsku=%q\n", v.ID, state, v.Name, v.DeliveryType, v.TriggerOn, v.SkuText)
		}
	})
}

func runRulesAdd(opts *RootOptions, addOpts *RuleAddOptions, cmd *cobra.Command) error {
	rule, err := addOpts.buildRule()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid rule", err)
	}

	a, err := opts.openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Rules.Create(cmd.Context(), &rule); err != nil {
		return WrapExitError(ExitFailure, "create rule", err)
	}
	view := newRuleView(rule)
	return newFormatter(opts, cmd).Success(view, func(w io.Writer) {
		fmt.Fprintf(w, "created rule %d (%s)\n", view.ID, view.Name)
	})
}
