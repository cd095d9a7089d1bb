package services

import (
	"context"
	"fmt"
	"strings"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/repository"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"
)

// MatchRule returns the first rule, in catalog order, whose timing equals
// trigger and whose sku filter is unset or equal to sku after trimming. The
// comparison is exact and case-sensitive.
func MatchRule(rules []autosell.Rule, trigger autosell.TriggerOn, sku string) (autosell.Rule, bool) {
	sku = strings.TrimSpace(sku)
	for _, r := range rules {
		if r.TriggerOn != trigger {
			continue
		}
		if want := strings.TrimSpace(r.SkuText.String); r.SkuText.Valid && want != "" && want != sku {
			continue
		}
		return r, true
	}
	return autosell.Rule{}, false
}

// RuleMatcher selects the rule for an order from the enabled catalog.
type RuleMatcher struct {
	rules repository.RuleRepository
	log   *logger.Logger
}

func NewRuleMatcher(rules repository.RuleRepository, log *logger.Logger) *RuleMatcher {
	return &RuleMatcher{rules: rules, log: log}
}

// Match returns ErrNoMatchingRule, annotated with the candidates considered,
// when nothing fits.
func (m *RuleMatcher) Match(ctx context.Context, accountID, itemID string, trigger autosell.TriggerOn, sku string) (autosell.Rule, error) {
	candidates, err := m.rules.GetEnabled(ctx, accountID, itemID)
	if err != nil {
		return autosell.Rule{}, fmt.Errorf("load rules: %w", err)
	}
	m.log.WithContext(ctx).Debugf("matching %d candidate rules: item=%s sku=%q trigger=%s", len(candidates), itemID, sku, trigger)

	rule, ok := MatchRule(candidates, trigger, sku)
	if !ok {
		return autosell.Rule{}, fmt.Errorf("%w: sku=%q trigger=%s candidates=[%s]",
			autosell_errors.ErrNoMatchingRule, strings.TrimSpace(sku), trigger, describeRules(candidates))
	}
	return rule, nil
}

func describeRules(rules []autosell.Rule) string {
	parts := make([]string, 0, len(rules))
	for _, r := range rules {
		sku := r.SkuText.String
		if sku == "" {
			sku = "*"
		}
		parts = append(parts, fmt.Sprintf("%q(sku:%s,trigger:%s)", r.Name, sku, r.TriggerOn))
	}
	return strings.Join(parts, ", ")
}
