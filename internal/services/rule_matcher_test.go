package services

import (
	"context"
	"database/sql"
	"testing"

	"xianyu-autosell/internal/domain/autosell"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchRule(t *testing.T) {
	r1 := fixedRule("R1", "", "CODE-A")
	r1.ID = 1
	r2 := fixedRule("R2", "100次", "CODE-B")
	r2.ID = 2
	confirmed := fixedRule("R3", "", "CODE-C")
	confirmed.ID = 3
	confirmed.TriggerOn = autosell.TriggerConfirmed

	tests := []struct {
		name    string
		rules   []autosell.Rule
		trigger autosell.TriggerOn
		sku     string
		wantID  int64
		wantOK  bool
	}{
		{"first rule wins even when a later one is more specific", []autosell.Rule{r1, r2}, autosell.TriggerPaid, "100次", 1, true},
		{"sku filter matches after trimming", []autosell.Rule{r2}, autosell.TriggerPaid, "  100次 ", 2, true},
		{"sku filter is case and text exact", []autosell.Rule{r2}, autosell.TriggerPaid, "100 次", 0, false},
		{"sku filter rejects missing sku", []autosell.Rule{r2}, autosell.TriggerPaid, "", 0, false},
		{"trigger must match", []autosell.Rule{r1, r2}, autosell.TriggerConfirmed, "100次", 0, false},
		{"confirmed rule only for confirmed trigger", []autosell.Rule{confirmed, r1}, autosell.TriggerPaid, "", 1, true},
		{"empty catalog", nil, autosell.TriggerPaid, "x", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchRule(tt.rules, tt.trigger, tt.sku)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestMatchRule_BlankSkuFilterMatchesAnything(t *testing.T) {
	r := fixedRule("blank", "", "x")
	r.SkuText = sql.NullString{String: "   ", Valid: true}
	_, ok := MatchRule([]autosell.Rule{r}, autosell.TriggerPaid, "anything")
	assert.True(t, ok)
}

func TestRuleMatcher_Match(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createRule(t, fixedRule("R1", "", "CODE-A"))
	env.createRule(t, fixedRule("R2", "100次", "CODE-B"))

	m := NewRuleMatcher(env.rules, logger.NewNop())
	for i := 0; i < 3; i++ {
		rule, err := m.Match(ctx, "acc-1", "item-1", autosell.TriggerPaid, "100次")
		require.NoError(t, err)
		assert.Equal(t, "R1", rule.Name)
	}

	_, err := m.Match(ctx, "acc-1", "item-1", autosell.TriggerConfirmed, "100次")
	require.ErrorIs(t, err, autosell_errors.ErrNoMatchingRule)
	assert.Contains(t, err.Error(), `"R2"(sku:100次,trigger:paid)`)
	assert.Contains(t, err.Error(), `"R1"(sku:*,trigger:paid)`)
}

func TestRuleMatcher_ScopedRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	other := fixedRule("other-item", "", "X")
	other.ItemID = sql.NullString{String: "item-2", Valid: true}
	env.createRule(t, other)
	mine := fixedRule("my-item", "", "Y")
	mine.AccountID = sql.NullString{String: "acc-1", Valid: true}
	mine.ItemID = sql.NullString{String: "item-1", Valid: true}
	env.createRule(t, mine)

	m := NewRuleMatcher(env.rules, logger.NewNop())
	rule, err := m.Match(ctx, "acc-1", "item-1", autosell.TriggerPaid, "")
	require.NoError(t, err)
	assert.Equal(t, "my-item", rule.Name)

	_, err = m.Match(ctx, "acc-2", "item-1", autosell.TriggerPaid, "")
	assert.ErrorIs(t, err, autosell_errors.ErrNoMatchingRule)
}
