package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"xianyu-autosell/internal/domain/autosell"
	autosell_errors "xianyu-autosell/pkg/errors"
)

const ruleColumns = `id, name, enabled, account_id, item_id, sku_text, delivery_type, delivery_content,
        api_config, trigger_on, workflow_id, delay_seconds, created_at, updated_at`

type ruleRepository struct {
	db  DBTX
	now func() time.Time
}

func NewRuleRepository(db DBTX) RuleRepository {
	return &ruleRepository{db: db, now: time.Now}
}

func (r *ruleRepository) Create(ctx context.Context, rule *autosell.Rule) error {
	if rule.TriggerOn == "" {
		rule.TriggerOn = autosell.TriggerPaid
	}
	apiConfig, err := encodeAPIConfig(rule.APIConfig)
	if err != nil {
		return err
	}
	now := r.now()
	rule.CreatedAt, rule.UpdatedAt = now, now
	return r.db.QueryRowContext(ctx, `
        INSERT INTO autosell_rules (name, enabled, account_id, item_id, sku_text, delivery_type, delivery_content,
            api_config, trigger_on, workflow_id, delay_seconds, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id
    `,
		rule.Name,
		rule.Enabled,
		rule.AccountID,
		rule.ItemID,
		rule.SkuText,
		rule.DeliveryType,
		rule.DeliveryContent,
		apiConfig,
		rule.TriggerOn,
		rule.WorkflowID,
		rule.DelaySeconds,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Scan(&rule.ID)
}

func (r *ruleRepository) GetByID(ctx context.Context, id int64) (autosell.Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM autosell_rules WHERE id = $1`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return autosell.Rule{}, autosell_errors.ErrNotFound
	}
	return rule, err
}

func (r *ruleRepository) GetEnabled(ctx context.Context, accountID, itemID string) ([]autosell.Rule, error) {
	return r.query(ctx, `
        SELECT `+ruleColumns+`
        FROM autosell_rules
        WHERE enabled = TRUE
          AND (account_id IS NULL OR account_id = '' OR account_id = $1)
          AND (item_id IS NULL OR item_id = '' OR item_id = $2)
        ORDER BY id ASC
    `, accountID, itemID)
}

func (r *ruleRepository) List(ctx context.Context) ([]autosell.Rule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM autosell_rules ORDER BY id ASC`)
}

func (r *ruleRepository) query(ctx context.Context, query string, args ...interface{}) ([]autosell.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []autosell.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func scanRule(row rowScanner) (autosell.Rule, error) {
	var (
		rule      autosell.Rule
		apiConfig sql.NullString
	)
	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Enabled,
		&rule.AccountID,
		&rule.ItemID,
		&rule.SkuText,
		&rule.DeliveryType,
		&rule.DeliveryContent,
		&apiConfig,
		&rule.TriggerOn,
		&rule.WorkflowID,
		&rule.DelaySeconds,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return autosell.Rule{}, err
	}
	if apiConfig.Valid && apiConfig.String != "" {
		var cfg autosell.APIConfig
		if err := json.Unmarshal([]byte(apiConfig.String), &cfg); err != nil {
			return autosell.Rule{}, fmt.Errorf("rule %d: decode api_config: %w", rule.ID, err)
		}
		rule.APIConfig = &cfg
	}
	return rule, nil
}

func encodeAPIConfig(cfg *autosell.APIConfig) (sql.NullString, error) {
	if cfg == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}
