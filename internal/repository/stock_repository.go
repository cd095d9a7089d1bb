package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"xianyu-autosell/internal/domain/autosell"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/database"
)

// stockInsertBatch bounds the rows per INSERT so large imports stay under driver
// parameter limits.
const stockInsertBatch = 200

type stockRepository struct {
	db      DBTX
	dialect database.Dialect
	now     func() time.Time
}

func NewStockRepository(db DBTX, dialect database.Dialect) StockRepository {
	return &stockRepository{db: db, dialect: dialect, now: time.Now}
}

func (r *stockRepository) Add(ctx context.Context, ruleID int64, contents []string) (int, error) {
	var units []string
	for _, c := range contents {
		if c = strings.TrimSpace(c); c != "" {
			units = append(units, c)
		}
	}
	if len(units) == 0 {
		return 0, nil
	}

	now := r.now()
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		for start := 0; start < len(units); start += stockInsertBatch {
			end := start + stockInsertBatch
			if end > len(units) {
				end = len(units)
			}
			values := make([]string, 0, end-start)
			args := make([]interface{}, 0, (end-start)*3)
			for _, c := range units[start:end] {
				values = append(values, "("+buildPlaceholders(len(args)+1, 3)+", FALSE)")
				args = append(args, ruleID, c, now)
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO stock_items (rule_id, content, created_at, used) VALUES `+strings.Join(values, ","),
				args...,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(units), nil
}

func (r *stockRepository) Stats(ctx context.Context, ruleID int64) (autosell.StockStats, error) {
	var stats autosell.StockStats
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*), COALESCE(SUM(CASE WHEN used THEN 1 ELSE 0 END), 0)
        FROM stock_items
        WHERE rule_id = $1
    `, ruleID).Scan(&stats.Total, &stats.Used)
	if err != nil {
		return autosell.StockStats{}, err
	}
	stats.Available = stats.Total - stats.Used
	return stats, nil
}

func (r *stockRepository) Claim(ctx context.Context, ruleID int64, orderID string) (autosell.StockItem, error) {
	var item autosell.StockItem
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		var delivered bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM delivery_logs WHERE order_id = $1)`, orderID,
		).Scan(&delivered); err != nil {
			return err
		}
		if delivered {
			return autosell_errors.ErrAlreadyDelivered
		}

		existing, err := scanStockItem(tx.QueryRowContext(ctx, `
            SELECT id, rule_id, content, used, used_order_id, created_at, used_at
            FROM stock_items
            WHERE rule_id = $1 AND used_order_id = $2
        `, ruleID, orderID))
		if err == nil {
			item = existing
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		claimed, err := scanStockItem(tx.QueryRowContext(ctx, r.claimQuery(), orderID, r.now(), ruleID))
		if errors.Is(err, sql.ErrNoRows) {
			return autosell_errors.ErrInsufficientStock
		}
		if isUniqueViolation(err) {
			return autosell_errors.ErrAlreadyDelivered
		}
		if err != nil {
			return err
		}
		item = claimed
		return nil
	})
	if err != nil {
		return autosell.StockItem{}, err
	}
	return item, nil
}

// claimQuery marks the oldest unused unit as used in a single statement. Postgres
// skips rows another transaction is claiming; SQLite serialises writers already.
func (r *stockRepository) claimQuery() string {
	lock := ""
	if r.dialect == database.DialectPostgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	return `
        UPDATE stock_items
        SET used = TRUE, used_order_id = $1, used_at = $2
        WHERE id = (
            SELECT id FROM stock_items
            WHERE rule_id = $3 AND used = FALSE
            ORDER BY id ASC
            LIMIT 1` + lock + `
        ) AND used = FALSE
        RETURNING id, rule_id, content, used, used_order_id, created_at, used_at
    `
}

func scanStockItem(row rowScanner) (autosell.StockItem, error) {
	var item autosell.StockItem
	err := row.Scan(
		&item.ID,
		&item.RuleID,
		&item.Content,
		&item.Used,
		&item.UsedOrderID,
		&item.CreatedAt,
		&item.UsedAt,
	)
	return item, err
}
