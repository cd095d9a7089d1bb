package repository

import (
	"context"
	"time"

	"xianyu-autosell/internal/domain/autosell"

	"github.com/google/uuid"
)

type deliveryLogRepository struct {
	db DBTX
}

func NewDeliveryLogRepository(db DBTX) DeliveryLogRepository {
	return &deliveryLogRepository{db: db}
}

// Add appends l. Rows are never updated or deleted.
func (r *deliveryLogRepository) Add(ctx context.Context, l *autosell.DeliveryLog) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO delivery_logs (id, rule_id, order_id, account_id, delivery_type, content, status, error_message, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    `,
		l.ID,
		l.RuleID,
		l.OrderID,
		l.AccountID,
		l.DeliveryType,
		l.Content,
		l.Status,
		l.ErrorMessage,
		l.CreatedAt,
	)
	return err
}

func (r *deliveryLogRepository) HasDelivered(ctx context.Context, orderID string) (bool, error) {
	var delivered bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM delivery_logs WHERE order_id = $1)`, orderID,
	).Scan(&delivered)
	return delivered, err
}

func (r *deliveryLogRepository) ListByOrder(ctx context.Context, orderID string) ([]autosell.DeliveryLog, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, rule_id, order_id, account_id, delivery_type, content, status, error_message, created_at
        FROM delivery_logs
        WHERE order_id = $1
        ORDER BY created_at ASC
    `, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []autosell.DeliveryLog
	for rows.Next() {
		var l autosell.DeliveryLog
		if err := rows.Scan(
			&l.ID,
			&l.RuleID,
			&l.OrderID,
			&l.AccountID,
			&l.DeliveryType,
			&l.Content,
			&l.Status,
			&l.ErrorMessage,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
