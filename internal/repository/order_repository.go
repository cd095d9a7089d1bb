package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"xianyu-autosell/internal/domain/order"
	autosell_errors "xianyu-autosell/pkg/errors"
)

const orderColumns = `order_id, account_id, item_id, item_title, item_pic_url, price, sku_text,
        buyer_user_id, buyer_nickname, status, status_text, chat_id,
        order_time, pay_time, ship_time, complete_time, created_at, updated_at`

type orderRepository struct {
	db  DBTX
	now func() time.Time
}

func NewOrderRepository(db DBTX) OrderRepository {
	return &orderRepository{db: db, now: time.Now}
}

func (r *orderRepository) GetByID(ctx context.Context, orderID string) (order.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = $1`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Order{}, autosell_errors.ErrNotFound
	}
	return o, err
}

func (r *orderRepository) CreatePlaceholder(ctx context.Context, accountID, orderID, chatID string) (bool, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
        INSERT INTO orders (order_id, account_id, status, status_text, chat_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (order_id) DO NOTHING
    `, orderID, accountID, order.StatusUnknown, order.PlaceholderStatusText, nullString(chatID), now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepository) BackfillChatID(ctx context.Context, orderID, chatID string) (bool, error) {
	if strings.TrimSpace(chatID) == "" {
		return false, nil
	}
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET chat_id = $1, updated_at = $2
        WHERE order_id = $3 AND (chat_id IS NULL OR chat_id = '')
    `, chatID, r.now(), orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *orderRepository) Upsert(ctx context.Context, o order.Order) error {
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO orders (`+orderColumns+`)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        ON CONFLICT (order_id) DO UPDATE SET
            account_id     = excluded.account_id,
            item_id        = COALESCE(excluded.item_id, orders.item_id),
            item_title     = COALESCE(excluded.item_title, orders.item_title),
            item_pic_url   = COALESCE(excluded.item_pic_url, orders.item_pic_url),
            price          = COALESCE(excluded.price, orders.price),
            sku_text       = COALESCE(excluded.sku_text, orders.sku_text),
            buyer_user_id  = COALESCE(excluded.buyer_user_id, orders.buyer_user_id),
            buyer_nickname = COALESCE(excluded.buyer_nickname, orders.buyer_nickname),
            status         = excluded.status,
            status_text    = excluded.status_text,
            chat_id        = COALESCE(excluded.chat_id, orders.chat_id),
            order_time     = COALESCE(excluded.order_time, orders.order_time),
            pay_time       = COALESCE(excluded.pay_time, orders.pay_time),
            ship_time      = COALESCE(excluded.ship_time, orders.ship_time),
            complete_time  = COALESCE(excluded.complete_time, orders.complete_time),
            updated_at     = excluded.updated_at
    `,
		o.OrderID,
		o.AccountID,
		o.ItemID,
		o.ItemTitle,
		o.ItemPicURL,
		o.Price,
		o.SkuText,
		o.BuyerUserID,
		o.BuyerNickname,
		o.Status,
		o.StatusText,
		o.ChatID,
		o.OrderTime,
		o.PayTime,
		o.ShipTime,
		o.CompleteTime,
		now,
		now,
	)
	return err
}

func (r *orderRepository) List(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var (
		where []string
		args  []interface{}
	)
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		where = append(where, "account_id = "+buildPlaceholders(len(args), 1))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, "status = "+buildPlaceholders(len(args), 1))
	}
	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, filter.Offset)
	query += " ORDER BY updated_at DESC LIMIT " + buildPlaceholders(len(args)-1, 1) + " OFFSET " + buildPlaceholders(len(args), 1)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func scanOrder(row rowScanner) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.OrderID,
		&o.AccountID,
		&o.ItemID,
		&o.ItemTitle,
		&o.ItemPicURL,
		&o.Price,
		&o.SkuText,
		&o.BuyerUserID,
		&o.BuyerNickname,
		&o.Status,
		&o.StatusText,
		&o.ChatID,
		&o.OrderTime,
		&o.PayTime,
		&o.ShipTime,
		&o.CompleteTime,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}
