package repository

import (
	"context"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/domain/order"
)

type OrderRepository interface {
	GetByID(ctx context.Context, orderID string) (order.Order, error)
	// CreatePlaceholder inserts a "fetching" record unless one exists and reports
	// whether it inserted.
	CreatePlaceholder(ctx context.Context, accountID, orderID, chatID string) (bool, error)
	// BackfillChatID sets chat_id only when it is still empty.
	BackfillChatID(ctx context.Context, orderID, chatID string) (bool, error)
	// Upsert writes o, keeping existing values for any nullable field o leaves empty.
	Upsert(ctx context.Context, o order.Order) error
	List(ctx context.Context, filter order.ListFilter) ([]order.Order, error)
}

type RuleRepository interface {
	Create(ctx context.Context, r *autosell.Rule) error
	GetByID(ctx context.Context, id int64) (autosell.Rule, error)
	// GetEnabled returns enabled rules whose account and item filters admit the
	// arguments, in catalog (id) order.
	GetEnabled(ctx context.Context, accountID, itemID string) ([]autosell.Rule, error)
	List(ctx context.Context) ([]autosell.Rule, error)
}

type StockRepository interface {
	Add(ctx context.Context, ruleID int64, contents []string) (int, error)
	Stats(ctx context.Context, ruleID int64) (autosell.StockStats, error)
	// Claim atomically hands one unused unit of ruleID to orderID. It fails with
	// ErrAlreadyDelivered when the order already has a delivery log, returns the
	// order's existing unit when it already claimed one, and fails with
	// ErrInsufficientStock when the pool is empty.
	Claim(ctx context.Context, ruleID int64, orderID string) (autosell.StockItem, error)
}

type DeliveryLogRepository interface {
	Add(ctx context.Context, l *autosell.DeliveryLog) error
	HasDelivered(ctx context.Context, orderID string) (bool, error)
	ListByOrder(ctx context.Context, orderID string) ([]autosell.DeliveryLog, error)
}
