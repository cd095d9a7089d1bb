package repository

import (
	"context"
	"database/sql"
	"testing"

	"xianyu-autosell/internal/domain/order"
	autosell_errors "xianyu-autosell/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRepository_PlaceholderIsCreatedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))

	created, err := repo.CreatePlaceholder(ctx, "acc-1", "O1", "")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreatePlaceholder(ctx, "acc-1", "O1", "chat-9")
	require.NoError(t, err)
	assert.False(t, created)

	o, err := repo.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusUnknown, o.Status)
	assert.Equal(t, order.PlaceholderStatusText, o.StatusText)
	assert.False(t, o.ChatID.Valid, "second placeholder call must not write chat id")
}

func TestOrderRepository_BackfillChatIDOnlyWhenEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))

	_, err := repo.CreatePlaceholder(ctx, "acc-1", "O1", "")
	require.NoError(t, err)

	updated, err := repo.BackfillChatID(ctx, "O1", "chat-1")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.BackfillChatID(ctx, "O1", "chat-2")
	require.NoError(t, err)
	assert.False(t, updated)

	o, err := repo.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", o.ChatID.String)
}

func TestOrderRepository_UpsertNeverClearsPopulatedFields(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))

	_, err := repo.CreatePlaceholder(ctx, "acc-1", "O1", "chat-1")
	require.NoError(t, err)

	require.NoError(t, repo.Upsert(ctx, order.Order{
		OrderID:    "O1",
		AccountID:  "acc-1",
		ItemID:     sql.NullString{String: "item-1", Valid: true},
		SkuText:    sql.NullString{String: "100次", Valid: true},
		Price:      decimal.NewNullDecimal(decimal.RequireFromString("9.90")),
		Status:     order.StatusPendingShipment,
		StatusText: "请尽快发货",
	}))

	require.NoError(t, repo.Upsert(ctx, order.Order{
		OrderID:    "O1",
		AccountID:  "acc-1",
		Status:     order.StatusPendingReceipt,
		StatusText: "待收货",
	}))

	o, err := repo.GetByID(ctx, "O1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPendingReceipt, o.Status)
	assert.Equal(t, "待收货", o.StatusText)
	assert.Equal(t, "item-1", o.ItemID.String)
	assert.Equal(t, "100次", o.SkuText.String)
	assert.Equal(t, "chat-1", o.ChatID.String)
	assert.True(t, o.Price.Valid)
	assert.True(t, decimal.RequireFromString("9.9").Equal(o.Price.Decimal))
}

func TestOrderRepository_GetMissing(t *testing.T) {
	repo := NewOrderRepository(newTestDB(t))
	_, err := repo.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, autosell_errors.ErrNotFound)
}

func TestOrderRepository_ListByAccount(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(newTestDB(t))
	for _, id := range []string{"O1", "O2"} {
		_, err := repo.CreatePlaceholder(ctx, "acc-1", id, "")
		require.NoError(t, err)
	}
	_, err := repo.CreatePlaceholder(ctx, "acc-2", "O3", "")
	require.NoError(t, err)

	orders, err := repo.List(ctx, order.ListFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	status := order.StatusUnknown
	orders, err = repo.List(ctx, order.ListFilter{Status: &status, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
