package order

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the numeric order status reported by the marketplace.
type Status int

const (
	StatusUnknown         Status = 0
	StatusPendingPayment  Status = 1
	StatusPendingShipment Status = 2
	StatusPendingReceipt  Status = 3
	StatusCompleted       Status = 4
	StatusClosed          Status = 5
)

// PlaceholderStatusText marks a record created from a message event whose detail has
// not been fetched yet.
const PlaceholderStatusText = "获取中..."

// UnknownStatusText is used when neither the payload nor the enum names the status.
const UnknownStatusText = "未知状态"

var statusText = map[Status]string{
	StatusPendingPayment:  "待付款",
	StatusPendingShipment: "待发货",
	StatusPendingReceipt:  "待收货",
	StatusCompleted:       "交易成功",
	StatusClosed:          "交易关闭",
}

// Text returns the display text for a known status.
func (s Status) Text() (string, bool) {
	t, ok := statusText[s]
	return t, ok
}

// Order is the locally tracked projection of one marketplace order. Nullable columns
// are only ever filled in, never cleared.
type Order struct {
	OrderID       string
	AccountID     string
	ItemID        sql.NullString
	ItemTitle     sql.NullString
	ItemPicURL    sql.NullString
	Price         decimal.NullDecimal
	SkuText       sql.NullString
	BuyerUserID   sql.NullString
	BuyerNickname sql.NullString
	Status        Status
	StatusText    string
	ChatID        sql.NullString
	OrderTime     sql.NullString
	PayTime       sql.NullString
	ShipTime      sql.NullString
	CompleteTime  sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListFilter narrows order listings.
type ListFilter struct {
	AccountID string
	Status    *Status
	Limit     int
	Offset    int
}
