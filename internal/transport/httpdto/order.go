package httpdto

import (
	"time"

	"xianyu-autosell/internal/domain/order"
	"xianyu-autosell/internal/orderdetail"
)

// OrderMessageRequest is the message-layer notification that an order appeared
// in a chat.
type OrderMessageRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	OrderID   string `json:"order_id" binding:"required"`
	ChatID    string `json:"chat_id"`
}

type RefreshOrderRequest struct {
	AccountID string `json:"account_id"`
}

type OrderResponse struct {
	OrderID       string    `json:"order_id"`
	AccountID     string    `json:"account_id"`
	ItemID        string    `json:"item_id,omitempty"`
	ItemTitle     string    `json:"item_title,omitempty"`
	ItemPicURL    string    `json:"item_pic_url,omitempty"`
	Price         string    `json:"price,omitempty"`
	SkuText       string    `json:"sku_text,omitempty"`
	BuyerUserID   string    `json:"buyer_user_id,omitempty"`
	BuyerNickname string    `json:"buyer_nickname,omitempty"`
	Status        int       `json:"status"`
	StatusText    string    `json:"status_text"`
	ChatID        string    `json:"chat_id,omitempty"`
	OrderTime     string    `json:"order_time,omitempty"`
	PayTime       string    `json:"pay_time,omitempty"`
	ShipTime      string    `json:"ship_time,omitempty"`
	CompleteTime  string    `json:"complete_time,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewOrderResponse(o order.Order) OrderResponse {
	resp := OrderResponse{
		OrderID:       o.OrderID,
		AccountID:     o.AccountID,
		ItemID:        o.ItemID.String,
		ItemTitle:     o.ItemTitle.String,
		ItemPicURL:    o.ItemPicURL.String,
		SkuText:       o.SkuText.String,
		BuyerUserID:   o.BuyerUserID.String,
		BuyerNickname: o.BuyerNickname.String,
		Status:        int(o.Status),
		StatusText:    o.StatusText,
		ChatID:        o.ChatID.String,
		OrderTime:     o.OrderTime.String,
		PayTime:       o.PayTime.String,
		ShipTime:      o.ShipTime.String,
		CompleteTime:  o.CompleteTime.String,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.Price.Valid {
		resp.Price = o.Price.Decimal.StringFixed(2)
	}
	return resp
}

func NewOrderResponses(orders []order.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, NewOrderResponse(o))
	}
	return out
}

// OrderDetailResponse is what a refresh learned from the marketplace.
type OrderDetailResponse struct {
	Status     int    `json:"status"`
	StatusText string `json:"status_text"`
	Lifecycle  string `json:"lifecycle"`
	ItemID     string `json:"item_id,omitempty"`
	ItemTitle  string `json:"item_title,omitempty"`
	SkuText    string `json:"sku_text,omitempty"`
	Price      string `json:"price,omitempty"`
}

func NewOrderDetailResponse(d *orderdetail.Detail) OrderDetailResponse {
	resp := OrderDetailResponse{
		Status:     int(d.Status),
		StatusText: d.StatusText,
		Lifecycle:  d.Lifecycle().String(),
		ItemID:     d.ItemID,
		ItemTitle:  d.ItemTitle,
		SkuText:    d.SkuText,
	}
	if d.Price.Valid {
		resp.Price = d.Price.Decimal.StringFixed(2)
	}
	return resp
}
