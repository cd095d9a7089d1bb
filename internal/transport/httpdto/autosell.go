package httpdto

import (
	"time"

	"xianyu-autosell/internal/domain/autosell"
)

type ProcessAutoSellRequest struct {
	AccountID   string `json:"account_id" binding:"required"`
	OrderID     string `json:"order_id" binding:"required"`
	ItemID      string `json:"item_id"`
	TriggerOn   string `json:"trigger_on"`
	BuyerUserID string `json:"buyer_user_id"`
	ChatID      string `json:"chat_id"`
	SkuText     string `json:"sku_text"`
}

type DeliveryLogResponse struct {
	ID           string    `json:"id"`
	RuleID       *int64    `json:"rule_id,omitempty"`
	OrderID      string    `json:"order_id"`
	AccountID    string    `json:"account_id"`
	DeliveryType string    `json:"delivery_type"`
	Content      string    `json:"content,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewDeliveryLogResponses(logs []autosell.DeliveryLog) []DeliveryLogResponse {
	out := make([]DeliveryLogResponse, 0, len(logs))
	for _, l := range logs {
		resp := DeliveryLogResponse{
			ID:           l.ID.String(),
			OrderID:      l.OrderID,
			AccountID:    l.AccountID,
			DeliveryType: string(l.DeliveryType),
			Content:      l.Content,
			Status:       string(l.Status),
			ErrorMessage: l.ErrorMessage.String,
			CreatedAt:    l.CreatedAt,
		}
		if l.RuleID.Valid {
			id := l.RuleID.Int64
			resp.RuleID = &id
		}
		out = append(out, resp)
	}
	return out
}

// StockImportRequest imports a file already uploaded to object storage.
type StockImportRequest struct {
	Key string `json:"key" binding:"required"`
}

type StockImportResponse struct {
	Imported int                 `json:"imported"`
	Stock    autosell.StockStats `json:"stock"`
}
