package autosell

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeliveryType selects the backend that produces delivery content.
type DeliveryType string

const (
	DeliveryFixed DeliveryType = "fixed"
	DeliveryStock DeliveryType = "stock"
	DeliveryAPI   DeliveryType = "api"
)

// TriggerOn is the lifecycle point at which a rule may fire.
type TriggerOn string

const (
	TriggerPaid      TriggerOn = "paid"
	TriggerConfirmed TriggerOn = "confirmed"
)

func (t TriggerOn) Valid() bool {
	return t == TriggerPaid || t == TriggerConfirmed
}

// APIConfig describes a remote content source for api-type rules.
type APIConfig struct {
	URL              string            `json:"url"`
	Method           string            `json:"method"`
	Headers          map[string]string `json:"headers,omitempty"`
	Body             string            `json:"body,omitempty"`
	ResponseField    string            `json:"responseField,omitempty"`
	ResponseTemplate string            `json:"responseTemplate,omitempty"`
}

// Rule is an operator-configured delivery policy. Nil filters match anything.
type Rule struct {
	ID              int64
	Name            string
	Enabled         bool
	AccountID       sql.NullString
	ItemID          sql.NullString
	SkuText         sql.NullString
	DeliveryType    DeliveryType
	DeliveryContent sql.NullString
	APIConfig       *APIConfig
	TriggerOn       TriggerOn
	WorkflowID      sql.NullInt64
	DelaySeconds    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StockItem is a single-use unit of content owned by one rule.
type StockItem struct {
	ID          int64
	RuleID      int64
	Content     string
	Used        bool
	UsedOrderID sql.NullString
	CreatedAt   time.Time
	UsedAt      sql.NullTime
}

// StockStats summarises a rule's stock pool.
type StockStats struct {
	Total     int64 `json:"total"`
	Used      int64 `json:"used"`
	Available int64 `json:"available"`
}

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
)

// DeliveryLog is one append-only delivery attempt.
type DeliveryLog struct {
	ID           uuid.UUID
	RuleID       sql.NullInt64
	OrderID      string
	AccountID    string
	DeliveryType DeliveryType
	Content      string
	Status       DeliveryStatus
	ErrorMessage sql.NullString
	CreatedAt    time.Time
}

// DeliveryResult is what a backend produced. Err is set on failure and Error mirrors
// its message for callers that serialise the result.
type DeliveryResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

func Succeeded(content string) DeliveryResult {
	return DeliveryResult{Success: true, Content: content}
}

func Failed(err error) DeliveryResult {
	return DeliveryResult{Success: false, Error: err.Error(), Err: err}
}

// Outcome is a DeliveryResult annotated with the rule that produced it.
// AuditError is set when the attempt could not be written to the delivery log,
// in which case the order is not yet considered delivered.
type Outcome struct {
	DeliveryResult
	RuleID     int64  `json:"ruleId,omitempty"`
	RuleName   string `json:"ruleName,omitempty"`
	AuditError string `json:"auditError,omitempty"`
}

// OrderContext carries the optional per-order attributes a caller may know.
type OrderContext struct {
	BuyerUserID string
	ChatID      string
	SkuText     string
}
