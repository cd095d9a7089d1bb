package events

// Event types follow the format: domain.action

// Order events
const (
	EventTypeOrderRecorded      = "order.recorded"
	EventTypeOrderStatusChanged = "order.status_changed"
)

// Delivery events
const (
	EventTypeDeliverySucceeded = "delivery.succeeded"
	EventTypeDeliveryFailed    = "delivery.failed"
	EventTypeDeliveryNoMatch   = "delivery.no_match"
	EventTypeWorkflowStarted   = "workflow.started"
)

// Aggregate types
const (
	AggregateOrder = "order"
	AggregateRule  = "rule"
)

type OrderRecordedPayload struct {
	OrderID   string `json:"order_id"`
	AccountID string `json:"account_id"`
	ChatID    string `json:"chat_id,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID        string `json:"order_id"`
	AccountID      string `json:"account_id"`
	Status         int    `json:"status"`
	StatusText     string `json:"status_text"`
	PreviousStatus int    `json:"previous_status"`
	PreviousText   string `json:"previous_status_text,omitempty"`
	Trigger        string `json:"trigger,omitempty"`
}

type DeliveryPayload struct {
	OrderID      string `json:"order_id"`
	AccountID    string `json:"account_id"`
	RuleID       int64  `json:"rule_id,omitempty"`
	RuleName     string `json:"rule_name,omitempty"`
	DeliveryType string `json:"delivery_type,omitempty"`
	TriggerOn    string `json:"trigger_on,omitempty"`
	SkuText      string `json:"sku_text,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
}

type WorkflowStartedPayload struct {
	OrderID    string `json:"order_id"`
	AccountID  string `json:"account_id"`
	RuleID     int64  `json:"rule_id"`
	WorkflowID int64  `json:"workflow_id"`
}
