package services

import (
	"context"
	"database/sql"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/repository"
	"xianyu-autosell/pkg/logger"
)

// DeliveryLogger is the audit trail of delivery attempts and the oracle for
// whether an order was already handled.
type DeliveryLogger struct {
	logs repository.DeliveryLogRepository
	log  *logger.Logger
}

func NewDeliveryLogger(logs repository.DeliveryLogRepository, log *logger.Logger) *DeliveryLogger {
	return &DeliveryLogger{logs: logs, log: log}
}

// Record appends one row for an attempt made with rule.
func (l *DeliveryLogger) Record(ctx context.Context, rule autosell.Rule, orderID, accountID string, result autosell.DeliveryResult) error {
	entry := &autosell.DeliveryLog{
		RuleID:       sql.NullInt64{Int64: rule.ID, Valid: rule.ID != 0},
		OrderID:      orderID,
		AccountID:    accountID,
		DeliveryType: rule.DeliveryType,
		Status:       autosell.DeliveryFailed,
	}
	if result.Success {
		entry.Status = autosell.DeliverySuccess
		entry.Content = result.Content
	} else if result.Error != "" {
		entry.ErrorMessage = sql.NullString{String: result.Error, Valid: true}
	}
	if err := l.logs.Add(ctx, entry); err != nil {
		l.log.WithContext(ctx).Errorf("write delivery log: %v", err)
		return err
	}
	return nil
}

func (l *DeliveryLogger) HasDelivered(ctx context.Context, orderID string) (bool, error) {
	return l.logs.HasDelivered(ctx, orderID)
}

func (l *DeliveryLogger) ForOrder(ctx context.Context, orderID string) ([]autosell.DeliveryLog, error) {
	return l.logs.ListByOrder(ctx, orderID)
}
