package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/events"
	"xianyu-autosell/internal/repository"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"
)

// ProcessRequest asks for one delivery attempt for an order.
type ProcessRequest struct {
	AccountID string
	OrderID   string
	ItemID    string
	TriggerOn autosell.TriggerOn
	Context   autosell.OrderContext
}

// AutoSellService runs the delivery pipeline: idempotency gate, rule match,
// backend execution and audit log.
type AutoSellService struct {
	matcher    *RuleMatcher
	stock      repository.StockRepository
	executor   *DeliveryExecutor
	deliveries *DeliveryLogger
	locker     OrderLocker
	events     *events.Emitter
	log        *logger.Logger
}

func NewAutoSellService(
	matcher *RuleMatcher,
	stock repository.StockRepository,
	executor *DeliveryExecutor,
	deliveries *DeliveryLogger,
	locker OrderLocker,
	emitter *events.Emitter,
	log *logger.Logger,
) *AutoSellService {
	if locker == nil {
		locker = NewLocalOrderLocker()
	}
	return &AutoSellService{
		matcher:    matcher,
		stock:      stock,
		executor:   executor,
		deliveries: deliveries,
		locker:     locker,
		events:     emitter,
		log:        log,
	}
}

// ProcessAutoSell makes at most one delivery attempt for the order. Every
// outcome, including short-circuits, is returned as a result rather than an
// error.
func (s *AutoSellService) ProcessAutoSell(ctx context.Context, req ProcessRequest) autosell.Outcome {
	ctx = logger.WithOrder(ctx, req.AccountID, req.OrderID)
	log := s.log.WithContext(ctx)

	if req.TriggerOn == "" {
		req.TriggerOn = autosell.TriggerPaid
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.AccountID) == "" || !req.TriggerOn.Valid() {
		return autosell.Outcome{DeliveryResult: autosell.Failed(autosell_errors.ErrInvalidInput)}
	}

	release, ok, err := s.locker.TryLock(ctx, req.OrderID)
	if err != nil {
		log.Errorf("delivery lock unavailable: %v", err)
		return autosell.Outcome{DeliveryResult: autosell.Failed(err)}
	}
	if !ok {
		log.Infof("delivery already in progress, skipping")
		return autosell.Outcome{DeliveryResult: autosell.Failed(autosell_errors.ErrDeliveryInProgress)}
	}
	defer release()

	delivered, err := s.deliveries.HasDelivered(ctx, req.OrderID)
	if err != nil {
		log.Errorf("check delivery log: %v", err)
		return autosell.Outcome{DeliveryResult: autosell.Failed(err)}
	}
	if delivered {
		log.Infof("order already delivered, skipping")
		return autosell.Outcome{DeliveryResult: autosell.Failed(autosell_errors.ErrAlreadyDelivered)}
	}

	sku := strings.TrimSpace(req.Context.SkuText)
	rule, err := s.matcher.Match(ctx, req.AccountID, req.ItemID, req.TriggerOn, sku)
	if err != nil {
		if errors.Is(err, autosell_errors.ErrNoMatchingRule) {
			log.Warnf("no auto-sell rule matched: item=%s %v", req.ItemID, err)
			s.emit(ctx, events.EventTypeDeliveryNoMatch, req, autosell.Rule{}, err)
			return autosell.Outcome{DeliveryResult: autosell.Failed(autosell_errors.ErrNoMatchingRule)}
		}
		log.Errorf("match rule: %v", err)
		return autosell.Outcome{DeliveryResult: autosell.Failed(err)}
	}
	log.Infof("matched rule %q (id=%d, type=%s)", rule.Name, rule.ID, rule.DeliveryType)

	outcome := autosell.Outcome{RuleID: rule.ID, RuleName: rule.Name}
	outcome.DeliveryResult = s.deliver(ctx, rule, req, sku)

	if errors.Is(outcome.Err, autosell_errors.ErrAlreadyDelivered) {
		log.Infof("order delivered concurrently, skipping")
		return outcome
	}
	if err := s.deliveries.Record(ctx, rule, req.OrderID, req.AccountID, outcome.DeliveryResult); err != nil {
		outcome.AuditError = err.Error()
		if outcome.Success {
			log.Errorf("order delivered via rule %q but not recorded: %v", rule.Name, err)
			s.emit(ctx, events.EventTypeDeliveryFailed, req, rule, fmt.Errorf("record delivery: %w", err))
			return outcome
		}
	}

	if outcome.Success {
		log.Infof("delivered order via rule %q", rule.Name)
		s.emit(ctx, events.EventTypeDeliverySucceeded, req, rule, nil)
	} else {
		log.Errorf("delivery via rule %q failed: %v", rule.Name, outcome.Err)
		s.emit(ctx, events.EventTypeDeliveryFailed, req, rule, outcome.Err)
	}
	return outcome
}

func (s *AutoSellService) deliver(ctx context.Context, rule autosell.Rule, req ProcessRequest, sku string) autosell.DeliveryResult {
	if rule.DeliveryType == autosell.DeliveryStock {
		stats, err := s.stock.Stats(ctx, rule.ID)
		if err != nil {
			return autosell.Failed(fmt.Errorf("stock stats: %w", err))
		}
		if stats.Available <= 0 {
			s.log.WithContext(ctx).Warnf("rule %q has no stock left", rule.Name)
			return autosell.Failed(autosell_errors.ErrInsufficientStock)
		}
	}
	oc := req.Context
	oc.SkuText = sku
	return s.executor.Execute(ctx, rule, req.OrderID, DeliveryVars(req.OrderID, req.AccountID, req.ItemID, oc))
}

func (s *AutoSellService) emit(ctx context.Context, eventType string, req ProcessRequest, rule autosell.Rule, err error) {
	payload := events.DeliveryPayload{
		OrderID:      req.OrderID,
		AccountID:    req.AccountID,
		RuleID:       rule.ID,
		RuleName:     rule.Name,
		DeliveryType: string(rule.DeliveryType),
		TriggerOn:    string(req.TriggerOn),
		SkuText:      strings.TrimSpace(req.Context.SkuText),
	}
	if err != nil {
		payload.Error = err.Error()
		payload.ErrorKind = autosell_errors.Kind(err)
	}
	s.events.Emit(ctx, req.AccountID, eventType, events.AggregateOrder, req.OrderID, payload)
}

// MatchRule exposes rule selection to callers that act on the rule themselves.
func (s *AutoSellService) MatchRule(ctx context.Context, accountID, itemID string, trigger autosell.TriggerOn, sku string) (autosell.Rule, error) {
	return s.matcher.Match(ctx, accountID, itemID, trigger, sku)
}

func (s *AutoSellService) HasDelivered(ctx context.Context, orderID string) (bool, error) {
	return s.deliveries.HasDelivered(ctx, orderID)
}

func (s *AutoSellService) Deliveries(ctx context.Context, orderID string) ([]autosell.DeliveryLog, error) {
	return s.deliveries.ForOrder(ctx, orderID)
}

func (s *AutoSellService) GetRuleStockStatus(ctx context.Context, ruleID int64) (autosell.StockStats, error) {
	if _, err := s.matcher.rules.GetByID(ctx, ruleID); err != nil {
		return autosell.StockStats{}, err
	}
	return s.stock.Stats(ctx, ruleID)
}
