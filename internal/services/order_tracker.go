package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/domain/order"
	"xianyu-autosell/internal/events"
	"xianyu-autosell/internal/orderdetail"
	"xianyu-autosell/internal/repository"
	"xianyu-autosell/internal/session"
	"xianyu-autosell/internal/workflow"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"

	"golang.org/x/sync/singleflight"
)

// ClientLookup resolves an account to its session client.
type ClientLookup interface {
	Lookup(accountID string) (session.Client, error)
}

// RefreshQueue schedules background detail refreshes.
type RefreshQueue interface {
	Enqueue(accountID, orderID string) bool
}

// OrderTracker keeps the local order projection current and fires delivery
// when an order enters a qualifying state.
type OrderTracker struct {
	orders       repository.OrderRepository
	autosell     *AutoSellService
	clients      ClientLookup
	workflow     workflow.Starter
	parser       *orderdetail.Parser
	events       *events.Emitter
	queue        RefreshQueue
	refreshes    singleflight.Group
	fetchTimeout time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	log          *logger.Logger
}

// NewOrderTracker creates a tracker. starter may be nil, in which case matched
// rules are always delivered directly.
func NewOrderTracker(
	orders repository.OrderRepository,
	autosellSvc *AutoSellService,
	clients ClientLookup,
	starter workflow.Starter,
	emitter *events.Emitter,
	fetchTimeout time.Duration,
	log *logger.Logger,
) *OrderTracker {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	return &OrderTracker{
		orders:       orders,
		autosell:     autosellSvc,
		clients:      clients,
		workflow:     starter,
		parser:       orderdetail.NewParser(),
		events:       emitter,
		fetchTimeout: fetchTimeout,
		sleep:        sleepContext,
		log:          log,
	}
}

// SetRefreshQueue wires the background queue used by HandleOrderMessage.
func (t *OrderTracker) SetRefreshQueue(q RefreshQueue) {
	t.queue = q
}

// RecordOrderEvent makes sure an order record exists. A new record is a
// placeholder; an existing one only gets its chat id filled in if missing.
func (t *OrderTracker) RecordOrderEvent(ctx context.Context, accountID, orderID, chatID string) error {
	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(orderID) == "" {
		return autosell_errors.ErrInvalidInput
	}
	ctx = logger.WithOrder(ctx, accountID, orderID)
	log := t.log.WithContext(ctx)

	created, err := t.orders.CreatePlaceholder(ctx, accountID, orderID, chatID)
	if err != nil {
		return fmt.Errorf("create order placeholder: %w", err)
	}
	if created {
		log.Infof("order recorded, chat=%s", chatID)
		t.events.Emit(ctx, accountID, events.EventTypeOrderRecorded, events.AggregateOrder, orderID, events.OrderRecordedPayload{
			OrderID: orderID, AccountID: accountID, ChatID: chatID,
		})
		return nil
	}

	updated, err := t.orders.BackfillChatID(ctx, orderID, chatID)
	if err != nil {
		return fmt.Errorf("backfill chat id: %w", err)
	}
	if updated {
		log.Infof("order chat id set to %s", chatID)
	} else {
		log.Debugf("order already known")
	}
	return nil
}

// HandleOrderMessage records the order and schedules a detail refresh in the
// background. Refresh failures never reach the caller.
func (t *OrderTracker) HandleOrderMessage(ctx context.Context, accountID, orderID, chatID string) error {
	if err := t.RecordOrderEvent(ctx, accountID, orderID, chatID); err != nil {
		return err
	}
	if t.queue != nil {
		if !t.queue.Enqueue(accountID, orderID) {
			t.log.WithContext(logger.WithOrder(ctx, accountID, orderID)).Warnf("refresh queue full, detail refresh dropped")
		}
		return nil
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.log.Errorf("order %s refresh panicked: %v\n%s", orderID, r, debug.Stack())
			}
		}()
		_, _ = t.RefreshOrderDetail(context.Background(), accountID, orderID)
	}()
	return nil
}

// RefreshOrderDetail fetches the authoritative detail, stores it and fires
// delivery on entry into a qualifying state. Concurrent refreshes of the same
// order share one execution.
func (t *OrderTracker) RefreshOrderDetail(ctx context.Context, accountID, orderID string) (*orderdetail.Detail, error) {
	v, err, _ := t.refreshes.Do(orderID, func() (interface{}, error) {
		return t.refresh(ctx, accountID, orderID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*orderdetail.Detail), nil
}

func (t *OrderTracker) refresh(ctx context.Context, accountID, orderID string) (*orderdetail.Detail, error) {
	ctx = logger.WithOrder(ctx, accountID, orderID)
	log := t.log.WithContext(ctx)

	client, err := t.clients.Lookup(accountID)
	if err != nil {
		log.Warnf("no live session for account: %v", err)
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	raw, err := client.FetchOrderDetail(fetchCtx, orderID)
	cancel()
	if err != nil {
		log.Errorf("fetch order detail: %v", err)
		return nil, err
	}

	detail, err := t.parser.Parse(raw)
	if err != nil {
		if errors.Is(err, autosell_errors.ErrEmptyOrderDetail) {
			log.Warnf("order detail response is empty")
		} else {
			log.Errorf("parse order detail: %v", err)
		}
		return nil, err
	}
	if detail.SkuText == "" {
		log.Warnf("no sku found: status=%s item=%q", detail.StatusText, detail.ItemTitle)
		log.Debugf("item fields: %s", strings.Join(detail.ItemKeys, ", "))
	}

	prevState := orderdetail.LifecycleOther
	prev, err := t.orders.GetByID(ctx, orderID)
	switch {
	case err == nil:
		prevState = orderdetail.Resolve(prev.Status, prev.StatusText)
	case errors.Is(err, autosell_errors.ErrNotFound):
		prev = order.Order{Status: order.StatusUnknown}
	default:
		return nil, fmt.Errorf("load order: %w", err)
	}

	if err := t.orders.Upsert(ctx, detail.Order(client.AccountID(), orderID)); err != nil {
		return nil, fmt.Errorf("store order: %w", err)
	}
	log.Infof("order detail stored: status=%d %s sku=%q (was %d %s)",
		detail.Status, detail.StatusText, detail.SkuText, prev.Status, prev.StatusText)

	trigger, fire := orderdetail.Transition(prevState, detail.Lifecycle())
	if prev.Status != detail.Status || prev.StatusText != detail.StatusText {
		t.events.Emit(ctx, accountID, events.EventTypeOrderStatusChanged, events.AggregateOrder, orderID, events.OrderStatusChangedPayload{
			OrderID:        orderID,
			AccountID:      accountID,
			Status:         int(detail.Status),
			StatusText:     detail.StatusText,
			PreviousStatus: int(prev.Status),
			PreviousText:   prev.StatusText,
			Trigger:        string(trigger),
		})
	}
	if fire {
		log.Infof("order entered %s, triggering %s delivery", detail.Lifecycle(), trigger)
		t.triggerDelivery(ctx, client.AccountID(), orderID, detail, trigger)
	} else {
		log.Debugf("no delivery trigger: %s -> %s", prevState, detail.Lifecycle())
	}
	return detail, nil
}

func (t *OrderTracker) triggerDelivery(ctx context.Context, accountID, orderID string, detail *orderdetail.Detail, trigger autosell.TriggerOn) {
	log := t.log.WithContext(ctx)

	oc := autosell.OrderContext{BuyerUserID: detail.BuyerUserID, SkuText: detail.SkuText}
	if stored, err := t.orders.GetByID(ctx, orderID); err == nil {
		oc.ChatID = stored.ChatID.String
		oc.SkuText = stored.SkuText.String
	}

	delivered, err := t.autosell.HasDelivered(ctx, orderID)
	if err != nil {
		log.Errorf("check delivery log: %v", err)
		return
	}
	if delivered {
		log.Infof("order already delivered, not triggering")
		return
	}

	rule, err := t.autosell.MatchRule(ctx, accountID, detail.ItemID, trigger, oc.SkuText)
	if err != nil {
		if errors.Is(err, autosell_errors.ErrNoMatchingRule) {
			log.Warnf("no auto-sell rule matched: item=%s %v", detail.ItemID, err)
			t.events.Emit(ctx, accountID, events.EventTypeDeliveryNoMatch, events.AggregateOrder, orderID, events.DeliveryPayload{
				OrderID: orderID, AccountID: accountID, TriggerOn: string(trigger), SkuText: oc.SkuText,
				Error: err.Error(), ErrorKind: autosell_errors.Kind(err),
			})
			return
		}
		log.Errorf("match rule: %v", err)
		return
	}

	if rule.DelaySeconds > 0 {
		log.Infof("waiting %ds before delivery via rule %q", rule.DelaySeconds, rule.Name)
		if err := t.sleep(ctx, time.Duration(rule.DelaySeconds)*time.Second); err != nil {
			log.Warnf("delivery delay interrupted: %v", err)
			return
		}
	}

	if rule.WorkflowID.Valid && t.workflow != nil {
		t.startWorkflow(ctx, accountID, orderID, detail.ItemID, rule, oc)
		return
	}

	t.autosell.ProcessAutoSell(ctx, ProcessRequest{
		AccountID: accountID,
		OrderID:   orderID,
		ItemID:    detail.ItemID,
		TriggerOn: trigger,
		Context:   oc,
	})
}

func (t *OrderTracker) startWorkflow(ctx context.Context, accountID, orderID, itemID string, rule autosell.Rule, oc autosell.OrderContext) {
	log := t.log.WithContext(ctx)
	err := t.workflow.Start(ctx, rule.WorkflowID.Int64, workflow.ExecutionContext{
		OrderID:     orderID,
		AccountID:   accountID,
		ItemID:      itemID,
		RuleID:      rule.ID,
		BuyerUserID: oc.BuyerUserID,
		ChatID:      oc.ChatID,
		SkuText:     oc.SkuText,
	})
	switch {
	case errors.Is(err, autosell_errors.ErrWorkflowAlreadyRunning):
		log.Debugf("workflow %d already running for order", rule.WorkflowID.Int64)
	case err != nil:
		log.Warnf("start workflow %d for rule %q: %v", rule.WorkflowID.Int64, rule.Name, err)
	default:
		log.Infof("workflow %d started for rule %q", rule.WorkflowID.Int64, rule.Name)
		t.events.Emit(ctx, accountID, events.EventTypeWorkflowStarted, events.AggregateOrder, orderID, events.WorkflowStartedPayload{
			OrderID: orderID, AccountID: accountID, RuleID: rule.ID, WorkflowID: rule.WorkflowID.Int64,
		})
	}
}

func (t *OrderTracker) GetOrder(ctx context.Context, orderID string) (order.Order, error) {
	return t.orders.GetByID(ctx, orderID)
}

func (t *OrderTracker) ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, error) {
	return t.orders.List(ctx, filter)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
