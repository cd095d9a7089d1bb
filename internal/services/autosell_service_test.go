package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/events"
	"xianyu-autosell/internal/repository"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paidRequest(orderID string) ProcessRequest {
	return ProcessRequest{
		AccountID: "acc-1",
		OrderID:   orderID,
		ItemID:    "item-1",
		TriggerOn: autosell.TriggerPaid,
	}
}

func TestProcessAutoSell_FixedDelivery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createRule(t, fixedRule("R1", "", "CODE-A"))
	env.createRule(t, fixedRule("R2", "100次", "CODE-B"))

	req := paidRequest("O1")
	req.Context.SkuText = "100次"
	out := env.autosell.ProcessAutoSell(ctx, req)

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "CODE-A", out.Content)
	assert.Equal(t, "R1", out.RuleName)

	logs := env.deliveryLogs(t, "O1")
	require.Len(t, logs, 1)
	assert.Equal(t, autosell.DeliverySuccess, logs[0].Status)
	assert.Equal(t, "CODE-A", logs[0].Content)
	assert.Equal(t, out.RuleID, logs[0].RuleID.Int64)
	assert.Equal(t, "acc-1", logs[0].AccountID)
	assert.Equal(t, []string{events.EventTypeDeliverySucceeded}, env.published.types())
}

func TestProcessAutoSell_SecondCallIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rule := env.createRule(t, autosell.Rule{Name: "stock", DeliveryType: autosell.DeliveryStock})
	_, err := env.stock.Add(ctx, rule.ID, []string{"K1", "K2"})
	require.NoError(t, err)

	first := env.autosell.ProcessAutoSell(ctx, paidRequest("O1"))
	require.True(t, first.Success, first.Error)
	assert.Equal(t, "K1", first.Content)

	second := env.autosell.ProcessAutoSell(ctx, paidRequest("O1"))
	assert.False(t, second.Success)
	assert.ErrorIs(t, second.Err, autosell_errors.ErrAlreadyDelivered)
	assert.Zero(t, second.RuleID)

	stats, err := env.stock.Stats(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Used)
	assert.Len(t, env.deliveryLogs(t, "O1"), 1)
}

func TestProcessAutoSell_NoMatchingRule(t *testing.T) {
	env := newTestEnv(t)
	env.createRule(t, fixedRule("only-100", "100次", "X"))

	req := paidRequest("O1")
	req.Context.SkuText = "50次"
	out := env.autosell.ProcessAutoSell(context.Background(), req)

	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, autosell_errors.ErrNoMatchingRule)
	assert.Empty(t, env.deliveryLogs(t, "O1"))
	assert.Equal(t, []string{events.EventTypeDeliveryNoMatch}, env.published.types())
}

func TestProcessAutoSell_EmptyStockIsLogged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rule := env.createRule(t, autosell.Rule{Name: "stock", DeliveryType: autosell.DeliveryStock})

	out := env.autosell.ProcessAutoSell(ctx, paidRequest("O1"))
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, autosell_errors.ErrInsufficientStock)
	assert.Equal(t, rule.ID, out.RuleID)

	logs := env.deliveryLogs(t, "O1")
	require.Len(t, logs, 1)
	assert.Equal(t, autosell.DeliveryFailed, logs[0].Status)
	assert.Equal(t, autosell_errors.ErrInsufficientStock.Error(), logs[0].ErrorMessage.String)
	assert.Empty(t, logs[0].Content)
	assert.Equal(t, []string{events.EventTypeDeliveryFailed}, env.published.types())

	// A logged failure also closes the order.
	_, err := env.stock.Add(ctx, rule.ID, []string{"late"})
	require.NoError(t, err)
	retry := env.autosell.ProcessAutoSell(ctx, paidRequest("O1"))
	assert.ErrorIs(t, retry.Err, autosell_errors.ErrAlreadyDelivered)
}

func TestProcessAutoSell_InvalidRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out := env.autosell.ProcessAutoSell(ctx, ProcessRequest{AccountID: "acc-1"})
	assert.ErrorIs(t, out.Err, autosell_errors.ErrInvalidInput)

	req := paidRequest("O1")
	req.TriggerOn = "shipped"
	out = env.autosell.ProcessAutoSell(ctx, req)
	assert.ErrorIs(t, out.Err, autosell_errors.ErrInvalidInput)

	req = paidRequest("O1")
	req.TriggerOn = ""
	env.createRule(t, fixedRule("R1", "", "CODE-A"))
	out = env.autosell.ProcessAutoSell(ctx, req)
	assert.True(t, out.Success, out.Error)
}

type stubLocker struct {
	ok  bool
	err error
}

func (l stubLocker) TryLock(context.Context, string) (func(), bool, error) {
	if l.err != nil || !l.ok {
		return nil, l.ok, l.err
	}
	return func() {}, true, nil
}

func TestProcessAutoSell_LockOutcomes(t *testing.T) {
	env := newTestEnv(t)
	env.createRule(t, fixedRule("R1", "", "CODE-A"))
	log := logger.NewNop()

	busy := NewAutoSellService(NewRuleMatcher(env.rules, log), env.stock, env.executor, env.deliveries, stubLocker{ok: false}, nil, log)
	out := busy.ProcessAutoSell(context.Background(), paidRequest("O1"))
	assert.ErrorIs(t, out.Err, autosell_errors.ErrDeliveryInProgress)

	lockErr := errors.New("redis down")
	broken := NewAutoSellService(NewRuleMatcher(env.rules, log), env.stock, env.executor, env.deliveries, stubLocker{err: lockErr}, nil, log)
	out = broken.ProcessAutoSell(context.Background(), paidRequest("O1"))
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, lockErr)

	assert.Empty(t, env.deliveryLogs(t, "O1"))
}

// failingDeliveryLogs rejects every write and reads through to the real table.
type failingDeliveryLogs struct {
	repository.DeliveryLogRepository
	err error
}

func (f failingDeliveryLogs) Add(context.Context, *autosell.DeliveryLog) error { return f.err }

func TestProcessAutoSell_AuditWriteFailure(t *testing.T) {
	env := newTestEnv(t)
	env.createRule(t, fixedRule("R1", "", "CODE-A"))
	log := logger.NewNop()

	writeErr := errors.New("disk full")
	svc := NewAutoSellService(
		NewRuleMatcher(env.rules, log),
		env.stock,
		env.executor,
		NewDeliveryLogger(failingDeliveryLogs{DeliveryLogRepository: env.logs, err: writeErr}, log),
		NewLocalOrderLocker(),
		env.emitter,
		log,
	)
	out := svc.ProcessAutoSell(context.Background(), paidRequest("O1"))

	require.True(t, out.Success, out.Error)
	assert.Equal(t, "CODE-A", out.Content)
	assert.Equal(t, "disk full", out.AuditError)
	assert.Empty(t, env.deliveryLogs(t, "O1"))
	assert.Equal(t, []string{events.EventTypeDeliveryFailed}, env.published.types())

	delivered, err := svc.HasDelivered(context.Background(), "O1")
	require.NoError(t, err)
	assert.False(t, delivered)
}

func TestProcessAutoSell_ConcurrentSameOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rule := env.createRule(t, autosell.Rule{Name: "stock", DeliveryType: autosell.DeliveryStock})
	_, err := env.stock.Add(ctx, rule.ID, []string{"K1", "K2", "K3"})
	require.NoError(t, err)

	const callers = 10
	results := make([]autosell.Outcome, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = env.autosell.ProcessAutoSell(ctx, paidRequest("O1"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
			continue
		}
		assert.True(t,
			errors.Is(r.Err, autosell_errors.ErrAlreadyDelivered) || errors.Is(r.Err, autosell_errors.ErrDeliveryInProgress),
			"unexpected failure: %v", r.Err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, env.deliveryLogs(t, "O1"), 1)

	stats, err := env.stock.Stats(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Used)
}

func TestProcessAutoSell_ConcurrentOrdersShareStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rule := env.createRule(t, autosell.Rule{Name: "stock", DeliveryType: autosell.DeliveryStock})
	_, err := env.stock.Add(ctx, rule.ID, []string{"K1", "K2", "K3"})
	require.NoError(t, err)

	orders := []string{"O1", "O2", "O3", "O4", "O5"}
	results := make([]autosell.Outcome, len(orders))
	var wg sync.WaitGroup
	for i, id := range orders {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i] = env.autosell.ProcessAutoSell(ctx, paidRequest(id))
		}(i, id)
	}
	wg.Wait()

	contents := map[string]bool{}
	for _, r := range results {
		if r.Success {
			assert.False(t, contents[r.Content], "unit %s delivered twice", r.Content)
			contents[r.Content] = true
		} else {
			assert.ErrorIs(t, r.Err, autosell_errors.ErrInsufficientStock)
		}
	}
	assert.Len(t, contents, 3)
}

func TestAutoSellService_GetRuleStockStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rule := env.createRule(t, autosell.Rule{Name: "stock", DeliveryType: autosell.DeliveryStock})
	_, err := env.stock.Add(ctx, rule.ID, []string{"a", "b"})
	require.NoError(t, err)

	stats, err := env.autosell.GetRuleStockStatus(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, autosell.StockStats{Total: 2, Used: 0, Available: 2}, stats)

	_, err = env.autosell.GetRuleStockStatus(ctx, rule.ID+100)
	assert.ErrorIs(t, err, autosell_errors.ErrNotFound)
}

func TestLocalOrderLocker(t *testing.T) {
	l := NewLocalOrderLocker()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "O1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = l.TryLock(ctx, "O1")
	assert.False(t, ok)

	other, ok, _ := l.TryLock(ctx, "O2")
	assert.True(t, ok)
	other()

	release()
	release()
	again, ok, _ := l.TryLock(ctx, "O1")
	assert.True(t, ok)
	again()
}
