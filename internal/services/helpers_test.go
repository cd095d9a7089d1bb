package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/events"
	"xianyu-autosell/internal/repository"
	"xianyu-autosell/internal/session"
	"xianyu-autosell/internal/workflow"
	"xianyu-autosell/pkg/database"
	"xianyu-autosell/pkg/logger"

	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db         *sql.DB
	orders     repository.OrderRepository
	rules      repository.RuleRepository
	stock      repository.StockRepository
	logs       repository.DeliveryLogRepository
	published  *recordingPublisher
	emitter    *events.Emitter
	executor   *DeliveryExecutor
	deliveries *DeliveryLogger
	autosell   *AutoSellService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "autosell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.ApplyMigrations(context.Background(), db, database.DialectSQLite))

	log := logger.NewNop()
	env := &testEnv{
		db:        db,
		orders:    repository.NewOrderRepository(db),
		rules:     repository.NewRuleRepository(db),
		stock:     repository.NewStockRepository(db, database.DialectSQLite),
		logs:      repository.NewDeliveryLogRepository(db),
		published: &recordingPublisher{},
	}
	env.emitter = events.NewEmitter(env.published, log)
	env.executor = NewDeliveryExecutor(env.stock, &http.Client{Timeout: 5 * time.Second}, log)
	env.deliveries = NewDeliveryLogger(env.logs, log)
	env.autosell = NewAutoSellService(
		NewRuleMatcher(env.rules, log),
		env.stock,
		env.executor,
		env.deliveries,
		NewLocalOrderLocker(),
		env.emitter,
		log,
	)
	return env
}

func (e *testEnv) createRule(t *testing.T, rule autosell.Rule) autosell.Rule {
	t.Helper()
	if rule.Name == "" {
		rule.Name = "rule"
	}
	rule.Enabled = true
	require.NoError(t, e.rules.Create(context.Background(), &rule))
	return rule
}

func (e *testEnv) deliveryLogs(t *testing.T, orderID string) []autosell.DeliveryLog {
	t.Helper()
	logs, err := e.logs.ListByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return logs
}

func fixedRule(name, sku, content string) autosell.Rule {
	return autosell.Rule{
		Name:            name,
		SkuText:         sql.NullString{String: sku, Valid: sku != ""},
		DeliveryType:    autosell.DeliveryFixed,
		DeliveryContent: sql.NullString{String: content, Valid: content != ""},
		TriggerOn:       autosell.TriggerPaid,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, payload []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, env)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeClient serves queued order-detail payloads; the last one repeats.
type fakeClient struct {
	account string
	mu      sync.Mutex
	details []string
	calls   int
	err     error
}

func (c *fakeClient) AccountID() string { return c.account }
func (c *fakeClient) IsAlive() bool     { return true }

func (c *fakeClient) FetchOrderDetail(_ context.Context, _ string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if len(c.details) == 0 {
		return nil, nil
	}
	d := c.details[0]
	if len(c.details) > 1 {
		c.details = c.details[1:]
	}
	return json.RawMessage(d), nil
}

func (c *fakeClient) push(details ...string) {
	c.mu.Lock()
	c.details = append(c.details, details...)
	c.mu.Unlock()
}

type fakeStarter struct {
	mu    sync.Mutex
	calls []workflow.ExecutionContext
	ids   []int64
	err   error
}

func (s *fakeStarter) Start(_ context.Context, workflowID int64, ec workflow.ExecutionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, workflowID)
	s.calls = append(s.calls, ec)
	return s.err
}

func newRegistry(clients ...session.Client) *session.Registry {
	reg := session.NewRegistry(nil)
	for _, c := range clients {
		reg.Register(c)
	}
	return reg
}
