package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xianyu-autosell/config"
	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/handler"
	"xianyu-autosell/internal/repository"
	"xianyu-autosell/internal/services"
	"xianyu-autosell/internal/session"
	"xianyu-autosell/pkg/database"
	"xianyu-autosell/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shippedDetail = `{
  "status": 2,
  "itemId": "item-1",
  "peerUserId": "buyer-1",
  "components": [{"render": "orderInfoVO", "data": {"itemInfo": {"title": "会员卡", "sku": "100次", "price": "9.9"}}}]
}`

type staticClient struct {
	account string
	detail  string
}

func (c staticClient) AccountID() string { return c.account }
func (c staticClient) IsAlive() bool     { return true }
func (c staticClient) FetchOrderDetail(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(c.detail), nil
}

type discardQueue struct{}

func (discardQueue) Enqueue(string, string) bool { return true }

type testServer struct {
	server *Server
	rules  repository.RuleRepository
	stock  repository.StockRepository
}

func newTestServer(t *testing.T, secret string, checks map[string]HealthCheck) *testServer {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "autosell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.ApplyMigrations(context.Background(), db, database.DialectSQLite))

	log := logger.NewNop()
	orders := repository.NewOrderRepository(db)
	rules := repository.NewRuleRepository(db)
	stock := repository.NewStockRepository(db, database.DialectSQLite)
	logs := repository.NewDeliveryLogRepository(db)

	autosellSvc := services.NewAutoSellService(
		services.NewRuleMatcher(rules, log),
		stock,
		services.NewDeliveryExecutor(stock, &http.Client{Timeout: 5 * time.Second}, log),
		services.NewDeliveryLogger(logs, log),
		nil, nil, log,
	)
	registry := session.NewRegistry(nil)
	registry.Register(staticClient{account: "acc-1", detail: shippedDetail})
	tracker := services.NewOrderTracker(orders, autosellSvc, registry, nil, nil, time.Second, log)
	tracker.SetRefreshQueue(discardQueue{})
	importer := services.NewStockImporter(rules, stock, nil, log)

	if checks == nil {
		checks = map[string]HealthCheck{"database": func(ctx context.Context) error { return database.Ping(ctx, db) }}
	}
	s := New(&config.Config{AppMode: TestMode, AppPort: "0", OperatorJWTSecret: secret}, log)
	s.SetupRoutes(&Handlers{
		Orders:   handler.NewOrderHandler(tracker),
		AutoSell: handler.NewAutoSellHandler(autosellSvc, importer),
	}, checks, nil)
	return &testServer{server: s, rules: rules, stock: stock}
}

func (ts *testServer) do(t *testing.T, method, path, contentType, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(w, req)
	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func (ts *testServer) createRule(t *testing.T, rule autosell.Rule) autosell.Rule {
	t.Helper()
	rule.Enabled = true
	require.NoError(t, ts.rules.Create(context.Background(), &rule))
	return rule
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func TestPingAndHealth(t *testing.T) {
	ts := newTestServer(t, "", nil)

	w, body := ts.do(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", data(t, body)["message"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w, body = ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", data(t, body)["checks"].(map[string]any)["database"])
}

func TestHealthReportsFailingDependency(t *testing.T) {
	ts := newTestServer(t, "", map[string]HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w, body := ts.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "connection refused", data(t, body)["redis"])
}

func TestOrderMessageAndLookup(t *testing.T) {
	ts := newTestServer(t, "", nil)

	w, _ := ts.do(t, http.MethodPost, "/v1/events/order-message", "application/json",
		`{"account_id":"acc-1","order_id":"O1","chat_id":"chat-1"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w, body := ts.do(t, http.MethodGet, "/v1/orders/O1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	o := data(t, body)
	assert.Equal(t, "获取中...", o["status_text"])
	assert.Equal(t, "chat-1", o["chat_id"])

	w, body = ts.do(t, http.MethodGet, "/v1/orders?account_id=acc-1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(t, body)["orders"], 1)

	w, body = ts.do(t, http.MethodGet, "/v1/orders/missing", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])

	w, _ = ts.do(t, http.MethodPost, "/v1/events/order-message", "application/json", `{"account_id":"acc-1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRefreshDeliversOnPaid(t *testing.T) {
	ts := newTestServer(t, "", nil)
	ts.createRule(t, autosell.Rule{
		Name:            "R1",
		DeliveryType:    autosell.DeliveryFixed,
		DeliveryContent: sql.NullString{String: "CODE-A", Valid: true},
	})
	ts.do(t, http.MethodPost, "/v1/events/order-message", "application/json", `{"account_id":"acc-1","order_id":"O1"}`)

	w, body := ts.do(t, http.MethodPost, "/v1/orders/O1/refresh", "", "")
	require.Equal(t, http.StatusOK, w.Code, body)
	d := data(t, body)
	assert.Equal(t, "pending_shipment", d["detail"].(map[string]any)["lifecycle"])
	assert.Equal(t, "9.90", d["order"].(map[string]any)["price"])

	w, body = ts.do(t, http.MethodGet, "/v1/autosell/orders/O1/deliveries", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	deliveries := data(t, body)["deliveries"].([]any)
	require.Len(t, deliveries, 1)
	assert.Equal(t, "CODE-A", deliveries[0].(map[string]any)["content"])

	w, body = ts.do(t, http.MethodPost, "/v1/orders/O1/refresh?account_id=acc-9", "", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "transient", body["kind"])
}

func TestProcessEndpoint(t *testing.T) {
	ts := newTestServer(t, "", nil)
	ts.createRule(t, autosell.Rule{
		Name:            "R1",
		SkuText:         sql.NullString{String: "100次", Valid: true},
		DeliveryType:    autosell.DeliveryFixed,
		DeliveryContent: sql.NullString{String: "CODE-B", Valid: true},
	})

	w, body := ts.do(t, http.MethodPost, "/v1/autosell/process", "application/json",
		`{"account_id":"acc-1","order_id":"O1","item_id":"item-1","sku_text":"100次"}`)
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "CODE-B", data(t, body)["content"])
	assert.Equal(t, "R1", data(t, body)["ruleName"])

	w, body = ts.do(t, http.MethodPost, "/v1/autosell/process", "application/json",
		`{"account_id":"acc-1","order_id":"O1","item_id":"item-1","sku_text":"100次"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "duplicate", body["kind"])

	w, body = ts.do(t, http.MethodPost, "/v1/autosell/process", "application/json",
		`{"account_id":"acc-1","order_id":"O2","item_id":"item-1","sku_text":"50次"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "no_match", body["kind"])
	assert.Equal(t, false, data(t, body)["success"])
}

func TestStockEndpoints(t *testing.T) {
	ts := newTestServer(t, "", nil)
	rule := ts.createRule(t, autosell.Rule{Name: "stock", DeliveryType: autosell.DeliveryStock})
	base := "/v1/autosell/rules/" + jsonNumber(rule.ID) + "/stock"

	w, body := ts.do(t, http.MethodPost, base, "text/plain", "K1\nK2\n\n")
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, float64(2), data(t, body)["imported"])

	w, body = ts.do(t, http.MethodGet, base, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), data(t, body)["available"])

	w, _ = ts.do(t, http.MethodGet, "/v1/autosell/rules/abc/stock", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/v1/autosell/rules/9999/stock", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = ts.do(t, http.MethodPost, base+"/upload-url", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "UNAVAILABLE", body["code"])
}

func TestOperatorAuth(t *testing.T) {
	const secret = "s3cret"
	ts := newTestServer(t, secret, nil)

	w, _ := ts.do(t, http.MethodGet, "/v1/orders", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/ping", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	w, _ = ts.do(t, http.MethodGet, "/v1/orders", "", "", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "ops"}).SignedString([]byte("other"))
	require.NoError(t, err)
	w, _ = ts.do(t, http.MethodGet, "/v1/orders", "", "", "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRunStopsWithContext(t *testing.T) {
	s := New(&config.Config{AppMode: TestMode, AppPort: "0"}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not stop")
	}
}

func jsonNumber(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
