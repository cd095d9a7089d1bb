package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	autosell_errors "xianyu-autosell/pkg/errors"
)

// failuresBeforeDown is how many consecutive transport failures mark a gateway
// client as not alive.
const failuresBeforeDown = 3

// GatewayClient reaches an account's session through the connection gateway's
// HTTP API: GET {base}/accounts/{accountId}/orders/{orderId}/detail.
type GatewayClient struct {
	baseURL   string
	accountID string
	http      *http.Client
	failures  atomic.Int32
}

func NewGatewayClient(baseURL, accountID string, httpClient *http.Client) *GatewayClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GatewayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		http:      httpClient,
	}
}

// NewGatewayFactory returns a Factory creating gateway clients on demand.
func NewGatewayFactory(baseURL string, httpClient *http.Client) Factory {
	return func(accountID string) Client {
		return NewGatewayClient(baseURL, accountID, httpClient)
	}
}

func (c *GatewayClient) AccountID() string {
	return c.accountID
}

func (c *GatewayClient) IsAlive() bool {
	return c.failures.Load() < failuresBeforeDown
}

type gatewayResponse struct {
	Data json.RawMessage `json:"data"`
}

func (c *GatewayClient) FetchOrderDetail(ctx context.Context, orderID string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/orders/%s/detail",
		c.baseURL, url.PathEscape(c.accountID), url.PathEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("%w: %v", autosell_errors.ErrClientUnavailable, err)
	}
	defer resp.Body.Close()
	c.failures.Store(0)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return nil, autosell_errors.ErrClientUnavailable
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("gateway order detail: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out gatewayResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return out.Data, nil
}
