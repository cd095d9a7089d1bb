package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	autosell_errors "xianyu-autosell/pkg/errors"
)

// ExecutionContext is the variable bag handed to a workflow run.
type ExecutionContext struct {
	OrderID     string `json:"orderId"`
	AccountID   string `json:"accountId"`
	ItemID      string `json:"itemId,omitempty"`
	RuleID      int64  `json:"ruleId"`
	BuyerUserID string `json:"buyerUserId,omitempty"`
	ChatID      string `json:"chatId,omitempty"`
	SkuText     string `json:"skuText,omitempty"`
}

// Starter launches workflow executions. Start returns ErrWorkflowAlreadyRunning
// when the engine is already running the workflow for the same order.
type Starter interface {
	Start(ctx context.Context, workflowID int64, ec ExecutionContext) error
}

// HTTPStarter talks to the workflow engine over
// POST {base}/workflows/{id}/executions.
type HTTPStarter struct {
	baseURL string
	http    *http.Client
}

func NewHTTPStarter(baseURL string, httpClient *http.Client) *HTTPStarter {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPStarter{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type startResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// alreadyRunningMessages are the engine's error texts for a duplicate start.
var alreadyRunningMessages = []string{"workflow already executing", "流程已在执行中"}

func isAlreadyRunning(msg string) bool {
	msg = strings.TrimSpace(msg)
	for _, m := range alreadyRunningMessages {
		if strings.EqualFold(msg, m) {
			return true
		}
	}
	return false
}

func (s *HTTPStarter) Start(ctx context.Context, workflowID int64, ec ExecutionContext) error {
	body, err := json.Marshal(ec)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/workflows/%d/executions", s.baseURL, workflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("start workflow %d: %w", workflowID, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode == http.StatusConflict {
		return autosell_errors.ErrWorkflowAlreadyRunning
	}
	var out startResponse
	_ = json.Unmarshal(raw, &out)
	if !out.Success && isAlreadyRunning(out.Error) {
		return autosell_errors.ErrWorkflowAlreadyRunning
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return fmt.Errorf("start workflow %d: status %d: %s", workflowID, resp.StatusCode, msg)
	}
	if out.Error != "" && !out.Success {
		return fmt.Errorf("start workflow %d: %s", workflowID, out.Error)
	}
	return nil
}
