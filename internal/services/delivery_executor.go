package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/repository"
	"xianyu-autosell/internal/template"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"
)

const maxAPIResponseBytes = 1 << 20

var skuNumberPattern = regexp.MustCompile(`\d+`)

// DeliveryVars builds the placeholder variables available to API rules.
func DeliveryVars(orderID, accountID, itemID string, oc autosell.OrderContext) map[string]string {
	sku := strings.TrimSpace(oc.SkuText)
	return map[string]string{
		"orderId":     orderID,
		"accountId":   accountID,
		"itemId":      itemID,
		"buyerUserId": oc.BuyerUserID,
		"chatId":      oc.ChatID,
		"skuText":     sku,
		"skuNumber":   skuNumberPattern.FindString(sku),
	}
}

// DeliveryExecutor produces delivery content from a rule's backend.
type DeliveryExecutor struct {
	stock repository.StockRepository
	http  *http.Client
	log   *logger.Logger
}

// NewDeliveryExecutor creates an executor. API calls use httpClient, whose
// Timeout bounds each call.
func NewDeliveryExecutor(stock repository.StockRepository, httpClient *http.Client, log *logger.Logger) *DeliveryExecutor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &DeliveryExecutor{stock: stock, http: httpClient, log: log}
}

// Execute never returns an error: every failure is folded into the result.
func (e *DeliveryExecutor) Execute(ctx context.Context, rule autosell.Rule, orderID string, vars map[string]string) autosell.DeliveryResult {
	switch rule.DeliveryType {
	case autosell.DeliveryFixed:
		if !rule.DeliveryContent.Valid || rule.DeliveryContent.String == "" {
			return autosell.Failed(autosell_errors.ErrNoContentConfigured)
		}
		return autosell.Succeeded(rule.DeliveryContent.String)

	case autosell.DeliveryStock:
		item, err := e.stock.Claim(ctx, rule.ID, orderID)
		if err != nil {
			return autosell.Failed(err)
		}
		return autosell.Succeeded(item.Content)

	case autosell.DeliveryAPI:
		if rule.APIConfig == nil || strings.TrimSpace(rule.APIConfig.URL) == "" {
			return autosell.Failed(autosell_errors.ErrNoAPIConfigured)
		}
		content, err := e.fetchFromAPI(ctx, rule.APIConfig, vars)
		if err != nil {
			return autosell.Failed(err)
		}
		return autosell.Succeeded(content)

	default:
		return autosell.Failed(fmt.Errorf("%w: %q", autosell_errors.ErrUnknownDeliveryType, rule.DeliveryType))
	}
}

func (e *DeliveryExecutor) fetchFromAPI(ctx context.Context, cfg *autosell.APIConfig, vars map[string]string) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}
	url := template.Substitute(cfg.URL, vars)

	var body io.Reader
	if method != http.MethodGet && method != http.MethodHead && cfg.Body != "" {
		body = strings.NewReader(template.Substitute(cfg.Body, vars))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", autosell_errors.ErrAPIRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", autosell_errors.ErrAPIRequestFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", autosell_errors.ErrAPIRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %d %s", autosell_errors.ErrAPIRequestFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data any
	decodeErr := dec.Decode(&data)

	switch {
	case cfg.ResponseTemplate != "":
		if decodeErr != nil {
			return "", fmt.Errorf("%w: response is not JSON: %v", autosell_errors.ErrAPIRequestFailed, decodeErr)
		}
		rendered, missing := template.RenderWithMissing(cfg.ResponseTemplate, data)
		if len(missing) > 0 || template.HasPlaceholder(rendered) {
			e.log.WithContext(ctx).Warnf("response template left unresolved placeholders %v: %s", missing, rendered)
		}
		return rendered, nil

	case cfg.ResponseField != "":
		if decodeErr != nil {
			return "", fmt.Errorf("%w: response is not JSON: %v", autosell_errors.ErrAPIRequestFailed, decodeErr)
		}
		v, ok := template.GetByPath(data, cfg.ResponseField)
		if !ok {
			return "", fmt.Errorf("%w: %s", autosell_errors.ErrResponseFieldMissing, cfg.ResponseField)
		}
		return template.Stringify(v), nil

	default:
		if decodeErr != nil {
			return strings.TrimSpace(string(raw)), nil
		}
		return template.Stringify(data), nil
	}
}
