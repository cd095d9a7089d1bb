package services

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"xianyu-autosell/internal/domain/autosell"
	"xianyu-autosell/internal/repository"
	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"

	"github.com/google/uuid"
)

// maxStockLine bounds a single stock unit.
const maxStockLine = 64 * 1024

// ObjectStore is the object storage used for bulk stock files.
type ObjectStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	PresignPut(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
}

// StockUpload tells an operator where to PUT a stock file before importing it.
type StockUpload struct {
	Key     string            `json:"key"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers"`
}

// StockImporter loads newline-separated stock units into a rule's pool.
type StockImporter struct {
	rules   repository.RuleRepository
	stock   repository.StockRepository
	objects ObjectStore
	log     *logger.Logger
}

// NewStockImporter creates an importer. objects may be nil when no object
// storage is configured.
func NewStockImporter(rules repository.RuleRepository, stock repository.StockRepository, objects ObjectStore, log *logger.Logger) *StockImporter {
	return &StockImporter{rules: rules, stock: stock, objects: objects, log: log}
}

// Import adds one unit per non-blank line of r.
func (i *StockImporter) Import(ctx context.Context, ruleID int64, r io.Reader) (int, error) {
	if err := i.checkRule(ctx, ruleID); err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxStockLine)
	var units []string
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			units = append(units, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read stock: %w", err)
	}

	n, err := i.stock.Add(ctx, ruleID, units)
	if err != nil {
		return 0, fmt.Errorf("store stock: %w", err)
	}
	i.log.WithContext(ctx).Infof("imported %d stock units into rule %d", n, ruleID)
	return n, nil
}

// ImportObject imports a stock file previously uploaded to object storage.
func (i *StockImporter) ImportObject(ctx context.Context, ruleID int64, key string) (int, error) {
	if i.objects == nil {
		return 0, fmt.Errorf("%w: object storage not configured", autosell_errors.ErrServiceUnavailable)
	}
	if strings.TrimSpace(key) == "" {
		return 0, fmt.Errorf("%w: object key is required", autosell_errors.ErrInvalidInput)
	}
	if err := i.checkRule(ctx, ruleID); err != nil {
		return 0, err
	}
	body, err := i.objects.Open(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", key, err)
	}
	defer body.Close()
	return i.Import(ctx, ruleID, body)
}

// UploadURL presigns a PUT for a new stock file belonging to ruleID.
func (i *StockImporter) UploadURL(ctx context.Context, ruleID int64) (StockUpload, error) {
	if i.objects == nil {
		return StockUpload{}, fmt.Errorf("%w: object storage not configured", autosell_errors.ErrServiceUnavailable)
	}
	if err := i.checkRule(ctx, ruleID); err != nil {
		return StockUpload{}, err
	}
	key := path.Join("stock", fmt.Sprint(ruleID), time.Now().UTC().Format("20060102")+"-"+uuid.NewString()+".txt")
	url, headers, err := i.objects.PresignPut(ctx, key, "text/plain", 0)
	if err != nil {
		return StockUpload{}, fmt.Errorf("presign upload: %w", err)
	}
	return StockUpload{Key: key, URL: url, Headers: headers}, nil
}

func (i *StockImporter) checkRule(ctx context.Context, ruleID int64) error {
	rule, err := i.rules.GetByID(ctx, ruleID)
	if err != nil {
		return err
	}
	if rule.DeliveryType != autosell.DeliveryStock {
		return fmt.Errorf("%w: rule %d delivers %s, not stock", autosell_errors.ErrInvalidInput, ruleID, rule.DeliveryType)
	}
	return nil
}
