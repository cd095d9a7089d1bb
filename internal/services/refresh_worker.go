package services

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"xianyu-autosell/pkg/logger"
)

// RefreshFunc refreshes one order's detail.
type RefreshFunc func(ctx context.Context, accountID, orderID string) error

type refreshJob struct {
	accountID string
	orderID   string
}

// RefreshWorker runs order-detail refreshes on a bounded pool so slow upstream
// calls never block event ingestion.
type RefreshWorker struct {
	refresh  RefreshFunc
	jobs     chan refreshJob
	workers  int
	timeout  time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Logger
}

// NewRefreshWorker creates a pool of workers goroutines fed by a queue of
// queueSize jobs. timeout bounds each job, including any delivery it triggers.
func NewRefreshWorker(refresh RefreshFunc, workers, queueSize int, timeout time.Duration, log *logger.Logger) *RefreshWorker {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &RefreshWorker{
		refresh:  refresh,
		jobs:     make(chan refreshJob, queueSize),
		workers:  workers,
		timeout:  timeout,
		stopChan: make(chan struct{}),
		log:      log,
	}
}

// Start begins the worker loops
func (w *RefreshWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Stop waits for in-flight jobs. Queued jobs that never started are dropped.
func (w *RefreshWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	w.mu.Unlock()

	w.wg.Wait()
	if n := len(w.jobs); n > 0 {
		w.log.Warnf("refresh worker stopped with %d queued jobs", n)
	}
}

// Enqueue schedules a refresh without blocking. It reports false when the
// worker is stopped or the queue is full.
func (w *RefreshWorker) Enqueue(accountID, orderID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.running {
		return false
	}
	select {
	case w.jobs <- refreshJob{accountID: accountID, orderID: orderID}:
		return true
	default:
		return false
	}
}

func (w *RefreshWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopChan:
			return
		case job := <-w.jobs:
			w.process(job)
		}
	}
}

func (w *RefreshWorker) process(job refreshJob) {
	ctx := logger.WithOrder(context.Background(), job.accountID, job.orderID)
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			w.log.WithContext(ctx).Errorf("order refresh panicked: %v\n%s", r, debug.Stack())
		}
	}()

	if err := w.refresh(ctx, job.accountID, job.orderID); err != nil {
		w.log.WithContext(ctx).Errorf("background order refresh failed: %v", err)
	}
}
