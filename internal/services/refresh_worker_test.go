package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"xianyu-autosell/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshWorker_ProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	w := NewRefreshWorker(func(ctx context.Context, accountID, orderID string) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		mu.Lock()
		seen[accountID+"/"+orderID] = true
		mu.Unlock()
		return nil
	}, 2, 8, time.Second, logger.NewNop())

	assert.False(t, w.Enqueue("acc-1", "O0"), "stopped worker accepts nothing")

	w.Start()
	defer w.Stop()
	for _, id := range []string{"O1", "O2", "O3"} {
		require.True(t, w.Enqueue("acc-1", id))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, seen["acc-1/O2"])
}

func TestRefreshWorker_SurvivesErrorsAndPanics(t *testing.T) {
	var calls atomic.Int32
	w := NewRefreshWorker(func(ctx context.Context, accountID, orderID string) error {
		calls.Add(1)
		switch orderID {
		case "panic":
			panic("boom")
		case "fail":
			return errors.New("upstream")
		}
		return nil
	}, 1, 8, 0, logger.NewNop())
	w.Start()
	defer w.Stop()

	w.Enqueue("acc-1", "panic")
	w.Enqueue("acc-1", "fail")
	w.Enqueue("acc-1", "ok")

	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
}

func TestRefreshWorker_FullQueueRejects(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	w := NewRefreshWorker(func(ctx context.Context, accountID, orderID string) error {
		started <- struct{}{}
		<-block
		return nil
	}, 1, 1, 0, logger.NewNop())
	w.Start()

	require.True(t, w.Enqueue("acc-1", "O1"))
	<-started
	require.True(t, w.Enqueue("acc-1", "O2"))
	assert.False(t, w.Enqueue("acc-1", "O3"))

	close(block)
	w.Stop()
	assert.False(t, w.Enqueue("acc-1", "O4"))
}
