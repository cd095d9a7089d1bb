package services

import (
	"context"
	"sync"
)

// OrderLocker serialises delivery attempts per order. TryLock does not wait:
// ok is false while someone else holds the order.
type OrderLocker interface {
	TryLock(ctx context.Context, orderID string) (release func(), ok bool, err error)
}

// LocalOrderLocker is an in-process OrderLocker for single-instance deployments.
type LocalOrderLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalOrderLocker() *LocalOrderLocker {
	return &LocalOrderLocker{held: make(map[string]struct{})}
}

func (l *LocalOrderLocker) TryLock(_ context.Context, orderID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[orderID]; busy {
		return nil, false, nil
	}
	l.held[orderID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, orderID)
			l.mu.Unlock()
		})
	}, true, nil
}
