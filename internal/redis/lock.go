package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Lock key pattern:
// - lock:delivery:{order_id} - held for the duration of one delivery attempt

// releaseScript deletes the key only if it still holds our token.
var releaseScript = goredis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// OrderLocker is a per-order mutual exclusion lock shared by every process
// pointing at the same Redis.
type OrderLocker struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewOrderLocker(client *goredis.Client, ttl time.Duration) *OrderLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &OrderLocker{client: client, ttl: ttl}
}

func DeliveryLockKey(orderID string) string {
	return fmt.Sprintf("lock:delivery:%s", orderID)
}

// TryLock acquires the lock for orderID without waiting. ok is false when
// another holder has it. The lock expires after the TTL if never released.
func (l *OrderLocker) TryLock(ctx context.Context, orderID string) (release func(), ok bool, err error) {
	key := DeliveryLockKey(orderID)
	token := uuid.NewString()

	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire delivery lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}
