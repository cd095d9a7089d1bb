package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern:
// - ratelimit:{caller}:{action} - fixed window counter, TTL = window

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	limit  int
	window time.Duration
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

var rateLimitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

// NewRateLimiter allows limit actions per caller per window.
func NewRateLimiter(client *goredis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

func RateLimitKey(caller, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s", caller, action)
}

// Allow counts one action by caller and reports whether it fits the window.
func (r *RateLimiter) Allow(ctx context.Context, caller, action string) (*RateLimitResult, error) {
	result, err := rateLimitScript.Run(ctx, r.client, []string{RateLimitKey(caller, action)}, r.limit, int(r.window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := resultSlice[0].(int64)
	remaining, _ := resultSlice[1].(int64)
	resetIn, _ := resultSlice[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(resetIn) * time.Second,
		Limit:     r.limit,
	}, nil
}

// Reset clears caller's counter for action.
func (r *RateLimiter) Reset(ctx context.Context, caller, action string) error {
	return r.client.Del(ctx, RateLimitKey(caller, action)).Err()
}
