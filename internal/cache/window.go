package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowLimiter allows one hit per key per window, backed by SET NX EX so
// every API instance shares the same window.
type WindowLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewWindowLimiter(client *redis.Client, prefix string, window time.Duration) *WindowLimiter {
	return &WindowLimiter{client: client, prefix: prefix, window: window}
}

// Allow claims the window for key. When the window is taken it returns
// false together with the remaining time.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := l.redisKey(key)
	ok, err := l.client.SetNX(ctx, redisKey, "1", l.window).Result()
	if err != nil {
		return false, 0, fmt.Errorf("limiter setnx: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl < 0 {
		return false, l.window, nil
	}
	return false, ttl, nil
}

func (l *WindowLimiter) redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return l.prefix + ":" + hex.EncodeToString(sum[:])
}
