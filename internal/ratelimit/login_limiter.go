// Package ratelimit bounds failed login attempts per account key using Redis counters.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRateLimited is returned once a key has exhausted its attempt budget.
var ErrRateLimited = errors.New("rate limited")

// ErrUnavailable wraps Redis failures so callers can decide to fail open.
var ErrUnavailable = errors.New("rate limiter unavailable")

const keyPrefix = "profile:login:fail:"

// LoginLimiter counts failed logins per key inside a sliding cooldown window.
type LoginLimiter struct {
	redis       redis.UniversalClient
	maxAttempts int
	cooldown    time.Duration
}

// NewLoginLimiter builds a limiter. maxAttempts <= 0 disables limiting.
func NewLoginLimiter(client redis.UniversalClient, maxAttempts int, cooldown time.Duration) *LoginLimiter {
	if cooldown <= 0 {
		cooldown = 15 * time.Minute
	}
	return &LoginLimiter{redis: client, maxAttempts: maxAttempts, cooldown: cooldown}
}

// Check returns ErrRateLimited if key has reached the attempt budget.
func (l *LoginLimiter) Check(ctx context.Context, key string) error {
	if l.maxAttempts <= 0 {
		return nil
	}
	count, err := l.redis.Get(ctx, redisKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count >= l.maxAttempts {
		return ErrRateLimited
	}
	return nil
}

// Fail records one failed attempt and refreshes the cooldown window.
func (l *LoginLimiter) Fail(ctx context.Context, key string) error {
	if l.maxAttempts <= 0 {
		return nil
	}
	k := redisKey(key)
	pipe := l.redis.TxPipeline()
	pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Cooldown returns the lockout window.
func (l *LoginLimiter) Cooldown() time.Duration {
	return l.cooldown
}

// redisKey hashes the key so raw emails never land in Redis.
func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + hex.EncodeToString(sum[:])
}
