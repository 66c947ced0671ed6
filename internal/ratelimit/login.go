package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskhub/internal/config"
)

const keyLoginClient = "auth:login:client:%s"

// LoginLimiter throttles login attempts per client address. A nil limiter allows everything.
type LoginLimiter struct {
	client *redis.Client
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewLoginLimiter(cfg config.Config) (*LoginLimiter, error) {
	limitCfg := cfg.LoginRateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("login rate limit requires REDIS_ADDR")
	}
	if limitCfg.Rate <= 0 || limitCfg.Burst <= 0 {
		return nil, errors.New("login rate limit rate and burst must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})

	return &LoginLimiter{
		client: client,
		bucket: NewTokenBucket(client),
		rate:   limitCfg.Rate,
		burst:  limitCfg.Burst,
	}, nil
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *LoginLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	clientIP = strings.TrimSpace(clientIP)
	if clientIP == "" {
		clientIP = "unknown"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyLoginClient, clientIP), l.rate, l.burst)
}

// Close releases the redis connection pool.
func (l *LoginLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
