package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/taskhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

func TestNewLoginLimiterDisabled(t *testing.T) {
	limiter, err := NewLoginLimiter(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, limiter)
	assert.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewLoginLimiterValidatesConfig(t *testing.T) {
	_, err := NewLoginLimiter(config.Config{
		LoginRateLimit: config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 5},
	})
	assert.Error(t, err)

	_, err = NewLoginLimiter(config.Config{
		Redis:          config.RedisConfig{Addr: "localhost:6379"},
		LoginRateLimit: config.RateLimitConfig{Enabled: true, Rate: 0, Burst: 5},
	})
	assert.Error(t, err)

	limiter, err := NewLoginLimiter(config.Config{
		Redis:          config.RedisConfig{Addr: "localhost:6379"},
		LoginRateLimit: config.RateLimitConfig{Enabled: true, Rate: 0.5, Burst: 5},
	})
	require.NoError(t, err)
	assert.True(t, limiter.Enabled())
}

func TestLoginLimiterClosedOnStop(t *testing.T) {
	limiter, err := NewLoginLimiter(config.Config{
		Redis:          config.RedisConfig{Addr: "localhost:6379"},
		LoginRateLimit: config.RateLimitConfig{Enabled: true, Rate: 1, Burst: 5},
	})
	require.NoError(t, err)

	lc := fxtest.NewLifecycle(t)
	closeOnStop(lc, limiter)
	lc.RequireStart().RequireStop()

	// the pool is already closed
	assert.ErrorIs(t, limiter.Close(), redis.ErrClosed)
}

func TestLoginLimiterCloseWhenDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	closeOnStop(lc, nil)
	lc.RequireStart().RequireStop()
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	res, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
	assert.False(t, res.Allowed)
	assert.Nil(t, NewTokenBucket(nil))
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, time.Second, defaultBucketTTL(0, 10))
	assert.Equal(t, 40*time.Second, defaultBucketTTL(0.5, 10))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
}

func TestCastHelpers(t *testing.T) {
	assert.Equal(t, int64(3), castToInt(int64(3)))
	assert.Equal(t, int64(2), castToInt(2.9))
	assert.Equal(t, int64(0), castToInt("x"))
	assert.Equal(t, 1.5, castToFloat("1.5"))
	assert.Equal(t, 4.0, castToFloat(int64(4)))
	assert.Equal(t, 0.0, castToFloat(nil))
}
