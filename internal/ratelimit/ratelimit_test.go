package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/incomeengine/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestProviderThrottleDisabledWithoutRedis(t *testing.T) {
	throttle := NewProviderThrottle(nil, config.Config{Providers: config.ProvidersConfig{RatePerMinute: 10}}, zap.NewNop())
	assert.Nil(t, throttle)
	assert.NoError(t, throttle.Allow(context.Background(), "cohere"))
}

func TestTokenBucketRequiresClient(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptValueParsing(t *testing.T) {
	assert.Equal(t, int64(1), toInt(int64(1)))
	assert.Equal(t, int64(0), toInt(nil))
	assert.InDelta(t, 2.5, toFloat("2.5"), 1e-9)
	assert.InDelta(t, 3, toFloat(int64(3)), 1e-9)
}

func TestErrThrottledMessage(t *testing.T) {
	err := &ErrThrottled{Provider: "openai", RetryAfter: 3 * time.Second}
	assert.Contains(t, err.Error(), "openai")
}
