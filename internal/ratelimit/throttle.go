package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/incomeengine/internal/config"
	"go.uber.org/zap"
)

const keyProviderBucket = "incomeengine:ratelimit:provider:%s"

// ErrThrottled is returned when a provider has used up its call budget.
type ErrThrottled struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *ErrThrottled) Error() string {
	return fmt.Sprintf("provider %s throttled, retry after %s", e.Provider, e.RetryAfter)
}

// ProviderThrottle shares a per-provider call budget across processes.
// A nil throttle allows everything.
type ProviderThrottle struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewProviderThrottle(client *redis.Client, cfg config.Config, log *zap.Logger) *ProviderThrottle {
	if client == nil || cfg.Providers.RatePerMinute <= 0 {
		return nil
	}
	burst := cfg.Providers.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &ProviderThrottle{
		bucket: NewTokenBucket(client),
		rate:   float64(cfg.Providers.RatePerMinute) / 60,
		burst:  burst,
		log:    log.Named("ratelimit"),
	}
}

// Allow returns *ErrThrottled when the provider is over budget. Redis
// failures let the call through.
func (p *ProviderThrottle) Allow(ctx context.Context, provider string) error {
	if p == nil {
		return nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	res, err := p.bucket.Allow(ctx, fmt.Sprintf(keyProviderBucket, provider), p.rate, p.burst)
	if err != nil {
		p.log.Warn("rate limiter unavailable", zap.String("provider", provider), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return &ErrThrottled{Provider: provider, RetryAfter: res.RetryAfter}
	}
	return nil
}
