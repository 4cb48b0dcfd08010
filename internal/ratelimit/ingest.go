package ratelimit

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/utilitybilling/internal/config"
	"go.uber.org/fx"
)

const keyIngest = "utilitybilling:ratelimit:ingest:"

// IngestLimiter throttles batch submissions per client.
type IngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

type Params struct {
	fx.In

	Config config.Config
	Redis  *redis.Client `optional:"true"`
}

// NewIngestLimiter returns nil when rate limiting is disabled.
func NewIngestLimiter(p Params) (*IngestLimiter, error) {
	if !p.Config.RateLimitEnabled {
		return nil, nil
	}
	if p.Redis == nil {
		return nil, errors.New("rate limiting requires REDIS_ADDR")
	}
	if p.Config.RateLimitRate <= 0 || p.Config.RateLimitBurst <= 0 {
		return nil, errors.New("ingest rate limit must be positive")
	}
	return &IngestLimiter{
		bucket: NewTokenBucket(p.Redis),
		rate:   p.Config.RateLimitRate,
		burst:  p.Config.RateLimitBurst,
	}, nil
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil
}

func (l *IngestLimiter) Allow(ctx context.Context, client string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, keyIngest+client, l.rate, l.burst)
}
