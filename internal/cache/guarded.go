package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GuardedCache puts a circuit breaker in front of a backend and counts every
// outcome. Callers treat any error other than ErrCacheMiss as "go to the
// store".
type GuardedCache struct {
	backend Cache
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

// NewGuardedCache fills in a default breaker and fresh metrics when nil.
func NewGuardedCache(backend Cache, breaker *CircuitBreaker, metrics *CacheMetrics) *GuardedCache {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	if metrics == nil {
		metrics = NewCacheMetrics()
	}
	return &GuardedCache{backend: backend, breaker: breaker, metrics: metrics}
}

// guard runs op through the breaker and records success as outcome. A miss
// is a healthy answer and never counts against the backend.
func (g *GuardedCache) guard(ctx context.Context, outcome Outcome, op func(context.Context) error) error {
	miss := false
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		return err
	})

	switch {
	case err != nil:
		g.metrics.Record(OutcomeError)
		return fmt.Errorf("%w: %v", ErrCacheDown, err)
	case miss:
		g.metrics.Record(OutcomeMiss)
		return ErrCacheMiss
	default:
		g.metrics.Record(outcome)
		return nil
	}
}

func (g *GuardedCache) Get(ctx context.Context, key string, dest interface{}) error {
	return g.guard(ctx, OutcomeHit, func(ctx context.Context) error {
		return g.backend.Get(ctx, key, dest)
	})
}

func (g *GuardedCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return g.guard(ctx, OutcomeSet, func(ctx context.Context) error {
		return g.backend.Set(ctx, key, value, expiration)
	})
}

func (g *GuardedCache) Delete(ctx context.Context, keys ...string) error {
	return g.guard(ctx, OutcomeDelete, func(ctx context.Context) error {
		return g.backend.Delete(ctx, keys...)
	})
}

func (g *GuardedCache) DeletePattern(ctx context.Context, pattern string) error {
	return g.guard(ctx, OutcomeDelete, func(ctx context.Context) error {
		return g.backend.DeletePattern(ctx, pattern)
	})
}

func (g *GuardedCache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"metrics": g.metrics.Snapshot(),
		"breaker": g.breaker.GetStats(),
	}
}
