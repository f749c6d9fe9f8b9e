// Package throttle enforces a minimum inter-call spacing per external
// provider so batch runs stay under published (or empirically discovered)
// quota limits.
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinDelay applies to provider keys with no configured spacing.
const DefaultMinDelay = 500 * time.Millisecond

// Keyed spaces out calls per provider key. Successive Acquire calls for the
// same key are separated by at least the configured minimum delay, even
// under concurrent callers; different keys never block each other.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	delays   map[string]time.Duration
	fallback time.Duration
}

// New creates a keyed throttle from per-provider minimum delays. Keys not
// present in delays get the fallback spacing; fallback <= 0 selects
// DefaultMinDelay.
func New(delays map[string]time.Duration, fallback time.Duration) *Keyed {
	if fallback <= 0 {
		fallback = DefaultMinDelay
	}
	d := make(map[string]time.Duration, len(delays))
	for k, v := range delays {
		d[k] = v
	}
	return &Keyed{
		limiters: make(map[string]*rate.Limiter),
		delays:   d,
		fallback: fallback,
	}
}

// Acquire blocks until it is safe to issue a call for the given provider
// key, or until ctx is cancelled. It cannot fail otherwise — only delay.
func (k *Keyed) Acquire(ctx context.Context, providerKey string) error {
	return k.limiter(providerKey).Wait(ctx)
}

// MinDelay returns the configured spacing for a provider key.
func (k *Keyed) MinDelay(providerKey string) time.Duration {
	if d, ok := k.delays[providerKey]; ok && d > 0 {
		return d
	}
	return k.fallback
}

// limiter returns the per-key limiter, creating it on first use. Burst 1
// with a refill interval of the minimum delay yields exactly the required
// spacing; rate.Limiter serializes reservation updates internally, so two
// concurrent callers cannot both sleep zero and burst.
func (k *Keyed) limiter(providerKey string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if lim, ok := k.limiters[providerKey]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(k.MinDelay(providerKey)), 1)
	k.limiters[providerKey] = lim
	return lim
}
