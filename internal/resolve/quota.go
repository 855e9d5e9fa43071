package resolve

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Tracker counts provider calls and enforces per-provider rate limits. It is
// shared across every concurrent resolution in a process; all access is
// synchronized. Providers without a registered limit are counted only.
type Tracker struct {
	mu        sync.RWMutex
	providers map[string]*providerQuota
}

type providerQuota struct {
	limiter *rate.Limiter
	calls   atomic.Int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{providers: make(map[string]*providerQuota)}
}

// SetLimit registers a requests-per-second cap for a provider.
func (t *Tracker) SetLimit(provider string, rps float64, burst int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q := t.providers[provider]
	if q == nil {
		q = &providerQuota{}
		t.providers[provider] = q
	}
	q.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Acquire records one call against the provider, waiting for the rate
// limiter if one is registered. Returns an error only when the context is
// done before a token is available.
func (t *Tracker) Acquire(ctx context.Context, provider string) error {
	t.mu.Lock()
	q := t.providers[provider]
	if q == nil {
		q = &providerQuota{}
		t.providers[provider] = q
	}
	// Snapshot under the lock; SetLimit may swap the limiter concurrently.
	limiter := q.limiter
	t.mu.Unlock()

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "quota: wait for %s", provider)
		}
	}
	q.calls.Add(1)
	return nil
}

// Calls returns the number of recorded calls for a provider.
func (t *Tracker) Calls(provider string) int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if q := t.providers[provider]; q != nil {
		return q.calls.Load()
	}
	return 0
}

// Snapshot returns call counts for every provider seen so far.
func (t *Tracker) Snapshot() map[string]int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int64, len(t.providers))
	for name, q := range t.providers {
		out[name] = q.calls.Load()
	}
	return out
}
