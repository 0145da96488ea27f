// Package resilience holds the admission controls of the HTTP transport:
// a bulkhead bounding concurrent tool calls and per-client token buckets.
// Outbound platform calls are never retried, so nothing here retries.
package resilience

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoCapacity is returned by Bulkhead.TryAcquire when every slot is busy.
var ErrNoCapacity = errors.New("no capacity available")

// ------------------------------------------------------------------
// Rate Limiter (token bucket)
// ------------------------------------------------------------------

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	burst    int
	tokens   float64
	lastTime time.Time
	now      func() time.Time
}

// newRateLimiter creates a rate limiter.
// rate: requests per second, burst: max burst size.
func newRateLimiter(rate float64, burst int, now func() time.Time) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:     rate,
		burst:    burst,
		tokens:   float64(burst),
		lastTime: now(),
		now:      now,
	}
}

// Allow checks if a request is allowed under the rate limit.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.tokens += now.Sub(rl.lastTime).Seconds() * rl.rate
	rl.lastTime = now
	if rl.tokens > float64(rl.burst) {
		rl.tokens = float64(rl.burst)
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) idleSince() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastTime
}

// ------------------------------------------------------------------
// Keyed limiters (one bucket per client)
// ------------------------------------------------------------------

// KeyedLimiter hands out one RateLimiter per key, e.g. per client IP.
// Buckets idle for longer than IdleTTL are dropped when the set grows.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*RateLimiter
	rate     float64
	burst    int
	now      func() time.Time

	IdleTTL time.Duration
	// MaxKeys triggers eviction of idle buckets once exceeded.
	MaxKeys int
}

func NewKeyedLimiter(rate float64, burst int) *KeyedLimiter {
	return &KeyedLimiter{
		limiters: make(map[string]*RateLimiter),
		rate:     rate,
		burst:    burst,
		now:      time.Now,
		IdleTTL:  10 * time.Minute,
		MaxKeys:  4096,
	}
}

// Allow consumes a token from key's bucket.
func (k *KeyedLimiter) Allow(key string) bool {
	k.mu.Lock()
	rl, ok := k.limiters[key]
	if !ok {
		if len(k.limiters) >= k.MaxKeys {
			k.evictIdle()
		}
		rl = newRateLimiter(k.rate, k.burst, k.now)
		k.limiters[key] = rl
	}
	k.mu.Unlock()
	return rl.Allow()
}

// Len reports how many buckets are tracked.
func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

func (k *KeyedLimiter) evictIdle() {
	cutoff := k.now().Add(-k.IdleTTL)
	for key, rl := range k.limiters {
		if rl.idleSince().Before(cutoff) {
			delete(k.limiters, key)
		}
	}
}

// ------------------------------------------------------------------
// Bulkhead (concurrency limiter)
// ------------------------------------------------------------------

// Bulkhead limits concurrent executions to prevent resource exhaustion.
type Bulkhead struct {
	name     string
	sem      chan struct{}
	active   atomic.Int64
	rejected atomic.Int64
}

// NewBulkhead creates a bulkhead with the given concurrency limit.
func NewBulkhead(name string, maxConcurrent int) *Bulkhead {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Bulkhead{
		name: name,
		sem:  make(chan struct{}, maxConcurrent),
	}
}

// TryAcquire takes a slot without waiting. The returned release must be
// called exactly once.
func (b *Bulkhead) TryAcquire() (release func(), err error) {
	select {
	case b.sem <- struct{}{}:
		b.active.Add(1)
		var once sync.Once
		return func() {
			once.Do(func() {
				<-b.sem
				b.active.Add(-1)
			})
		}, nil
	default:
		b.rejected.Add(1)
		return nil, fmt.Errorf("bulkhead %s: %w (%d active)", b.name, ErrNoCapacity, b.active.Load())
	}
}

// Stats returns bulkhead usage statistics.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		Name:     b.name,
		Active:   int(b.active.Load()),
		Capacity: cap(b.sem),
		Rejected: int(b.rejected.Load()),
	}
}

// BulkheadStats reports bulkhead utilization.
type BulkheadStats struct {
	Name     string `json:"name"`
	Active   int    `json:"active"`
	Capacity int    `json:"capacity"`
	Rejected int    `json:"rejected"`
}
