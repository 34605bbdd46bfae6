package sampler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache wraps a Scheduler's RefreshAll behind a TTL: a request arriving
// within ttl of the last completed refresh reuses the in-memory state;
// concurrent requests during a refresh coalesce onto the same in-flight
// call via singleflight (spec.md §4.3 "Refresh cache"). This bounds agent
// CPU under scrape storms and guarantees at-most-one concurrent refresh per
// sampler (Testable Property 5, Scenario E).
type Cache struct {
	scheduler *Scheduler
	ttl       time.Duration

	mu              sync.Mutex
	lastAt          time.Time     // wall time the most recent refresh started (spec.md §6 "timestamp")
	lastElapsed     time.Duration // that refresh's sampling duration (spec.md §6 "duration_ns")
	lastCompletedAt time.Time     // when that refresh finished; drives TTL staleness
	lastErrs        map[string]error
	refreshes       atomic.Int64 // count of RefreshAll calls actually executed
	group           singleflight.Group
}

// NewCache wraps scheduler with a TTL cache. ttl <= 0 disables caching
// (every call refreshes).
func NewCache(scheduler *Scheduler, ttl time.Duration) *Cache {
	return &Cache{scheduler: scheduler, ttl: ttl}
}

// Refreshes returns the number of RefreshAll calls this cache has actually
// executed (as opposed to served from the TTL window or coalesced via
// singleflight) — used by tests to verify Testable Property 5.
func (c *Cache) Refreshes() int64 { return c.refreshes.Load() }

// Refresh returns the start time and sampling duration of the most recent
// refresh, plus any per-sampler errors it recorded, triggering a new
// underlying RefreshAll only if the cached state is older than ttl
// (measured from that refresh's completion). All callers that arrive while
// a refresh is in flight observe the same result (coalesced, not
// sequential).
func (c *Cache) Refresh(ctx context.Context) (startedAt time.Time, elapsed time.Duration, errs map[string]error) {
	if at, el, errs, fresh := c.peek(); fresh {
		return at, el, errs
	}

	v, _, _ := c.group.Do("refresh", func() (any, error) {
		// Re-check inside the singleflight critical section: another
		// goroutine may have refreshed while we were waiting to enter.
		if at, el, errs, fresh := c.peek(); fresh {
			return cacheResult{at: at, elapsed: el, errs: errs}, nil
		}
		c.refreshes.Add(1)
		start := time.Now()
		refreshErrs := c.scheduler.RefreshAll(ctx)
		elapsed := time.Since(start)
		completedAt := time.Now()

		c.mu.Lock()
		c.lastAt = start
		c.lastElapsed = elapsed
		c.lastCompletedAt = completedAt
		c.lastErrs = refreshErrs
		c.mu.Unlock()

		return cacheResult{at: start, elapsed: elapsed, errs: refreshErrs}, nil
	})

	res := v.(cacheResult)
	return res.at, res.elapsed, res.errs
}

type cacheResult struct {
	at      time.Time
	elapsed time.Duration
	errs    map[string]error
}

func (c *Cache) peek() (at time.Time, elapsed time.Duration, errs map[string]error, fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 || c.lastCompletedAt.IsZero() {
		return c.lastAt, c.lastElapsed, c.lastErrs, false
	}
	if time.Since(c.lastCompletedAt) < c.ttl {
		return c.lastAt, c.lastElapsed, c.lastErrs, true
	}
	return c.lastAt, c.lastElapsed, c.lastErrs, false
}
