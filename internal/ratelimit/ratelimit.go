// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ratelimit provides per-project admission control for batch
// resolution calls and citation-creation units. Requests over budget are
// rejected with a retry-after hint, never queued.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

// Defaults applied when the config leaves a field zero.
const (
	DefaultWindow           = time.Minute
	DefaultBatchesPerWindow = 30
	DefaultUnitsPerWindow   = 120
)

// idleEvictAfter is how long an untouched project entry is kept.
const idleEvictAfter = 10 * time.Minute

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool

	// Remaining is the number of units still available in the window.
	Remaining int

	// RetryAfter is the wait after which the request would have been
	// admitted. Zero when Allowed.
	RetryAfter time.Duration
}

// Limiter applies two independent token buckets per project: one bounding
// batch calls, one bounding citation-creation units.
type Limiter struct {
	mu       sync.Mutex
	cfg      types.RateLimitConfig
	projects map[string]*projectLimits
	now      func() time.Time
}

type projectLimits struct {
	batches *rate.Limiter
	units   *rate.Limiter
	lastUse time.Time
}

// New creates a Limiter, applying defaults for zero config fields.
func New(cfg types.RateLimitConfig) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.BatchesPerWindow <= 0 {
		cfg.BatchesPerWindow = DefaultBatchesPerWindow
	}
	if cfg.UnitsPerWindow <= 0 {
		cfg.UnitsPerWindow = DefaultUnitsPerWindow
	}
	return &Limiter{
		cfg:      cfg,
		projects: make(map[string]*projectLimits),
		now:      time.Now,
	}
}

// CheckBatch admits one batch resolution call for the project.
func (l *Limiter) CheckBatch(projectID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.project(projectID)
	return check(p.batches, 1, l.now())
}

// CheckUnits admits n citation-creation units for the project.
func (l *Limiter) CheckUnits(projectID string, n int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.project(projectID)
	return check(p.units, n, l.now())
}

// CheckBatchAndUnits admits one batch call consuming n units. A denial by
// either bucket consumes nothing from the other: the batch reservation is
// cancelled when the units are denied, so rejected batches do not burn the
// batch budget.
func (l *Limiter) CheckBatchAndUnits(projectID string, n int) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.project(projectID)
	now := l.now()

	if n > p.units.Burst() {
		return neverAdmittable(p.units, n, now)
	}

	batchRes := p.batches.ReserveN(now, 1)
	if delay := batchRes.DelayFrom(now); delay > 0 {
		batchRes.CancelAt(now)
		return Decision{Allowed: false, Remaining: remaining(p.units, now), RetryAfter: delay}
	}

	unitRes := p.units.ReserveN(now, n)
	if delay := unitRes.DelayFrom(now); delay > 0 {
		unitRes.CancelAt(now)
		batchRes.CancelAt(now)
		return Decision{Allowed: false, Remaining: remaining(p.units, now), RetryAfter: delay}
	}
	return Decision{Allowed: true, Remaining: remaining(p.units, now)}
}

// project returns the limiter entry for projectID, creating it on first use
// and opportunistically evicting idle entries.
func (l *Limiter) project(projectID string) *projectLimits {
	now := l.now()
	p, ok := l.projects[projectID]
	if !ok {
		p = &projectLimits{
			batches: newBucket(l.cfg.BatchesPerWindow, l.cfg.Window),
			units:   newBucket(l.cfg.UnitsPerWindow, l.cfg.Window),
		}
		l.projects[projectID] = p
		l.evictIdle(now)
	}
	p.lastUse = now
	return p
}

func (l *Limiter) evictIdle(now time.Time) {
	for id, p := range l.projects {
		if now.Sub(p.lastUse) > idleEvictAfter {
			delete(l.projects, id)
		}
	}
}

// newBucket builds a token bucket that refills budget tokens per window and
// bursts to the full budget.
func newBucket(budget int, window time.Duration) *rate.Limiter {
	refill := rate.Limit(float64(budget) / window.Seconds())
	return rate.NewLimiter(refill, budget)
}

// check reserves n tokens without waiting. A reservation whose delay is
// non-zero is cancelled and reported as a rejection with the delay as the
// retry-after hint.
func check(lim *rate.Limiter, n int, now time.Time) Decision {
	if n > lim.Burst() {
		return neverAdmittable(lim, n, now)
	}

	res := lim.ReserveN(now, n)
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
		return Decision{Allowed: false, Remaining: remaining(lim, now), RetryAfter: delay}
	}
	return Decision{Allowed: true, Remaining: remaining(lim, now)}
}

// neverAdmittable rejects a request for more tokens than the bucket can
// ever hold, advising one full refill cycle for the shortfall.
func neverAdmittable(lim *rate.Limiter, n int, now time.Time) Decision {
	return Decision{
		Allowed:    false,
		Remaining:  remaining(lim, now),
		RetryAfter: time.Duration(float64(n-lim.Burst()) / float64(lim.Limit()) * float64(time.Second)),
	}
}

func remaining(lim *rate.Limiter, now time.Time) int {
	tokens := int(lim.TokensAt(now))
	if tokens < 0 {
		return 0
	}
	return tokens
}
