// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ratelimit

import (
	"testing"
	"time"

	"github.com/sadiq-codes/genpaper/pkg/types"
)

// fixedClock lets tests advance time explicitly.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time { return c.t }

func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(cfg types.RateLimitConfig) (*Limiter, *fixedClock) {
	l := New(cfg)
	clock := &fixedClock{t: time.Unix(1700000000, 0)}
	l.now = clock.now
	return l, clock
}

func TestCheckUnitsWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 10, BatchesPerWindow: 5})

	d := l.CheckUnits("p1", 4)
	if !d.Allowed {
		t.Fatalf("first check denied: %+v", d)
	}
	if d.RetryAfter != 0 {
		t.Errorf("allowed decision carries RetryAfter %v", d.RetryAfter)
	}

	d = l.CheckUnits("p1", 6)
	if !d.Allowed {
		t.Fatalf("budget-exhausting check denied: %+v", d)
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
}

func TestCheckUnitsRejectsOverBudget(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 1, BatchesPerWindow: 5})

	if d := l.CheckUnits("p1", 1); !d.Allowed {
		t.Fatalf("first unit denied: %+v", d)
	}

	d := l.CheckUnits("p1", 1)
	if d.Allowed {
		t.Fatal("second unit admitted, want rejection")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("rejection RetryAfter = %v, want positive hint", d.RetryAfter)
	}
}

func TestRejectionDoesNotConsumeBudget(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 2, BatchesPerWindow: 5})

	l.CheckUnits("p1", 2)
	// Rejected checks must not eat into a later refill.
	for i := 0; i < 5; i++ {
		if d := l.CheckUnits("p1", 1); d.Allowed {
			t.Fatalf("check %d admitted with empty bucket", i)
		}
	}

	d := l.CheckUnits("p1", 1)
	if d.Allowed {
		t.Fatal("no refill yet, expected rejection")
	}
	if d.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, exceeds one full window despite cancelled reservations", d.RetryAfter)
	}
}

func TestBudgetRefillsOverWindow(t *testing.T) {
	l, clock := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 60, BatchesPerWindow: 5})

	if d := l.CheckUnits("p1", 60); !d.Allowed {
		t.Fatalf("initial burst denied: %+v", d)
	}
	if d := l.CheckUnits("p1", 1); d.Allowed {
		t.Fatal("admitted with empty bucket")
	}

	clock.advance(2 * time.Second) // refills ~2 tokens at 1/s
	if d := l.CheckUnits("p1", 1); !d.Allowed {
		t.Fatalf("denied after refill: %+v", d)
	}
}

func TestRequestLargerThanBurstNeverAdmitted(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 5, BatchesPerWindow: 5})

	d := l.CheckUnits("p1", 6)
	if d.Allowed {
		t.Fatal("request larger than the window budget admitted")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", d.RetryAfter)
	}
}

func TestProjectsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 1, BatchesPerWindow: 1})

	if d := l.CheckUnits("p1", 1); !d.Allowed {
		t.Fatalf("p1 denied: %+v", d)
	}
	if d := l.CheckUnits("p2", 1); !d.Allowed {
		t.Fatalf("p2 denied after p1 spent its budget: %+v", d)
	}
}

func TestBatchAndUnitLimitersIndependent(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 100, BatchesPerWindow: 1})

	if d := l.CheckBatch("p1"); !d.Allowed {
		t.Fatalf("first batch denied: %+v", d)
	}
	if d := l.CheckBatch("p1"); d.Allowed {
		t.Fatal("second batch admitted over batch budget")
	}
	// Unit budget untouched by batch admissions.
	if d := l.CheckUnits("p1", 100); !d.Allowed {
		t.Fatalf("units denied: %+v", d)
	}
}

func TestCombinedCheckAdmitsBoth(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 10, BatchesPerWindow: 2})

	if d := l.CheckBatchAndUnits("p1", 4); !d.Allowed {
		t.Fatalf("first combined check denied: %+v", d)
	}
	if d := l.CheckBatchAndUnits("p1", 6); !d.Allowed {
		t.Fatalf("second combined check denied: %+v", d)
	}
	if d := l.CheckBatchAndUnits("p1", 1); d.Allowed {
		t.Fatal("third batch admitted over batch budget")
	}
}

func TestUnitRejectionRefundsBatchToken(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 2, BatchesPerWindow: 2})

	if d := l.CheckBatchAndUnits("p1", 2); !d.Allowed {
		t.Fatalf("first batch denied: %+v", d)
	}

	// Units are exhausted, so this must be rejected without spending the
	// last batch token.
	d := l.CheckBatchAndUnits("p1", 1)
	if d.Allowed {
		t.Fatal("admitted with empty unit bucket")
	}
	if d.RetryAfter <= 0 {
		t.Errorf("rejection RetryAfter = %v, want positive hint", d.RetryAfter)
	}

	if d := l.CheckBatch("p1"); !d.Allowed {
		t.Fatalf("batch budget spent by a unit-rejected request: %+v", d)
	}
}

func TestCombinedCheckOversizedBatchLeavesBudgetsIntact(t *testing.T) {
	l, _ := newTestLimiter(types.RateLimitConfig{Window: time.Minute, UnitsPerWindow: 5, BatchesPerWindow: 1})

	if d := l.CheckBatchAndUnits("p1", 6); d.Allowed {
		t.Fatal("batch larger than the whole unit budget admitted")
	}
	if d := l.CheckBatchAndUnits("p1", 5); !d.Allowed {
		t.Fatalf("budgets consumed by never-admittable request: %+v", d)
	}
}

func TestDefaults(t *testing.T) {
	l := New(types.RateLimitConfig{})
	if l.cfg.Window != DefaultWindow {
		t.Errorf("Window = %v, want %v", l.cfg.Window, DefaultWindow)
	}
	if l.cfg.BatchesPerWindow != DefaultBatchesPerWindow {
		t.Errorf("BatchesPerWindow = %d, want %d", l.cfg.BatchesPerWindow, DefaultBatchesPerWindow)
	}
	if l.cfg.UnitsPerWindow != DefaultUnitsPerWindow {
		t.Errorf("UnitsPerWindow = %d, want %d", l.cfg.UnitsPerWindow, DefaultUnitsPerWindow)
	}
}
