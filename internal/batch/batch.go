// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch resolves the unique placeholders of one flush window
// concurrently, applying admission control, per-item retry, and deterministic
// fallbacks. All retry policy for resolution lives here; lower layers only
// classify errors.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sadiq-codes/genpaper/internal/httputil"
	"github.com/sadiq-codes/genpaper/internal/placeholder"
	"github.com/sadiq-codes/genpaper/internal/ratelimit"
	"github.com/sadiq-codes/genpaper/internal/resolve"
	"github.com/sadiq-codes/genpaper/internal/style"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

const (
	DefaultConcurrency    = 10
	DefaultMaxRetries     = 2
	DefaultRetryBaseDelay = 200 * time.Millisecond

	fallbackValueLimit = 60
)

// Resolver is the single-reference resolution dependency.
type Resolver interface {
	Resolve(ctx context.Context, projectID string, ref types.SourceReference, reason string) (types.ResolutionResult, error)
}

// Outcome reports the result of one batch. Rendered holds an inline
// replacement string for every unique canonical key in the batch, resolved
// or not, so callers can always splice.
type Outcome struct {
	Rendered map[string]string
	Results  map[string]types.ResolutionResult

	ResolvedCount int
	FailedCount   int

	// RateLimited is set when admission control rejected the whole batch.
	// RetryAfter then carries the earliest time a retry could be admitted.
	RateLimited bool
	RetryAfter  time.Duration

	// Fatal carries the first storage failure seen in the batch. Storage
	// failures abort the stream rather than degrade to fallbacks.
	Fatal error
}

// Orchestrator owns batch-level resolution.
type Orchestrator struct {
	resolver Resolver
	limiter  *ratelimit.Limiter
	cfg      types.BatchConfig

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(resolver Resolver, limiter *ratelimit.Limiter, cfg types.BatchConfig) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	return &Orchestrator{
		resolver: resolver,
		limiter:  limiter,
		cfg:      cfg,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Process resolves the unique placeholders among occs for one project and
// returns inline replacement text per canonical key. Duplicate occurrences
// collapse onto the first occurrence of their key. A rejected batch fails
// every key to its fallback without consuming the unit budget.
func (o *Orchestrator) Process(ctx context.Context, projectID string, occs []placeholder.Occurrence, styleName string) Outcome {
	unique := dedupe(occs)
	out := Outcome{
		Rendered: make(map[string]string, len(unique)),
		Results:  make(map[string]types.ResolutionResult, len(unique)),
	}
	if len(unique) == 0 {
		return out
	}

	if o.limiter != nil {
		if d := o.admit(projectID, len(unique)); !d.Allowed {
			out.RateLimited = true
			out.RetryAfter = d.RetryAfter
			for key, occ := range unique {
				out.Rendered[key] = Fallback(occ.Placeholder)
			}
			out.FailedCount = len(unique)
			return out
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for key, occ := range unique {
		key, occ := key, occ
		g.Go(func() error {
			res, err := o.resolveWithRetry(gctx, projectID, occ)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, resolve.ErrStorage) && out.Fatal == nil {
					out.Fatal = err
				}
				out.Rendered[key] = Fallback(occ.Placeholder)
				out.FailedCount++
				return nil
			}
			res.CanonicalKey = key
			out.Results[key] = res
			out.Rendered[key] = style.Render(res.CSL, styleName, res.FirstSeenOrder)
			out.ResolvedCount++
			return nil
		})
	}
	g.Wait()
	return out
}

// admit checks both budgets in one step so a rejected batch consumes
// nothing. A batch larger than the whole unit budget is rejected outright
// rather than split.
func (o *Orchestrator) admit(projectID string, units int) ratelimit.Decision {
	return o.limiter.CheckBatchAndUnits(projectID, units)
}

func (o *Orchestrator) resolveWithRetry(ctx context.Context, projectID string, occ placeholder.Occurrence) (types.ResolutionResult, error) {
	ref := placeholder.SourceRef(occ.Placeholder)
	reason := fmt.Sprintf("placeholder %q", occ.Raw)

	delay := o.cfg.RetryBaseDelay
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := delay
			if hint := httputil.RetryAfter(lastErr); hint > wait {
				wait = hint
			}
			if err := o.sleep(ctx, wait); err != nil {
				return types.ResolutionResult{}, err
			}
			delay *= 2
		}
		res, err := o.resolver.Resolve(ctx, projectID, ref, reason)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !resolve.IsTransient(err) {
			break
		}
	}
	return types.ResolutionResult{}, lastErr
}

// dedupe keeps the first occurrence per canonical key, preserving nothing
// about later duplicates.
func dedupe(occs []placeholder.Occurrence) map[string]placeholder.Occurrence {
	unique := make(map[string]placeholder.Occurrence, len(occs))
	for _, occ := range occs {
		key := placeholder.Key(occ.Placeholder)
		if _, seen := unique[key]; !seen {
			unique[key] = occ
		}
	}
	return unique
}

// Fallback returns the deterministic inline replacement used when a
// placeholder cannot be resolved. An explicit FallbackText always wins.
func Fallback(p types.Placeholder) string {
	if p.FallbackText != "" {
		return p.FallbackText
	}
	switch p.Kind {
	case types.KindDOI:
		return "(" + truncate(placeholder.NormalizeDOI(p.Value)) + ")"
	case types.KindTitle:
		return "(" + truncate(strings.TrimSpace(p.Value)) + ")"
	case types.KindURL:
		return "(Web source)"
	default:
		return "(Citation unavailable)"
	}
}

func truncate(s string) string {
	if len(s) <= fallbackValueLimit {
		return s
	}
	return s[:fallbackValueLimit-3] + "..."
}
