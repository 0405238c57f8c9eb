// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream reconciles a live token stream against the citation store.
// Text is buffered to sentence boundaries, placeholder tokens inside each
// window are resolved as one batch, and the spliced text is emitted through
// tagged events in arrival order.
package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sadiq-codes/genpaper/internal/batch"
	"github.com/sadiq-codes/genpaper/internal/placeholder"
	"github.com/sadiq-codes/genpaper/internal/tokens"
	"github.com/sadiq-codes/genpaper/pkg/types"
)

const (
	DefaultSentenceWindow = 3
	DefaultBufferCeiling  = 10000

	unavailableText = "(Citation unavailable)"
)

// State is the reconciler's lifecycle phase.
type State int

const (
	StateBuffering State = iota
	StateAwaitingResolution
	StateFlushing
	StateFinalized
)

// EventType tags reconciler events.
type EventType string

const (
	EventText        EventType = "text"
	EventPlaceholder EventType = "placeholder"
	EventWarning     EventType = "warning"
	EventFallback    EventType = "fallback"
	EventError       EventType = "error"
	EventComplete    EventType = "complete"
)

// Event is one ordered notification from the reconciler. Text carries
// finalized prose for text events and a human-readable message for warnings.
type Event struct {
	Type       EventType
	Text       string
	Count      int
	RetryAfter time.Duration
	Err        error
	Summary    *Summary
}

// Summary holds end-of-stream counts.
type Summary struct {
	Resolved  int
	Failed    int
	Malformed int
	Windows   int
}

// ErrFinalized is returned when feeding a closed reconciler.
var ErrFinalized = errors.New("stream already finalized")

// Reconciler buffers one generation stream for one project. It is not safe
// for concurrent use; concurrency across sections is mediated by the store.
type Reconciler struct {
	orch      *batch.Orchestrator
	cfg       types.StreamConfig
	projectID string
	log       *slog.Logger
	sink      func(Event)

	state   State
	buf     string
	cache   map[string]string
	summary Summary
}

func NewReconciler(projectID string, orch *batch.Orchestrator, cfg types.StreamConfig, logger *slog.Logger, sink func(Event)) *Reconciler {
	if cfg.SentenceWindow <= 0 {
		cfg.SentenceWindow = DefaultSentenceWindow
	}
	if cfg.PlaceholderBackpressure <= 0 {
		cfg.PlaceholderBackpressure = 2 * batch.DefaultConcurrency
	}
	if cfg.BufferCeiling <= 0 {
		cfg.BufferCeiling = DefaultBufferCeiling
	}
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = func(Event) {}
	}
	return &Reconciler{
		orch:      orch,
		cfg:       cfg,
		projectID: projectID,
		log:       logger.With("project", projectID),
		sink:      sink,
		cache:     make(map[string]string),
	}
}

// Feed appends a chunk and flushes any windows it completes.
func (r *Reconciler) Feed(ctx context.Context, chunk string) error {
	if r.state == StateFinalized {
		return ErrFinalized
	}
	r.buf += chunk
	return r.maybeFlush(ctx)
}

// Close force-flushes the remaining buffer, finalizes the stream, and emits
// the complete event. Partial trailing sentences are flushed as-is.
func (r *Reconciler) Close(ctx context.Context) (Summary, error) {
	if r.state == StateFinalized {
		return r.summary, nil
	}
	err := r.flush(ctx, len(r.buf), true)
	r.state = StateFinalized
	if err != nil {
		r.sink(Event{Type: EventError, Err: err})
		return r.summary, err
	}
	s := r.summary
	r.sink(Event{Type: EventComplete, Summary: &s})
	return r.summary, nil
}

// Run drains a producer into the reconciler. On cancellation the in-flight
// window completes, no further windows open, and unflushed text is dropped
// quietly; the error event is reserved for storage and producer failures.
func (r *Reconciler) Run(ctx context.Context, producer tokens.Producer) (Summary, error) {
	for {
		chunk, err := producer.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return r.Close(ctx)
			}
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				r.sink(Event{Type: EventError, Err: err})
			}
			r.state = StateFinalized
			return r.summary, err
		}
		if err := r.Feed(ctx, chunk); err != nil {
			r.sink(Event{Type: EventError, Err: err})
			r.state = StateFinalized
			return r.summary, err
		}
	}
}

func (r *Reconciler) maybeFlush(ctx context.Context) error {
	for {
		ends := sentenceEnds(r.buf)
		cut, truncate := 0, false
		switch {
		case len(ends) >= r.cfg.SentenceWindow:
			cut = ends[len(ends)-1]
		case r.distinctPending() > r.cfg.PlaceholderBackpressure:
			cut = tokenSafeLen(r.buf)
		case len(r.buf) > r.cfg.BufferCeiling:
			cut = tokenSafeLen(r.buf)
			if cut == 0 {
				// An unclosed token fills the whole buffer. It cannot
				// be held until it closes without unbounding memory,
				// so it is spliced away like a token left unterminated
				// at end of stream.
				cut = len(r.buf)
				truncate = true
			}
			r.log.Warn("buffer ceiling exceeded, forcing flush",
				"buffered", len(r.buf), "ceiling", r.cfg.BufferCeiling)
			r.sink(Event{Type: EventWarning, Text: "buffer ceiling exceeded, flushing without sentence boundary"})
		default:
			return nil
		}
		if cut == 0 {
			return nil
		}
		if err := r.flush(ctx, cut, truncate); err != nil {
			return err
		}
	}
}

// distinctPending counts unresolved canonical keys among complete tokens in
// the buffer.
func (r *Reconciler) distinctPending() int {
	if !strings.Contains(r.buf, tokenOpen) {
		return 0
	}
	occs, _ := placeholder.Parse(r.buf)
	seen := make(map[string]bool)
	for _, occ := range occs {
		key := placeholder.Key(occ.Placeholder)
		if _, done := r.cache[key]; !done {
			seen[key] = true
		}
	}
	return len(seen)
}

// splice is a positioned replacement within one window.
type splice struct {
	start, end int
	text       string
}

// flush resolves and emits the first upto bytes of the buffer. With truncate
// set, a trailing unterminated token is replaced rather than held back; the
// end-of-stream and ceiling force flushes both need that.
func (r *Reconciler) flush(ctx context.Context, upto int, truncate bool) error {
	segment := r.buf[:upto]
	r.buf = r.buf[upto:]
	if segment == "" {
		return nil
	}
	r.state = StateFlushing
	defer func() {
		if r.state != StateFinalized {
			r.state = StateBuffering
		}
	}()

	occs, diags := placeholder.Parse(segment)
	splices := make([]splice, 0, len(occs)+len(diags))

	for _, d := range diags {
		r.summary.Malformed++
		r.log.Warn("malformed placeholder", "token", d.Raw, "reason", d.Reason)
		r.sink(Event{Type: EventWarning, Text: "malformed placeholder: " + d.Reason})
		splices = append(splices, splice{d.Offset, d.Offset + len(d.Raw), unavailableText})
	}
	if truncate {
		if i := strings.LastIndex(segment, tokenOpen); i >= 0 && !strings.Contains(segment[i:], "]]") {
			r.summary.Malformed++
			r.sink(Event{Type: EventWarning, Text: "malformed placeholder: unterminated token"})
			splices = append(splices, splice{i, len(segment), unavailableText})
		}
	}

	windowRendered, err := r.resolveWindow(ctx, occs)
	if err != nil {
		return err
	}
	for _, occ := range occs {
		key := placeholder.Key(occ.Placeholder)
		text, ok := r.cache[key]
		if !ok {
			text, ok = windowRendered[key]
		}
		if !ok {
			text = batch.Fallback(occ.Placeholder)
		}
		splices = append(splices, splice{occ.Start, occ.End, text})
	}

	out := applySplices(segment, splices)
	r.summary.Windows++
	r.log.Debug("window flushed", "bytes", len(segment), "placeholders", len(occs))
	if out != "" {
		r.sink(Event{Type: EventText, Text: out})
	}
	return nil
}

// resolveWindow sends unresolved occurrences to the batch orchestrator. The
// batch runs to completion even when ctx is already canceled.
func (r *Reconciler) resolveWindow(ctx context.Context, occs []placeholder.Occurrence) (map[string]string, error) {
	var pending []placeholder.Occurrence
	seen := make(map[string]bool)
	for _, occ := range occs {
		key := placeholder.Key(occ.Placeholder)
		if _, done := r.cache[key]; done || seen[key] {
			continue
		}
		seen[key] = true
		pending = append(pending, occ)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	r.state = StateAwaitingResolution
	r.sink(Event{Type: EventPlaceholder, Count: len(pending)})

	out := r.orch.Process(context.WithoutCancel(ctx), r.projectID, pending, r.cfg.Style)
	if out.Fatal != nil {
		r.log.Error("resolution aborted", "error", out.Fatal)
		return nil, out.Fatal
	}
	if out.RateLimited {
		r.log.Warn("batch rejected by rate limiter", "retry_after", out.RetryAfter)
		r.sink(Event{Type: EventWarning, Text: "resolution rate limited", RetryAfter: out.RetryAfter})
	}
	if out.FailedCount > 0 {
		r.sink(Event{Type: EventFallback, Count: out.FailedCount})
	}
	r.summary.Resolved += out.ResolvedCount
	r.summary.Failed += out.FailedCount

	// Only successful resolutions are cached; failed keys retry in a later
	// window.
	for key := range out.Results {
		r.cache[key] = out.Rendered[key]
	}
	return out.Rendered, nil
}

func applySplices(segment string, splices []splice) string {
	if len(splices) == 0 {
		return segment
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start < splices[j].start })
	var b strings.Builder
	prev := 0
	for _, sp := range splices {
		if sp.start < prev {
			continue
		}
		b.WriteString(segment[prev:sp.start])
		b.WriteString(sp.text)
		prev = sp.end
	}
	b.WriteString(segment[prev:])
	return b.String()
}
