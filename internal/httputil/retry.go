// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the resolver backends.
// Retry policy is owned by the batch orchestrator; this package classifies
// failures so the orchestrator can decide what is worth retrying.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Classification sentinels. Callers test with errors.Is.
var (
	// ErrNotFound indicates the resource does not exist (HTTP 404).
	ErrNotFound = errors.New("resource not found")

	// ErrRateLimited indicates the backend rejected the request (HTTP 429).
	ErrRateLimited = errors.New("backend rate limit exceeded")

	// ErrTransient indicates a failure worth retrying: a 5xx status, a
	// network error, or a timeout.
	ErrTransient = errors.New("transient backend failure")
)

// StatusError carries a non-OK HTTP status that fits no sentinel.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// RetryAfter extracts the server-advised wait from a 429 error produced by
// DoJSON. Zero when the error carries no hint.
func RetryAfter(err error) time.Duration {
	var rl *rateLimitError
	if errors.As(err, &rl) {
		return rl.retryAfter
	}
	return 0
}

type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	if e.retryAfter > 0 {
		return fmt.Sprintf("backend rate limit exceeded, retry after %v", e.retryAfter)
	}
	return "backend rate limit exceeded"
}

func (e *rateLimitError) Is(target error) bool { return target == ErrRateLimited }

// IsTransient reports whether err is worth retrying under the orchestrator's
// backoff policy. Rate-limit errors count: the backend asked for a pause,
// not a permanent stop.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}

// DoJSON executes the request and decodes a 200 response body into v.
// Non-OK statuses are mapped to the classification sentinels: 404 to
// ErrNotFound, 429 to ErrRateLimited (with any Retry-After hint attached),
// 5xx and network/timeout failures to ErrTransient. Other statuses produce
// a *StatusError.
func DoJSON(ctx context.Context, client *http.Client, req *http.Request, v any) error {
	resp, err := client.Do(req.Clone(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: timeout: %v", ErrTransient, err)
		}
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, req.URL)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d from %s", ErrTransient, resp.StatusCode, req.URL)
	default:
		return &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response from %s: %w", req.URL, err)
	}
	return nil
}

// parseRetryAfter handles the delta-seconds form of the Retry-After header.
// The HTTP-date form is rare on the APIs we call and is ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
