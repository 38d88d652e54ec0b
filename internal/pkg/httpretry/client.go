// Package httpretry provides an HTTP client with automatic retry logic,
// exponential backoff, and jitter for calls to collaborating services.
package httpretry

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/ignite/affiliate-ledger/internal/pkg/logger"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RetryClient wraps an HTTPDoer with retry logic using exponential backoff and jitter.
type RetryClient struct {
	client     HTTPDoer
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	minDelay   time.Duration
}

// Option customises a RetryClient.
type Option func(*RetryClient)

// WithBackoff overrides the base and maximum backoff delays.
func WithBackoff(base, max time.Duration) Option {
	return func(rc *RetryClient) {
		rc.baseDelay = base
		rc.maxDelay = max
		if rc.minDelay > base {
			rc.minDelay = base
		}
	}
}

// NewRetryClient creates a new RetryClient that wraps the given HTTPDoer.
// If client is nil, a default http.Client with 30s timeout is used.
// maxRetries is the number of retry attempts after the initial request (default 3).
func NewRetryClient(client HTTPDoer, maxRetries int, opts ...Option) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	rc := &RetryClient{
		client:     client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		maxDelay:   10 * time.Second,
		minDelay:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Do executes the request, retrying on 429/5xx gateway statuses and on
// transport errors. Client errors and context cancellation are returned
// immediately. The final attempt's response is returned as-is so the
// caller can inspect the status and body.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}

			delay := rc.delay(attempt)
			logger.Warn("[httpretry] retrying request",
				"attempt", attempt, "max", rc.maxRetries,
				"method", req.Method, "host", req.URL.Host, "path", req.URL.Path,
				"wait", delay, "last_error", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.Context().Done():
				timer.Stop()
				return nil, lastErr
			}
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !Retryable(resp.StatusCode) || attempt == rc.maxRetries {
			return resp, nil
		}

		// Drain for connection reuse before the next attempt.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// delay is full-jitter exponential backoff:
// random(0, min(maxDelay, baseDelay * 2^(attempt-1))), floored at minDelay.
func (rc *RetryClient) delay(attempt int) time.Duration {
	exp := float64(rc.baseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(rc.maxDelay) {
		exp = float64(rc.maxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < rc.minDelay {
		d = rc.minDelay
	}
	return d
}

// Retryable reports whether a status code is a transient server-side
// failure: 429, 500, 502, 503 or 504.
func Retryable(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
