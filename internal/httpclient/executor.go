package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/bank-gateway/internal/rate"
)

// ErrUnavailable marks failures where the remote could not be reached or kept
// answering 5xx until retries were exhausted.
var ErrUnavailable = errors.New("remote unavailable")

// Backoff returns the retry sleep duration for the given attempt number.
func Backoff(attempt int) time.Duration {
	switch attempt {
	case 0:
		return 100 * time.Millisecond
	case 1:
		return 250 * time.Millisecond
	default:
		return 500 * time.Millisecond
	}
}

// Observer receives one call per completed HTTP exchange.
// status is 0 when the request failed at the transport level.
type Observer func(req *http.Request, status int, elapsed time.Duration)

// Executor handles rate-limited HTTP execution with JSON decoding. Only
// idempotent methods are retried; a POST is attempted exactly once so a
// create is never duplicated on the remote.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	errorHandler func(status int, body []byte) error
	observe      Observer
}

// New creates an Executor. errorHandler is called on 4xx responses to produce a
// remote-specific error. If nil, a default error is returned.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	tag string,
	errorHandler func(status int, body []byte) error,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		tag:          tag,
		errorHandler: errorHandler,
	}
}

// WithObserver registers a callback for per-request metrics.
func (e *Executor) WithObserver(o Observer) *Executor {
	e.observe = o
	return e
}

// DoJSON executes req and JSON-decodes a non-empty 2xx body into out.
// It reports whether a body was decoded; an empty 2xx body yields (false, nil).
// rateLimitKey scopes the rate limiter.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) (bool, error) {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return false, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	attempts := e.retryMax
	if !idempotent(req.Method) {
		attempts = 0
	}

	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			if err := rewind(req); err != nil {
				return false, err
			}
		}

		start := time.Now()
		resp, err := e.http.Do(req)
		if err != nil {
			e.record(req, 0, time.Since(start))
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			lastErr = err
			e.logger.Warn(e.tag+".http_failed",
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Error(err),
				zap.Int("attempt", attempt))
			if !sleep(ctx, Backoff(attempt), attempt < attempts) {
				break
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		e.record(req, resp.StatusCode, elapsed)
		if readErr != nil {
			lastErr = readErr
			if !sleep(ctx, Backoff(attempt), attempt < attempts) {
				break
			}
			continue
		}

		if resp.StatusCode >= 500 {
			e.logger.Warn(e.tag+".server_error",
				zap.Int("status", resp.StatusCode),
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Duration("latency", elapsed))
			lastErr = fmt.Errorf("%s server error: %d", e.tag, resp.StatusCode)
			if !sleep(ctx, Backoff(attempt), attempt < attempts) {
				break
			}
			continue
		}

		if resp.StatusCode >= 400 {
			if e.errorHandler != nil {
				return false, e.errorHandler(resp.StatusCode, body)
			}
			return false, fmt.Errorf("%s returned %d", e.tag, resp.StatusCode)
		}

		e.logger.Debug(e.tag+".http_success",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))

		if out == nil || len(body) == 0 {
			return false, nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			e.logger.Warn(e.tag+".decode_failed",
				zap.Error(err),
				zap.String("url", req.URL.String()),
				zap.String("body", string(body)))
			return false, fmt.Errorf("decode failed: %w", err)
		}
		return true, nil
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, fmt.Errorf("%w: %s request failed after %d attempts: %w", ErrUnavailable, e.tag, attempts+1, lastErr)
}

func (e *Executor) record(req *http.Request, status int, elapsed time.Duration) {
	if e.observe != nil {
		e.observe(req, status, elapsed)
	}
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

// rewind resets the request body before a retry.
func rewind(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("rewind request body: %w", err)
	}
	req.Body = body
	return nil
}

// sleep waits d unless more is false or ctx ends first. It reports whether
// another attempt should be made.
func sleep(ctx context.Context, d time.Duration, more bool) bool {
	if !more {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
