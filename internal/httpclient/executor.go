// Package httpclient executes outbound API calls with pacing, bounded retries
// and JSON decoding.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/rate"
	"github.com/Checker-Finance/capitol-watch/pkg/utils"
)

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

// ErrorHandler turns a 4xx response into a channel-specific error.
type ErrorHandler func(status int, body []byte) error

// Executor handles rate-limited, retrying HTTP execution with JSON decoding.
// Transport errors and 5xx responses are retried; 4xx responses are not.
type Executor struct {
	logger       *zap.Logger
	rateMgr      *rate.Manager
	http         *http.Client
	retryMax     int
	tag          string
	errorHandler ErrorHandler
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates an Executor. tag prefixes log events (e.g. "telegram.http_failed").
// rateMgr and errorHandler may be nil.
func New(
	logger *zap.Logger,
	rateMgr *rate.Manager,
	httpClient *http.Client,
	retryMax int,
	tag string,
	errorHandler ErrorHandler,
) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if retryMax < 0 {
		retryMax = 0
	}
	return &Executor{
		logger:       logger,
		rateMgr:      rateMgr,
		http:         httpClient,
		retryMax:     retryMax,
		tag:          tag,
		errorHandler: errorHandler,
		sleep:        sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DoJSON executes req with rate limiting and retries, then JSON-decodes the
// response into out. rateLimitKey scopes the limiter, e.g. per chat. Requests
// with a body must be built with a rewindable body (bytes/strings reader) so
// retries can resend it.
func (e *Executor) DoJSON(ctx context.Context, req *http.Request, rateLimitKey string, out any) error {
	if e.rateMgr != nil {
		if err := e.rateMgr.Wait(ctx, rateLimitKey); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	target := utils.MaskBotURL(req.URL.String())
	attempts := e.retryMax + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, Backoff(attempt-1)); err != nil {
				return fmt.Errorf("%s retry aborted: %w", e.tag, err)
			}
		}

		r, err := rewind(ctx, req)
		if err != nil {
			return err
		}

		start := time.Now()
		status, body, err := e.roundTrip(r, target)
		elapsed := time.Since(start)
		if err != nil {
			lastErr = err
			e.logger.Warn(e.tag+".http_failed",
				zap.String("url", target),
				zap.Error(err),
				zap.Int("attempt", attempt))
			continue
		}

		if status >= 500 {
			e.logger.Warn(e.tag+".server_error",
				zap.Int("status", status),
				zap.String("url", target),
				zap.Duration("latency", elapsed),
				zap.Int("attempt", attempt))
			lastErr = fmt.Errorf("%s server error: %d", e.tag, status)
			continue
		}

		if status >= 400 {
			if e.errorHandler != nil {
				return e.errorHandler(status, body)
			}
			return fmt.Errorf("%s returned %d", e.tag, status)
		}

		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				e.logger.Warn(e.tag+".decode_failed",
					zap.Error(err),
					zap.String("url", target),
					zap.Int("body_bytes", len(body)))
				return fmt.Errorf("decode failed: %w", err)
			}
		}

		e.logger.Debug(e.tag+".http_success",
			zap.String("url", target),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed))
		return nil
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", e.tag, attempts, lastErr)
}

// roundTrip reports transport errors against target rather than the raw
// request URL, which may carry a bot token.
func (e *Executor) roundTrip(req *http.Request, target string) (int, []byte, error) {
	resp, err := e.http.Do(req)
	if err != nil {
		return 0, nil, maskURLError(err, target)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func maskURLError(err error, target string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: target, Err: uerr.Err}
	}
	return err
}

// rewind returns a copy of req bound to ctx with a fresh body.
func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body is not rewindable")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind body: %w", err)
	}
	r.Body = body
	return r, nil
}
