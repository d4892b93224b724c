// Package scraper downloads the public trades page and turns its table into
// normalized trade records.
package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultTimeout bounds a single page fetch.
const DefaultTimeout = 15 * time.Second

// Fetcher retrieves the raw trades page.
type Fetcher struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewFetcher builds a resty-backed fetcher for url.
func NewFetcher(url, userAgent string, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", userAgent)

	return &Fetcher{client: client, url: url, logger: logger}
}

// Fetch downloads the page body. Non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	resp, err := f.client.R().SetContext(ctx).Get(f.url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", f.url, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		f.logger.Warn("scraper.bad_status",
			zap.String("url", f.url),
			zap.Int("status", status))
		return nil, fmt.Errorf("fetch %s: unexpected status %d", f.url, status)
	}

	f.logger.Debug("scraper.fetched",
		zap.String("url", f.url),
		zap.Int("bytes", len(resp.Body())),
		zap.Duration("elapsed", resp.Time()))
	return resp.Body(), nil
}
