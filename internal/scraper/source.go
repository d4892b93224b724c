package scraper

import (
	"bytes"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/metrics"
	"github.com/Checker-Finance/capitol-watch/internal/normalize"
)

// Source fetches, parses and normalizes the trades page.
type Source struct {
	fetcher *Fetcher
	logger  *zap.Logger
}

func NewSource(fetcher *Fetcher, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{fetcher: fetcher, logger: logger}
}

// FetchTrades returns at most limit normalized trades in page order.
func (s *Source) FetchTrades(ctx context.Context, limit int) (normalize.Batch, error) {
	start := time.Now()
	body, err := s.fetcher.Fetch(ctx)
	if err != nil {
		metrics.ObserveDuration(metrics.FetchDuration, start, "error")
		metrics.IncError("scraper", "fetch")
		return normalize.Batch{}, err
	}

	rows, err := ParseTable(bytes.NewReader(body))
	if err != nil {
		metrics.ObserveDuration(metrics.FetchDuration, start, "error")
		metrics.IncError("scraper", "parse")
		return normalize.Batch{}, err
	}
	metrics.ObserveDuration(metrics.FetchDuration, start, "ok")

	batch := normalize.Normalize(rows, limit)
	for _, sk := range batch.Skipped {
		s.logger.Debug("scraper.row_skipped",
			zap.Int("row", sk.Index),
			zap.Error(sk.Err))
	}
	metrics.SkippedRowsTotal.Add(float64(len(batch.Skipped)))

	s.logger.Debug("scraper.rows_parsed",
		zap.Int("rows", len(rows)),
		zap.Int("trades", len(batch.Trades)),
		zap.Int("skipped", len(batch.Skipped)))
	return batch, nil
}
