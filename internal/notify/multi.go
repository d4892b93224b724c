package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/metrics"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// Multi fans a batch out to every channel in order. A failing channel never
// prevents delivery on the others.
type Multi struct {
	notifiers []Notifier
	logger    *zap.Logger
}

func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{notifiers: notifiers, logger: logger}
}

func (m *Multi) Name() string { return "multi" }

// Len returns the number of configured channels.
func (m *Multi) Len() int { return len(m.notifiers) }

// Notify returns the joined error of every failed channel.
func (m *Multi) Notify(ctx context.Context, runID string, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		start := time.Now()
		err := n.Notify(ctx, runID, trades)
		metrics.ObserveDuration(metrics.NotifyLatency, start, n.Name())
		metrics.IncNotification(n.Name(), metrics.Result(err))

		if err != nil {
			m.logger.Warn("notify.channel_failed",
				zap.String("channel", n.Name()),
				zap.String("run_id", runID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.logger.Info("notify.channel_delivered",
			zap.String("channel", n.Name()),
			zap.String("run_id", runID),
			zap.Int("trades", len(trades)))
	}
	return errors.Join(errs...)
}
