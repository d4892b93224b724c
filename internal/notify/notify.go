// Package notify delivers newly detected trades to external channels.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Checker-Finance/capitol-watch/internal/identity"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// EventSource tags every published event.
const EventSource = "capitoltrades"

// Notifier delivers one batch of new trades. Implementations are called only
// with a non-empty batch.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, runID string, trades []model.Trade) error
}

// BuildEvents wraps each trade in a TradeDisclosedEvent, preserving order.
func BuildEvents(runID string, trades []model.Trade, at time.Time) []model.TradeDisclosedEvent {
	events := make([]model.TradeDisclosedEvent, len(trades))
	for i, t := range trades {
		events[i] = model.TradeDisclosedEvent{
			ID:          uuid.New(),
			RunID:       runID,
			Fingerprint: identity.Fingerprint(t),
			Source:      EventSource,
			DetectedAt:  at.UTC(),
			Trade:       t,
		}
	}
	return events
}
