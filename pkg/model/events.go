package model

import (
	"time"

	"github.com/google/uuid"
)

// TradeDisclosedEvent is published to message brokers for every newly detected trade.
type TradeDisclosedEvent struct {
	ID          uuid.UUID `json:"id"`
	RunID       string    `json:"run_id"`
	Fingerprint string    `json:"fingerprint"`
	Source      string    `json:"source"`
	DetectedAt  time.Time `json:"detected_at"`
	Trade       Trade     `json:"trade"`
}
