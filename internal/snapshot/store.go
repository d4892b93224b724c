// Package snapshot persists the trade set of every run and serves the most
// recent one back as the baseline of the next run.
//
// Every backend keeps a monotonic ordering key so that creation order equals
// retrieval order; rotation removes the oldest snapshots first.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// DefaultRetention is the number of snapshots kept when the caller does not say otherwise.
const DefaultRetention = 3

// TimestampLayout is the display format of the updated_at field.
const TimestampLayout = "2006-01-02 15:04:05"

// ErrLocked is returned by Lock when another run holds the run lock.
var ErrLocked = errors.New("snapshot store is locked by another run")

// Store defines the contract for persisting and rotating snapshots.
type Store interface {
	// LoadLatest returns the most recent snapshot, or nil when none exist.
	LoadLatest(ctx context.Context) (*model.Snapshot, error)
	// Save persists trades as a new snapshot and returns its identifier.
	Save(ctx context.Context, trades []model.Trade) (string, error)
	// Rotate deletes the oldest snapshots beyond maxSnapshots and returns the removed identifiers.
	Rotate(ctx context.Context, maxSnapshots int) ([]string, error)
	// List returns snapshot identifiers, oldest first.
	List(ctx context.Context) ([]string, error)
	// Lock acquires the run lock; release must be called on every exit path.
	Lock(ctx context.Context) (release func(), err error)
	Backend() string
	HealthCheck(ctx context.Context) error
	Close() error
}

// document is the persisted form of a snapshot.
type document struct {
	UpdatedAt   string        `json:"updated_at"`
	TotalTrades int           `json:"total_trades"`
	Trades      []model.Trade `json:"trades"`
}

func encode(createdAt time.Time, trades []model.Trade) ([]byte, error) {
	if trades == nil {
		trades = []model.Trade{}
	}
	doc := document{
		UpdatedAt:   createdAt.Format(TimestampLayout),
		TotalTrades: len(trades),
		Trades:      trades,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(id string, data []byte) (*model.Snapshot, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", id, err)
	}

	snap := &model.Snapshot{
		ID:         id,
		TotalCount: doc.TotalTrades,
		Trades:     doc.Trades,
	}
	if snap.Trades == nil {
		snap.Trades = []model.Trade{}
	}
	// updated_at is informational; an unreadable value leaves CreatedAt zero.
	if t, err := time.ParseInLocation(TimestampLayout, doc.UpdatedAt, time.Local); err == nil {
		snap.CreatedAt = t
	}
	return snap, nil
}

// excess returns the leading ids that fall outside a window of maxSnapshots.
func excess(ids []string, maxSnapshots int) ([]string, error) {
	if maxSnapshots <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %d", maxSnapshots)
	}
	if len(ids) <= maxSnapshots {
		return nil, nil
	}
	return ids[:len(ids)-maxSnapshots], nil
}
