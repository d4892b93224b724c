// Package watcher runs one detection cycle: load the previous snapshot, fetch
// the current trades, diff, notify and persist.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/delta"
	"github.com/Checker-Finance/capitol-watch/internal/metrics"
	"github.com/Checker-Finance/capitol-watch/internal/normalize"
	"github.com/Checker-Finance/capitol-watch/internal/notify"
	"github.com/Checker-Finance/capitol-watch/internal/snapshot"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// Run outcomes, also used as the metrics result label.
const (
	StatusOK            = "ok"
	StatusEmpty         = "empty"
	StatusLocked        = "locked"
	StatusPersistFailed = "persist_failed"
	StatusError         = "error"
)

var (
	// ErrRunInProgress is returned when another run holds the store lock.
	ErrRunInProgress = errors.New("another run is in progress")
	// ErrPersistFailed is returned when the current trades could not be saved.
	ErrPersistFailed = errors.New("snapshot could not be persisted")
)

// Source yields the current trades, newest first.
type Source interface {
	FetchTrades(ctx context.Context, limit int) (normalize.Batch, error)
}

// Config holds the per-run knobs.
type Config struct {
	Limit     int // rows compared per run
	Retention int // snapshots kept after rotation
}

// Result summarizes one run.
type Result struct {
	RunID      string
	Status     string
	Fetched    int
	Skipped    int
	New        int
	Notified   bool
	SnapshotID string
	Removed    []string
	StartedAt  time.Time
	Duration   time.Duration
}

// Watcher wires the source, the snapshot store and the notifier together.
type Watcher struct {
	source   Source
	store    snapshot.Store
	notifier notify.Notifier
	cfg      Config
	logger   *zap.Logger
	last     atomic.Pointer[Result]
}

// New builds a Watcher. notifier may be nil when no channel is configured.
func New(source Source, store snapshot.Store, notifier notify.Notifier, cfg Config, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	if cfg.Retention <= 0 {
		cfg.Retention = snapshot.DefaultRetention
	}
	return &Watcher{
		source:   source,
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}
}

// LastResult returns the outcome of the most recent run, if any.
func (w *Watcher) LastResult() (Result, bool) {
	r := w.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Run executes one cycle. Only a contended lock, a lock failure or a failed
// save produce an error; every other problem is logged and the run degrades.
func (w *Watcher) Run(ctx context.Context) (res Result, err error) {
	res = Result{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := w.logger.With(zap.String("run_id", res.RunID))
	backend := w.store.Backend()

	defer func() {
		res.Duration = time.Since(res.StartedAt)
		metrics.ObserveDuration(metrics.RunDuration, res.StartedAt)
		metrics.IncRun(res.Status)
		w.last.Store(&res)
		log.Info("watcher.run_finished",
			zap.String("status", res.Status),
			zap.Int("fetched", res.Fetched),
			zap.Int("new", res.New),
			zap.Bool("notified", res.Notified),
			zap.String("snapshot", res.SnapshotID),
			zap.Duration("duration", res.Duration))
	}()

	// 0. exclusive run
	release, err := w.store.Lock(ctx)
	if errors.Is(err, snapshot.ErrLocked) {
		log.Warn("watcher.run_in_progress", zap.String("backend", backend))
		res.Status = StatusLocked
		return res, ErrRunInProgress
	}
	if err != nil {
		log.Error("watcher.lock_failed", zap.String("backend", backend), zap.Error(err))
		metrics.IncError("watcher", "lock")
		res.Status = StatusError
		return res, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	// 1. baseline
	previous := w.loadBaseline(ctx, log, backend)

	// 2. current trades
	batch, err := w.source.FetchTrades(ctx, w.cfg.Limit)
	if err != nil {
		log.Error("watcher.fetch_failed", zap.Error(err))
		res.Status = StatusEmpty
		return res, nil
	}
	res.Fetched = len(batch.Trades)
	res.Skipped = len(batch.Skipped)
	metrics.FetchedTrades.Set(float64(res.Fetched))
	if res.Fetched == 0 {
		log.Warn("watcher.no_trades", zap.Int("skipped", res.Skipped))
		res.Status = StatusEmpty
		return res, nil
	}
	log.Info("watcher.trades_fetched",
		zap.Int("trades", res.Fetched),
		zap.Int("skipped", res.Skipped))

	// 3. diff
	fresh := delta.New(batch.Trades, previous)
	res.New = len(fresh)
	metrics.NewTradesTotal.Add(float64(res.New))
	log.Info("watcher.delta_computed",
		zap.Int("previous", len(previous)),
		zap.Int("new", res.New))

	// 4. notify
	res.Notified = w.notifyNew(ctx, log, res.RunID, fresh)

	// 5. persist and rotate
	id, err := w.store.Save(ctx, batch.Trades)
	metrics.IncSnapshotOp(backend, "save", metrics.Result(err))
	if err != nil {
		log.Error("watcher.persist_failed", zap.String("backend", backend), zap.Error(err))
		res.Status = StatusPersistFailed
		return res, fmt.Errorf("%w: %w", ErrPersistFailed, err)
	}
	res.SnapshotID = id
	log.Info("watcher.snapshot_saved",
		zap.String("backend", backend),
		zap.String("snapshot", id),
		zap.Int("trades", len(batch.Trades)))

	removed, err := w.store.Rotate(ctx, w.cfg.Retention)
	metrics.IncSnapshotOp(backend, "rotate", metrics.Result(err))
	res.Removed = removed
	if err != nil {
		log.Warn("watcher.rotate_failed", zap.String("backend", backend), zap.Error(err))
	}

	res.Status = StatusOK
	return res, nil
}

func (w *Watcher) loadBaseline(ctx context.Context, log *zap.Logger, backend string) []model.Trade {
	prev, err := w.store.LoadLatest(ctx)
	metrics.IncSnapshotOp(backend, "load", metrics.Result(err))
	if err != nil {
		log.Warn("watcher.load_failed", zap.String("backend", backend), zap.Error(err))
		return nil
	}
	if prev == nil {
		log.Info("watcher.no_baseline", zap.String("backend", backend))
		return nil
	}
	log.Info("watcher.baseline_loaded",
		zap.String("snapshot", prev.ID),
		zap.Int("trades", len(prev.Trades)))
	return prev.Trades
}

func (w *Watcher) notifyNew(ctx context.Context, log *zap.Logger, runID string, fresh []model.Trade) bool {
	if len(fresh) == 0 {
		log.Info("watcher.no_new_trades")
		return false
	}
	if w.notifier == nil {
		log.Info("watcher.notify_skipped", zap.Int("new", len(fresh)))
		return false
	}
	if err := w.notifier.Notify(ctx, runID, fresh); err != nil {
		log.Warn("watcher.notify_failed", zap.String("channel", w.notifier.Name()), zap.Error(err))
		return false
	}
	return true
}
