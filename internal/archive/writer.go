// Package archive keeps a permanent record of every disclosure the watcher
// has ever reported, independent of snapshot rotation.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/internal/identity"
	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// DBExecutor is the subset of pgxpool.Pool the writer needs.
type DBExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS capitol;
CREATE TABLE IF NOT EXISTS capitol.trade_disclosure (
	fingerprint   TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL,
	politician    TEXT NOT NULL,
	party         TEXT NOT NULL,
	chamber       TEXT NOT NULL,
	state         TEXT NOT NULL,
	traded_issuer TEXT NOT NULL,
	ticker        TEXT NOT NULL,
	published     TEXT NOT NULL,
	traded        TEXT NOT NULL,
	filed_after   TEXT NOT NULL,
	owner         TEXT NOT NULL,
	tx_type       TEXT NOT NULL,
	size          TEXT NOT NULL,
	est_value     BIGINT NOT NULL,
	price         TEXT NOT NULL,
	first_seen    TIMESTAMPTZ NOT NULL
);`

const insertQuery = `
	INSERT INTO capitol.trade_disclosure (
		fingerprint,
		run_id,
		politician,
		party,
		chamber,
		state,
		traded_issuer,
		ticker,
		published,
		traded,
		filed_after,
		owner,
		tx_type,
		size,
		est_value,
		price,
		first_seen
	)
	VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9,
		$10, $11, $12, $13, $14, $15, $16, $17
	)
	ON CONFLICT (fingerprint) DO NOTHING;
`

// Writer inserts new trades into capitol.trade_disclosure. A trade already
// archived by an earlier run keeps its original first_seen.
type Writer struct {
	db     DBExecutor
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// NewWriter wraps an existing executor.
func NewWriter(db DBExecutor, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{db: db, logger: logger, now: time.Now}
}

// Open connects to pgURL with its own small pool and ensures the table exists.
func Open(ctx context.Context, pgURL string, logger *zap.Logger) (*Writer, error) {
	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	cfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	w := NewWriter(pool, logger)
	w.pool = pool
	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

// EnsureSchema creates the archive table when missing.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("ensure archive schema: %w", err)
	}
	return nil
}

func (w *Writer) Name() string { return "archive" }

// Notify archives every trade of the batch.
func (w *Writer) Notify(ctx context.Context, runID string, trades []model.Trade) error {
	seen := w.now().UTC()
	inserted := int64(0)

	for _, t := range trades {
		fp := identity.Fingerprint(t)
		tag, err := w.db.Exec(ctx, insertQuery,
			fp,             // fingerprint
			runID,          // run_id
			t.Politician,   // politician
			t.Party,        // party
			t.Chamber,      // chamber
			t.State,        // state
			t.TradedIssuer, // traded_issuer
			t.Ticker,       // ticker
			t.Published,    // published
			t.Traded,       // traded
			t.FiledAfter,   // filed_after
			t.Owner,        // owner
			t.Type,         // tx_type
			t.Size,         // size
			t.Value,        // est_value
			t.Price,        // price
			seen,           // first_seen
		)
		if err != nil {
			w.logger.Error("archive.insert_failed",
				zap.String("fingerprint", fp),
				zap.String("politician", t.Politician),
				zap.Error(err))
			return fmt.Errorf("archive %s: %w", fp, err)
		}
		inserted += tag.RowsAffected()
	}

	w.logger.Info("archive.written",
		zap.String("run_id", runID),
		zap.Int("trades", len(trades)),
		zap.Int64("inserted", inserted))
	return nil
}

func (w *Writer) Close() {
	if w.pool != nil {
		w.pool.Close()
	}
}
