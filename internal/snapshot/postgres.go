package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

// advisoryLockKey identifies the run lock among other advisory locks on the database.
const advisoryLockKey int64 = 0x636170697477

const schemaDDL = `
CREATE SCHEMA IF NOT EXISTS capitol;
CREATE TABLE IF NOT EXISTS capitol.trade_snapshot (
	id           BIGSERIAL PRIMARY KEY,
	created_at   TIMESTAMPTZ NOT NULL,
	total_trades INT NOT NULL,
	payload      JSONB NOT NULL
);`

// PGPoolConfig tunes the pgx connection pool; zero values keep pgx defaults.
type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// PostgresStore keeps snapshots as rows of capitol.trade_snapshot, ordered by id.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	now    func() time.Time
}

// NewPostgresStore opens a pool, verifies connectivity and ensures the schema exists.
func NewPostgresStore(ctx context.Context, pgURL string, poolCfg PGPoolConfig, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(pgURL)
	if err != nil {
		return nil, fmt.Errorf("invalid pg config: %w", err)
	}
	if poolCfg.MaxConns > 0 {
		cfg.MaxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		cfg.MinConns = poolCfg.MinConns
	}
	if poolCfg.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = poolCfg.MaxConnLifetime
	}
	if poolCfg.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = poolCfg.MaxConnIdleTime
	}
	if poolCfg.HealthCheckPeriod > 0 {
		cfg.HealthCheckPeriod = poolCfg.HealthCheckPeriod
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure snapshot schema: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger, now: time.Now}, nil
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM capitol.trade_snapshot ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan snapshot id: %w", err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return ids, rows.Err()
}

func (s *PostgresStore) LoadLatest(ctx context.Context) (*model.Snapshot, error) {
	var (
		id        int64
		createdAt time.Time
		payload   []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at, payload
		FROM capitol.trade_snapshot
		ORDER BY id DESC
		LIMIT 1;
	`).Scan(&id, &createdAt, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	snap, err := decode(strconv.FormatInt(id, 10), payload)
	if err != nil {
		return nil, err
	}
	snap.CreatedAt = createdAt
	return snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, trades []model.Trade) (string, error) {
	createdAt := s.now()
	payload, err := encode(createdAt, trades)
	if err != nil {
		return "", err
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO capitol.trade_snapshot (created_at, total_trades, payload)
		VALUES ($1, $2, $3)
		RETURNING id;
	`, createdAt, len(trades), payload).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert snapshot: %w", err)
	}

	s.logger.Debug("snapshot.pg_saved",
		zap.Int64("id", id),
		zap.Int("trades", len(trades)))
	return strconv.FormatInt(id, 10), nil
}

func (s *PostgresStore) Rotate(ctx context.Context, maxSnapshots int) ([]string, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	victims, err := excess(ids, maxSnapshots)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, id := range victims {
		n, err := strconv.ParseInt(id, 10, 64)
		if err == nil {
			_, err = s.pool.Exec(ctx, `DELETE FROM capitol.trade_snapshot WHERE id = $1`, n)
		}
		if err != nil {
			s.logger.Warn("snapshot.rotate_delete_failed",
				zap.String("id", id),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("delete %s: %w", id, err))
			continue
		}
		s.logger.Info("snapshot.rotated", zap.String("id", id))
		removed = append(removed, id)
	}
	return removed, errors.Join(errs...)
}

// Lock holds a session-level advisory lock on a dedicated pool connection
// until release is called.
func (s *PostgresStore) Lock(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire pg connection: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, advisoryLockKey).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLocked
	}

	return func() { s.unlock(pooledConn{conn}) }, nil
}

// lockConn is the session holding the advisory lock.
type lockConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close(ctx context.Context) error
	Release()
}

type pooledConn struct{ c *pgxpool.Conn }

func (p pooledConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.c.Exec(ctx, sql, args...)
}

func (p pooledConn) Close(ctx context.Context) error { return p.c.Conn().Close(ctx) }

func (p pooledConn) Release() { p.c.Release() }

// unlock releases the advisory lock. When the unlock fails the session may
// still hold the lock, so it is closed and the pool drops it on Release.
func (s *PostgresStore) unlock(conn lockConn) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, advisoryLockKey); err != nil {
		s.logger.Warn("snapshot.unlock_failed", zap.Error(err))
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer closeCancel()
		if cerr := conn.Close(closeCtx); cerr != nil {
			s.logger.Warn("snapshot.lock_conn_close_failed", zap.Error(cerr))
		}
	}
	conn.Release()
}

func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres not initialized")
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
