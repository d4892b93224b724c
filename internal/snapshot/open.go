package snapshot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/pkg/config"
)

// Open builds the store selected by cfg.SnapshotBackend.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.SnapshotBackend {
	case config.BackendFile:
		return NewFileStore(cfg.SnapshotDir, logger)
	case config.BackendRedis:
		return NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.RedisKeyPrefix, logger)
	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL, PGPoolConfig{
			MaxConns:          int32(cfg.PGMaxConns),
			MinConns:          int32(cfg.PGMinConns),
			MaxConnLifetime:   cfg.PGMaxConnLifetime,
			MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
			HealthCheckPeriod: cfg.PGHealthCheckPeriod,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}
