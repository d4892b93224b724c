// Package secrets resolves notifier credentials that are not supplied through
// the environment.
package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/capitol-watch/pkg/secrets"
)

// Resolver fetches a named secret, parses it into T and caches the result.
type Resolver[T any] struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
}

func NewResolver[T any](logger *zap.Logger, provider pkgsecrets.Provider, cache *pkgsecrets.Cache[T]) *Resolver[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver[T]{logger: logger, provider: provider, cache: cache}
}

// Resolve returns the cached value for name or fetches and parses it.
func (r *Resolver[T]) Resolve(ctx context.Context, name string, parse func(map[string]string) (T, error)) (T, error) {
	var zero T
	if cfg, ok := r.cache.Get(name); ok {
		return cfg, nil
	}

	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("secret", name),
			zap.Error(err))
		return zero, fmt.Errorf("resolve secret %q: %w", name, err)
	}

	cfg, err := parse(raw)
	if err != nil {
		return zero, fmt.Errorf("parse secret %q: %w", name, err)
	}
	r.cache.Put(name, cfg)

	r.logger.Info("secrets.resolved", zap.String("secret", name))
	return cfg, nil
}
