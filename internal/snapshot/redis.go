package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

const defaultLockTTL = 10 * time.Minute

// releaseLock deletes the lock key only if it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps each snapshot under <prefix>:snapshot:<seq> and indexes
// the sequence numbers in the sorted set <prefix>:snapshots.
type RedisStore struct {
	rdb     *redis.Client
	prefix  string
	logger  *zap.Logger
	now     func() time.Time
	lockTTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a ping.
func NewRedisStore(addr string, db int, pass, prefix string, logger *zap.Logger) (*RedisStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: pass,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return newRedisStore(rdb, prefix, logger), nil
}

func newRedisStore(rdb *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "capitol"
	}
	return &RedisStore{
		rdb:     rdb,
		prefix:  prefix,
		logger:  logger,
		now:     time.Now,
		lockTTL: defaultLockTTL,
	}
}

func (s *RedisStore) Backend() string { return "redis" }

func (s *RedisStore) seqKey() string { return s.prefix + ":snapshot:seq" }
func (s *RedisStore) indexKey() string { return s.prefix + ":snapshots" }
func (s *RedisStore) lockKey() string { return s.prefix + ":lock" }
func (s *RedisStore) dataKey(id string) string { return s.prefix + ":snapshot:" + id }

func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) LoadLatest(ctx context.Context) (*model.Snapshot, error) {
	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	id := ids[0]
	data, err := s.rdb.Get(ctx, s.dataKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("snapshot %s is indexed but has no payload", id)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	return decode(id, data)
}

func (s *RedisStore) Save(ctx context.Context, trades []model.Trade) (string, error) {
	data, err := encode(s.now(), trades)
	if err != nil {
		return "", err
	}

	seq, err := s.rdb.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return "", fmt.Errorf("allocate snapshot id: %w", err)
	}
	id := strconv.FormatInt(seq, 10)

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.dataKey(id), data, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", id, err)
	}

	s.logger.Debug("snapshot.redis_saved",
		zap.String("id", id),
		zap.Int("trades", len(trades)))
	return id, nil
}

func (s *RedisStore) Rotate(ctx context.Context, maxSnapshots int) ([]string, error) {
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
		_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, s.dataKey(id))
			p.ZRem(ctx, s.indexKey(), id)
			return nil
		})
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

// Lock sets the lock key with NX and a TTL so a crashed run cannot hold it forever.
func (s *RedisStore) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := s.rdb.SetNX(ctx, s.lockKey(), token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire redis lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseLock.Run(ctx, s.rdb, []string{s.lockKey()}, token).Err(); err != nil {
			s.logger.Warn("snapshot.unlock_failed", zap.Error(err))
		}
	}, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if s.rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
