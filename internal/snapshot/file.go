package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/Checker-Finance/capitol-watch/pkg/model"
)

const (
	filePrefix      = "trades_"
	fileExt         = ".json"
	fileStampLayout = "20060102_150405"
	lockFileName    = ".capitol-watch.lock"
	maxSameSecond   = 99
)

// FileStore keeps one JSON file per snapshot named trades_YYYYMMDD_HHMMSS.json.
// The fixed-width timestamp makes lexicographic order equal creation order; a
// second save within the same second gets a _NN suffix, which sorts after the
// unsuffixed name and before the next second.
type FileStore struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
	lock   *flock.Flock
}

// FileOption customizes a FileStore.
type FileOption func(*FileStore)

// WithClock overrides the clock used to name snapshots.
func WithClock(now func() time.Time) FileOption {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore creates the snapshot directory if needed.
func NewFileStore(dir string, logger *zap.Logger, opts ...FileOption) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		lock:   flock.New(filepath.Join(dir, lockFileName)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FileStore) Backend() string { return "file" }

// Dir returns the directory holding the snapshot files.
func (s *FileStore) Dir() string { return s.dir }

// List returns snapshot file names, oldest first.
func (s *FileStore) List(_ context.Context) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, filePrefix+"*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) LoadLatest(ctx context.Context) (*model.Snapshot, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}

	latest := names[len(names)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, latest))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", latest, err)
	}
	return decode(latest, data)
}

func (s *FileStore) Save(_ context.Context, trades []model.Trade) (string, error) {
	createdAt := s.now()
	data, err := encode(createdAt, trades)
	if err != nil {
		return "", err
	}

	name, err := s.nextName(createdAt)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".trades-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", fmt.Errorf("rename snapshot: %w", err)
	}

	s.logger.Debug("snapshot.file_saved",
		zap.String("file", name),
		zap.Int("trades", len(trades)))
	return name, nil
}

func (s *FileStore) nextName(t time.Time) (string, error) {
	stamp := filePrefix + t.Format(fileStampLayout)
	name := stamp + fileExt
	for n := 1; ; n++ {
		_, err := os.Stat(filepath.Join(s.dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat snapshot %s: %w", name, err)
		}
		if n > maxSameSecond {
			return "", fmt.Errorf("too many snapshots within %s", t.Format(TimestampLayout))
		}
		name = fmt.Sprintf("%s_%02d%s", stamp, n, fileExt)
	}
}

func (s *FileStore) Rotate(ctx context.Context, maxSnapshots int) ([]string, error) {
	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	victims, err := excess(names, maxSnapshots)
	if err != nil {
		return nil, err
	}

	var removed []string
	var errs []error
	for _, name := range victims {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("snapshot.rotate_delete_failed",
				zap.String("file", name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		s.logger.Info("snapshot.rotated", zap.String("file", name))
		removed = append(removed, name)
	}
	return removed, errors.Join(errs...)
}

// Lock takes an advisory lock on a file inside the snapshot directory.
func (s *FileStore) Lock(_ context.Context) (func(), error) {
	ok, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire file lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("snapshot.unlock_failed", zap.Error(err))
		}
	}, nil
}

func (s *FileStore) HealthCheck(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("snapshot dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("snapshot dir %s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}
