// Package rate provides keyed token-bucket limiters used to pace outbound
// notification traffic.
package rate

import (
	"context"
	"sync"
	"time"
)

// Config defines the bucket for a single key.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter implements a token bucket.
type Limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
	now    func() time.Time
}

// New creates a limiter with a full bucket. A non-positive rate disables limiting.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens: float64(burst),
		last:   time.Now(),
		rate:   cfg.RequestsPerSecond,
		burst:  float64(burst),
		now:    time.Now,
	}
}

// reserve takes a token if one is available, otherwise reports how long until one is.
func (l *Limiter) reserve() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rate <= 0 {
		return true, 0
	}

	now := l.now()
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}

	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	missing := 1 - l.tokens
	return false, time.Duration(missing / l.rate * float64(time.Second))
}

// Allow takes a token without blocking.
func (l *Limiter) Allow() bool {
	ok, _ := l.reserve()
	return ok
}

// Wait blocks until a token becomes available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		ok, delay := l.reserve()
		if ok {
			return nil
		}
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}
}

// Manager holds one limiter per key, e.g. per chat.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: defaults,
	}
}

func (m *Manager) GetLimiter(key string) *Limiter {
	m.mu.RLock()
	if lim, ok := m.limiters[key]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim := New(m.defaults)
	m.limiters[key] = lim
	return lim
}

// Wait paces the caller according to the limiter for key.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
