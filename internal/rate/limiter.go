// Package rate keeps one token bucket per remote collection.
package rate

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines token bucket parameters for one key. A non-positive
// RequestsPerSecond disables limiting.
type Config struct {
	RequestsPerSecond int
	Burst             int
}

func (c Config) limit() rate.Limit {
	if c.RequestsPerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(c.RequestsPerSecond)
}

func (c Config) burst() int {
	if c.Burst < 1 {
		return 1
	}
	return c.Burst
}

// New creates a limiter with a full bucket.
func New(cfg Config) *rate.Limiter {
	return rate.NewLimiter(cfg.limit(), cfg.burst())
}

// Manager holds one limiter per key (one per remote collection in this service).
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	defaults Config
	perKey   map[string]Config
}

func NewManager(defaults Config) *Manager {
	return &Manager{
		limiters: make(map[string]*rate.Limiter),
		defaults: defaults,
		perKey:   make(map[string]Config),
	}
}

// Override sets a dedicated budget for key. It replaces any limiter already
// created for that key.
func (m *Manager) Override(key string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perKey[key] = cfg
	delete(m.limiters, key)
}

func (m *Manager) GetLimiter(key string) *rate.Limiter {
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
	cfg, ok := m.perKey[key]
	if !ok {
		cfg = m.defaults
	}
	lim := New(cfg)
	m.limiters[key] = lim
	return lim
}

// Wait blocks until key has a token or ctx is done.
func (m *Manager) Wait(ctx context.Context, key string) error {
	return m.GetLimiter(key).Wait(ctx)
}
