package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLimited = errors.New("rate limit exceeded")

// Limiter cuenta intentos por key en una ventana fija.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// Memory es el fallback de proceso único (sin REDIS_ADDR). No comparte estado entre réplicas.
type Memory struct {
	rule Rule
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewMemory(rule Rule) *Memory {
	return &Memory{
		rule:    rule,
		now:     time.Now,
		windows: map[string]window{},
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if !m.rule.enabled() {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(m.rule.Window)}
		m.prune(now)
	}
	w.count++
	m.windows[key] = w

	return w.count <= m.rule.Limit, nil
}

func (m *Memory) prune(now time.Time) {
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
}
