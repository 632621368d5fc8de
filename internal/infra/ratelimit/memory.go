package ratelimit

import (
	"context"
	"sync"
	"time"

	"telegram-credit-miniapp/internal/domain/ports/adapter"
)

var _ adapter.RateLimiter = (*Memory)(nil)

type window struct {
	count   int
	resetAt time.Time
}

// Memory is a per-process fixed-window limiter. Limits are per instance; use the
// Redis limiter when several replicas serve traffic.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{windows: make(map[string]*window), now: now}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, d time.Duration) (adapter.RateDecision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		m.windows[key] = w
	}

	dec := adapter.RateDecision{Limit: limit, ResetAt: w.resetAt}
	if w.count >= limit {
		dec.Limited = true
		dec.RetryAfter = w.resetAt.Sub(now)
		return dec, nil
	}
	w.count++
	dec.Remaining = limit - w.count
	return dec, nil
}

// Sweep drops expired windows and returns how many remain.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, w := range m.windows {
		if !now.Before(w.resetAt) {
			delete(m.windows, k)
		}
	}
	return len(m.windows)
}
