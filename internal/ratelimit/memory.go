package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Memory is a per-key fixed window counter held in process memory, the
// single-process counterpart of RedisWindow.  The first request for a key
// opens a window; at most max requests are allowed until it ends.  Expired
// windows are dropped by a janitor.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	length  time.Duration
	now     func() time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewMemory starts a limiter and its janitor.  Call Stop to release it.
func NewMemory(max int, length time.Duration) *Memory {
	m := newMemory(max, length, time.Now)
	go m.janitor(length)
	return m
}

func newMemory(max int, length time.Duration, now func() time.Time) *Memory {
	return &Memory{
		windows: make(map[string]*window),
		max:     max,
		length:  length,
		now:     now,
		done:    make(chan struct{}),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.length {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++

	d := Decision{Limit: m.max, Allowed: w.count <= m.max}
	if d.Allowed {
		d.Remaining = m.max - w.count
		return d, nil
	}
	d.RetryAfter = w.start.Add(m.length).Sub(now)
	return d, nil
}

// Len reports how many keys are tracked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// sweep forgets keys whose window has ended.  The next request for such a
// key opens a fresh window anyway.
func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, w := range m.windows {
		if now.Sub(w.start) >= m.length {
			delete(m.windows, k)
		}
	}
}

func (m *Memory) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-t.C:
			m.sweep(m.now())
		}
	}
}

// Stop shuts down the janitor.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}
