// Package clock abstracts time so periodic work (resource sweeps, worker
// rebalancing) runs off an injectable tick instead of ambient process-wide
// timers. Production code uses System; tests drive a Manual clock.
package clock

import (
	"sync"
	"time"
)

// Ticker delivers ticks on C and must be stopped by its owner.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock supplies the current time and tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// System returns the wall clock.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker {
	return &systemTicker{t: time.NewTicker(d)}
}

type systemTicker struct {
	t *time.Ticker
}

func (s *systemTicker) C() <-chan time.Time { return s.t.C }
func (s *systemTicker) Stop()               { s.t.Stop() }

// Manual is a hand-driven clock for tests. Advance moves time forward and
// fires any tickers whose interval elapsed.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManual creates a manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker returns a ticker fired by Advance.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &manualTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     m.now.Add(d),
		owner:    m,
	}
	m.tickers = append(m.tickers, t)
	return t
}

// Advance moves the clock forward and delivers due ticks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	tickers := make([]*manualTicker, len(m.tickers))
	copy(tickers, m.tickers)
	m.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

type manualTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
	owner    *Manual
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	for !t.next.After(now) {
		select {
		case t.ch <- t.next:
		default:
			// Slow consumer, collapse ticks like time.Ticker does.
		}
		t.next = t.next.Add(t.interval)
	}
}
