// Package event provides the typed pub/sub bus that carries run lifecycle
// events to monitoring consumers. Delivery is append-only, ordered per task
// and at-least-once; a slow subscriber's full buffer drops events rather
// than blocking the scheduler, and drops are counted so backpressure stays
// observable.
package event

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/amitk432/Resolve25-sub002/pkg/types"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// Bus fans events out to subscribers.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan types.Event
	nextID  int
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[int]chan types.Event),
		buffer: buffer,
	}
}

// Subscribe registers a consumer. The returned cancel function removes the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan types.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan types.Event, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish stamps and delivers the event to every subscriber without
// blocking. Full subscriber buffers drop the event.
func (b *Bus) Publish(ev types.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped returns how many deliveries were lost to full buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
