package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 64

// MemoryHub is an in-process Hub backed by buffered channels. Delivery is
// best-effort: a subscriber that falls behind loses events rather than
// stalling the run.
type MemoryHub struct {
	mu     sync.RWMutex
	nextID atomic.Uint64
	subs   map[uint64]subscription
}

type subscription struct {
	ch     chan RunEvent
	filter Filter
}

// NewMemoryHub creates an empty MemoryHub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[uint64]subscription)}
}

// Publish fans the event out to every subscriber whose filter matches.
func (h *MemoryHub) Publish(ctx context.Context, event RunEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.filter.matches(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// slow subscriber, drop
		}
	}
	return nil
}

// Subscribe registers a filtered subscription. The returned cancel function
// removes it; the channel is never closed, so readers should select on their
// own context alongside it.
func (h *MemoryHub) Subscribe(ctx context.Context, filter Filter) (<-chan RunEvent, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	id := h.nextID.Add(1)
	ch := make(chan RunEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = subscription{ch: ch, filter: filter}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
	return ch, cancel, nil
}

var _ Hub = (*MemoryHub)(nil)
