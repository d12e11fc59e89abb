package storage

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultWatchBuffer is the per-subscriber channel capacity
const DefaultWatchBuffer = 64

// Hub fans changes out to watchers. A watcher whose buffer is full misses
// the change rather than blocking the writer.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	buffer int
	closed bool
	done   chan struct{}
	logger zerolog.Logger
}

// NewHub creates a hub; buffer <= 0 means DefaultWatchBuffer
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultWatchBuffer
	}
	return &Hub{
		subs:   make(map[int]chan Change),
		buffer: buffer,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Subscribe registers a watcher until ctx is done or the hub is closed
func (h *Hub) Subscribe(ctx context.Context) <-chan Change {
	ch := make(chan Change, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-h.done:
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}()

	return ch
}

// Publish delivers c to every watcher without blocking
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- c:
		default:
			h.logger.Warn().
				Int("watcher", id).
				Str("item", c.Item.ID).
				Str("change", string(c.Type)).
				Msg("watcher buffer full, change dropped")
		}
	}
}

// Close closes every watcher channel; later subscriptions get a closed channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
