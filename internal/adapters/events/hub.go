// Package events provides the in-process response event hub that hosts
// publish into and the redirect tracker subscribes to.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/example/autohttps/internal/ports/secondary"
)

// Hub dispatches response-phase events to filtered handlers.
// Publish calls handlers synchronously on the caller's goroutine, outside the
// hub's lock, so a handler may release its own or another subscription.
type Hub struct {
	mu       sync.RWMutex
	headers  map[uint64]entry[secondary.HeadersEvent]
	started  map[uint64]entry[secondary.ResponseStartedEvent]
	failures map[uint64]entry[secondary.ErrorEvent]

	sequence atomic.Uint64
}

type entry[E any] struct {
	filter secondary.EventFilter
	fn     func(E)
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		headers:  make(map[uint64]entry[secondary.HeadersEvent]),
		started:  make(map[uint64]entry[secondary.ResponseStartedEvent]),
		failures: make(map[uint64]entry[secondary.ErrorEvent]),
	}
}

// OnHeadersReceived registers fn for header events passing filter.
func (h *Hub) OnHeadersReceived(filter secondary.EventFilter, fn func(secondary.HeadersEvent)) secondary.Subscription {
	return subscribe(h, h.headers, filter, fn)
}

// OnResponseStarted registers fn for response-start events passing filter.
func (h *Hub) OnResponseStarted(filter secondary.EventFilter, fn func(secondary.ResponseStartedEvent)) secondary.Subscription {
	return subscribe(h, h.started, filter, fn)
}

// OnErrorOccurred registers fn for network errors passing filter.
func (h *Hub) OnErrorOccurred(filter secondary.EventFilter, fn func(secondary.ErrorEvent)) secondary.Subscription {
	return subscribe(h, h.failures, filter, fn)
}

// PublishHeaders delivers ev to every matching header handler.
func (h *Hub) PublishHeaders(ev secondary.HeadersEvent) {
	dispatch(h, h.headers, ev.TabID, ev.URL, ev)
}

// PublishResponseStarted delivers ev to every matching response-start handler.
func (h *Hub) PublishResponseStarted(ev secondary.ResponseStartedEvent) {
	dispatch(h, h.started, ev.TabID, ev.URL, ev)
}

// PublishError delivers ev to every matching error handler.
func (h *Hub) PublishError(ev secondary.ErrorEvent) {
	dispatch(h, h.failures, ev.TabID, ev.URL, ev)
}

// Listeners returns the number of live handlers across all streams.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.headers) + len(h.started) + len(h.failures)
}

func subscribe[E any](h *Hub, table map[uint64]entry[E], filter secondary.EventFilter, fn func(E)) secondary.Subscription {
	id := h.sequence.Add(1)

	h.mu.Lock()
	table[id] = entry[E]{filter: filter, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return secondary.SubscriptionFunc(func() {
		once.Do(func() {
			h.mu.Lock()
			delete(table, id)
			h.mu.Unlock()
		})
	})
}

func dispatch[E any](h *Hub, table map[uint64]entry[E], tabID, url string, ev E) {
	h.mu.RLock()
	var fns []func(E)
	for _, e := range table {
		if e.filter.Matches(tabID, url) {
			fns = append(fns, e.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Ensure Hub implements the interface
var _ secondary.ResponseEvents = (*Hub)(nil)
