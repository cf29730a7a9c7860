package app

import (
	"sync"

	"go.uber.org/zap"

	"github.com/example/autohttps/internal/core/tracking"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/metrics"
	"github.com/example/autohttps/internal/ports/secondary"
)

// Settlement causes reported to metrics and diagnostics.
const (
	SettleFinalStatus = "final-status"
	SettleResponse    = "response-started"
	SettleError       = "request-error"
	SettleTabRemoved  = "tab-removed"
	SettleSuperseded  = "superseded"
	SettleShutdown    = "shutdown"
)

// PendingRedirect is a read-only view of a tab's outstanding upgrade.
type PendingRedirect struct {
	TrackedURL       string
	RetriedRequestID string
	State            tracking.State
}

// pendingRedirect is one tracking instance. It is only touched under the
// tracker's lock.
type pendingRedirect struct {
	tabID            string
	trackedURL       string
	retriedRequestID string
	state            tracking.State
	subs             []secondary.Subscription
}

// RedirectTracker owns the per-tab registry of outstanding upgrades and the
// response subscriptions each of them holds.
type RedirectTracker struct {
	events  secondary.ResponseEvents
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	pending map[string]*pendingRedirect
}

// NewRedirectTracker creates a RedirectTracker with injected dependencies.
func NewRedirectTracker(events secondary.ResponseEvents, logger *logging.Logger, m *metrics.Metrics) *RedirectTracker {
	return &RedirectTracker{
		events:  events,
		logger:  logger,
		metrics: m,
		pending: make(map[string]*pendingRedirect),
	}
}

// Arm starts tracking an upgrade of tabID to trackedURL, settling any
// instance the tab already had before subscribing the new one.
func (t *RedirectTracker) Arm(tabID, trackedURL string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.pending[tabID]; ok {
		t.settleLocked(old, SettleSuperseded)
	}

	p := &pendingRedirect{
		tabID:      tabID,
		trackedURL: trackedURL,
		state:      tracking.StateArmed,
	}
	t.pending[tabID] = p

	tabFilter := secondary.EventFilter{TabID: tabID}
	p.subs = []secondary.Subscription{
		t.events.OnHeadersReceived(tabFilter, func(ev secondary.HeadersEvent) {
			t.handle(p, tracking.Event{
				Kind:       tracking.EventHeadersReceived,
				StatusCode: ev.StatusCode,
				RequestID:  ev.RequestID,
			})
		}),
		t.events.OnResponseStarted(tabFilter, func(ev secondary.ResponseStartedEvent) {
			t.handle(p, tracking.Event{Kind: tracking.EventResponseStarted, RequestID: ev.RequestID})
		}),
		t.events.OnErrorOccurred(secondary.EventFilter{TabID: tabID, URL: trackedURL}, func(ev secondary.ErrorEvent) {
			t.handle(p, tracking.Event{Kind: tracking.EventErrorOccurred, RequestID: ev.RequestID})
		}),
	}

	t.metrics.SetPendingRedirects(len(t.pending))
	t.logger.Debug("redirect tracking armed", zap.String("tab", tabID), zap.String("url", trackedURL))
}

// Lookup returns the outstanding upgrade for tabID, if any.
func (t *RedirectTracker) Lookup(tabID string) (PendingRedirect, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[tabID]
	if !ok {
		return PendingRedirect{}, false
	}
	return PendingRedirect{
		TrackedURL:       p.trackedURL,
		RetriedRequestID: p.retriedRequestID,
		State:            p.state,
	}, true
}

// TabRemoved settles the tab's outstanding upgrade.
func (t *RedirectTracker) TabRemoved(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.pending[tabID]; ok {
		t.settleLocked(p, SettleTabRemoved)
	}
}

// Len returns the number of tabs with an outstanding upgrade.
func (t *RedirectTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Close settles every outstanding upgrade.
func (t *RedirectTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pending {
		t.settleLocked(p, SettleShutdown)
	}
}

// handle feeds one observation to instance p. Observations for an instance
// that is no longer the tab's current one are dropped.
func (t *RedirectTracker) handle(p *pendingRedirect, ev tracking.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending[p.tabID] != p {
		return
	}

	tr := tracking.Next(p.state, ev)
	if tr.RecordRequestID {
		p.retriedRequestID = ev.RequestID
		t.logger.Debug("upgrade redirected",
			zap.String("tab", p.tabID),
			zap.String("request", ev.RequestID),
			zap.Int("status", ev.StatusCode))
	}
	if tr.Next == tracking.StateSettled {
		t.settleLocked(p, settleCause(ev))
		return
	}
	p.state = tr.Next
}

// settleLocked releases p exactly once. The caller holds t.mu.
func (t *RedirectTracker) settleLocked(p *pendingRedirect, cause string) {
	if p.state == tracking.StateSettled {
		return
	}
	p.state = tracking.StateSettled
	for _, sub := range p.subs {
		sub.Unsubscribe()
	}
	p.subs = nil
	if t.pending[p.tabID] == p {
		delete(t.pending, p.tabID)
	}

	t.metrics.ObserveSettlement(cause)
	t.metrics.SetPendingRedirects(len(t.pending))
	t.logger.Debug("redirect tracking settled", zap.String("tab", p.tabID), zap.String("cause", cause))
}

func settleCause(ev tracking.Event) string {
	switch ev.Kind {
	case tracking.EventHeadersReceived:
		return SettleFinalStatus
	case tracking.EventResponseStarted:
		return SettleResponse
	case tracking.EventErrorOccurred:
		return SettleError
	case tracking.EventTabRemoved:
		return SettleTabRemoved
	}
	return SettleSuperseded
}
