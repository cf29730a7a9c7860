package app

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/autohttps/internal/core/tracking"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/metrics"
	"github.com/example/autohttps/internal/ports/secondary"
)

func newTestTracker() (*RedirectTracker, *mockResponseEvents, *metrics.Metrics) {
	events := newMockResponseEvents()
	m := metrics.New()
	return NewRedirectTracker(events, logging.NewNop(), m), events, m
}

func TestRedirectTracker_Settlement(t *testing.T) {
	tests := []struct {
		name      string
		emit      func(ev *mockResponseEvents)
		wantLive  bool
		wantState tracking.State
		wantCause string
	}{
		{
			name: "redirect keeps tracking",
			emit: func(ev *mockResponseEvents) {
				ev.emitHeaders(secondary.HeadersEvent{TabID: "1", RequestID: "r1", StatusCode: 301})
			},
			wantLive:  true,
			wantState: tracking.StateRedirectObserved,
		},
		{
			name: "final status settles",
			emit: func(ev *mockResponseEvents) {
				ev.emitHeaders(secondary.HeadersEvent{TabID: "1", RequestID: "r1", StatusCode: 200})
			},
			wantCause: SettleFinalStatus,
		},
		{
			name: "response start settles",
			emit: func(ev *mockResponseEvents) {
				ev.emitStarted(secondary.ResponseStartedEvent{TabID: "1", RequestID: "r1", StatusCode: 200})
			},
			wantCause: SettleResponse,
		},
		{
			name: "error on tracked url settles",
			emit: func(ev *mockResponseEvents) {
				ev.emitError(secondary.ErrorEvent{TabID: "1", URL: "https://example.com/", Error: "net::ERR_CERT_COMMON_NAME_INVALID"})
			},
			wantCause: SettleError,
		},
		{
			name: "other tab is ignored",
			emit: func(ev *mockResponseEvents) {
				ev.emitStarted(secondary.ResponseStartedEvent{TabID: "2", RequestID: "r9"})
			},
			wantLive:  true,
			wantState: tracking.StateArmed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, events, m := newTestTracker()
			tracker.Arm("1", "https://example.com/")

			tt.emit(events)

			pending, ok := tracker.Lookup("1")
			assert.Equal(t, tt.wantLive, ok)
			if tt.wantLive {
				assert.Equal(t, tt.wantState, pending.State)
				assert.Equal(t, 3, events.listeners())
				return
			}
			assert.Equal(t, 0, events.listeners())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.Settlements.WithLabelValues(tt.wantCause)))
		})
	}
}

func TestRedirectTracker_RedirectThenResponse(t *testing.T) {
	tracker, events, _ := newTestTracker()
	tracker.Arm("1", "https://example.com/")

	events.emitHeaders(secondary.HeadersEvent{TabID: "1", RequestID: "r2", StatusCode: 307})
	pending, ok := tracker.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "r2", pending.RetriedRequestID)

	events.emitStarted(secondary.ResponseStartedEvent{TabID: "1", RequestID: "r2", StatusCode: 200})
	_, ok = tracker.Lookup("1")
	assert.False(t, ok)
	assert.Equal(t, 0, events.listeners())
}

func TestRedirectTracker_Supersede(t *testing.T) {
	tracker, events, m := newTestTracker()
	tracker.Arm("1", "https://a.example.com/")
	tracker.Arm("1", "https://b.example.com/")

	assert.Equal(t, 1, tracker.Len())
	assert.Equal(t, 3, events.listeners())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Settlements.WithLabelValues(SettleSuperseded)))

	// The old instance's error filter is gone; only the new URL settles.
	events.emitError(secondary.ErrorEvent{TabID: "1", URL: "https://a.example.com/"})
	pending, ok := tracker.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "https://b.example.com/", pending.TrackedURL)
}

func TestRedirectTracker_StaleHandlerIgnored(t *testing.T) {
	tracker, events, _ := newTestTracker()
	tracker.Arm("1", "https://a.example.com/")

	// Capture the first instance's header handler before it is superseded.
	var stale func(secondary.HeadersEvent)
	events.mu.Lock()
	for _, h := range events.headers {
		stale = h.fn
	}
	events.mu.Unlock()
	require.NotNil(t, stale)

	tracker.Arm("1", "https://b.example.com/")
	stale(secondary.HeadersEvent{TabID: "1", RequestID: "old", StatusCode: 302})

	pending, ok := tracker.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, tracking.StateArmed, pending.State)
	assert.Empty(t, pending.RetriedRequestID)
}

func TestRedirectTracker_TabRemovedAndClose(t *testing.T) {
	tracker, events, _ := newTestTracker()
	tracker.Arm("1", "https://a.example.com/")
	tracker.Arm("2", "https://b.example.com/")
	tracker.Arm("3", "https://c.example.com/")

	tracker.TabRemoved("1")
	tracker.TabRemoved("1")
	assert.Equal(t, 2, tracker.Len())
	assert.Equal(t, 6, events.listeners())

	tracker.Close()
	assert.Equal(t, 0, tracker.Len())
	assert.Equal(t, 0, events.listeners())
}
