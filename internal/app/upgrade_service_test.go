package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/autohttps/internal/core/upgrade"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecide_PreFilters(t *testing.T) {
	tests := []struct {
		name       string
		req        primary.NavigationRequest
		wantReason string
	}{
		{
			name:       "navigation from a page",
			req:        primary.NavigationRequest{TabID: "1", URL: "http://example.com/", OriginURL: "https://search.example.org/"},
			wantReason: upgrade.ReasonOriginURL,
		},
		{
			name:       "no visible tab",
			req:        primary.NavigationRequest{URL: "http://example.com/"},
			wantReason: upgrade.ReasonNoTab,
		},
		{
			name:       "single label host",
			req:        primary.NavigationRequest{TabID: "1", URL: "http://intranet/"},
			wantReason: upgrade.ReasonNoTLD,
		},
		{
			name:       "reserved suffix",
			req:        primary.NavigationRequest{TabID: "1", URL: "http://app.localhost/"},
			wantReason: upgrade.ReasonReservedTLD,
		},
		{
			name:       "ipv4 literal",
			req:        primary.NavigationRequest{TabID: "1", URL: "http://10.0.0.1/"},
			wantReason: upgrade.ReasonIPLiteral,
		},
		{
			name:       "suppressed subdomain",
			req:        primary.NavigationRequest{TabID: "1", URL: "http://www.legacy.org/"},
			wantReason: upgrade.ReasonSuppressed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(&secondary.PreferenceRecord{SuppressedDomains: "legacy.org"})
			e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusComplete})

			d := e.svc.Decide(context.Background(), tt.req)

			assert.False(t, d.Upgrade)
			assert.Empty(t, d.NewURL)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, 0, e.tracker.Len())
		})
	}
}

func TestDecide_UpgradesTypedNavigation(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "7", URL: "https://start.org/", Status: secondary.TabStatusComplete})

	d := e.svc.Decide(context.Background(), primary.NavigationRequest{
		TabID:     "7",
		URL:       "http://example.com/path?q=1#frag",
		RequestID: "r1",
		Timestamp: t0,
	})

	assert.True(t, d.Upgrade)
	assert.Equal(t, "https://example.com/path?q=1#frag", d.NewURL)
	assert.Equal(t, upgrade.ReasonUpgraded, d.Reason)

	pending, ok := e.tracker.Lookup("7")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/path?q=1#frag", pending.TrackedURL)
	assert.Equal(t, 3, e.events.listeners())
}

func TestDecide_BlankTabTiming(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(e *engine)
		at          time.Time
		wantUpgrade bool
		wantReason  string
	}{
		{
			name: "fresh tab opened externally",
			setup: func(e *engine) {
				e.svc.TabCreated(primary.TabCreatedEvent{TabID: "1", Active: true, At: t0})
			},
			at:         t0.Add(50 * time.Millisecond),
			wantReason: upgrade.ReasonFreshTab,
		},
		{
			name: "user typed into a new tab",
			setup: func(e *engine) {
				e.svc.TabCreated(primary.TabCreatedEvent{TabID: "1", Active: true, At: t0})
			},
			at:          t0.Add(500 * time.Millisecond),
			wantUpgrade: true,
			wantReason:  upgrade.ReasonUpgraded,
		},
		{
			name: "restored session",
			setup: func(e *engine) {
				e.svc.TabCreated(primary.TabCreatedEvent{TabID: "1", At: t0})
				e.svc.TabActivated("1", t0.Add(5*time.Second))
			},
			at:         t0.Add(5*time.Second + 400*time.Millisecond),
			wantReason: upgrade.ReasonRestoredSession,
		},
		{
			name: "activation long ago",
			setup: func(e *engine) {
				e.svc.TabCreated(primary.TabCreatedEvent{TabID: "1", At: t0})
				e.svc.TabActivated("1", t0.Add(5*time.Second))
			},
			at:          t0.Add(7 * time.Second),
			wantUpgrade: true,
			wantReason:  upgrade.ReasonUpgraded,
		},
		{
			name:       "no timing record",
			setup:      func(e *engine) {},
			at:         t0,
			wantReason: upgrade.ReasonUntrackedTab,
		},
		{
			name: "activation seen without creation",
			setup: func(e *engine) {
				e.svc.TabActivated("1", t0)
			},
			at:         t0.Add(2 * time.Second),
			wantReason: upgrade.ReasonUntrackedTab,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(nil)
			e.tabs.put(secondary.TabInfo{ID: "1", URL: "about:blank", Status: secondary.TabStatusComplete})
			tt.setup(e)

			d := e.svc.Decide(context.Background(), primary.NavigationRequest{
				TabID:     "1",
				URL:       "http://example.com/",
				RequestID: "r1",
				Timestamp: tt.at,
			})

			assert.Equal(t, tt.wantUpgrade, d.Upgrade)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestDecide_LastAccessedFallback(t *testing.T) {
	e := newTestEngine(nil)
	e.svc.TabCreated(primary.TabCreatedEvent{TabID: "1", At: t0})
	e.tabs.put(secondary.TabInfo{
		ID:           "1",
		URL:          "about:newtab",
		Status:       secondary.TabStatusComplete,
		LastAccessed: t0.Add(10 * time.Second),
	})

	d := e.svc.Decide(context.Background(), primary.NavigationRequest{
		TabID:     "1",
		URL:       "http://example.com/",
		Timestamp: t0.Add(10*time.Second + 200*time.Millisecond),
	})

	assert.False(t, d.Upgrade)
	assert.Equal(t, upgrade.ReasonRestoredSession, d.Reason)
}

func TestDecide_DerivedURL(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "http://example.com/a", Status: secondary.TabStatusComplete})

	d := e.svc.Decide(context.Background(), primary.NavigationRequest{TabID: "1", URL: "http://example.com/b"})

	assert.False(t, d.Upgrade)
	assert.Equal(t, upgrade.ReasonDerivedURL, d.Reason)
}

func TestDecide_RedirectedUpgradeIsNotRetried(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusLoading})
	ctx := context.Background()

	d := e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r1"})
	require.True(t, d.Upgrade)

	// Server bounces the upgrade back to plaintext.
	e.events.emitHeaders(secondary.HeadersEvent{TabID: "1", RequestID: "r2", URL: "https://example.com/", StatusCode: 302})

	pending, ok := e.tracker.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "r2", pending.RetriedRequestID)

	d = e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r2"})
	assert.False(t, d.Upgrade)
	assert.Equal(t, upgrade.ReasonRetriedRedirect, d.Reason)
}

func TestDecide_ForcedPlaintextWhileLoading(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusLoading})
	ctx := context.Background()

	d := e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r1"})
	require.True(t, d.Upgrade)

	d = e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r3"})
	assert.False(t, d.Upgrade)
	assert.Equal(t, upgrade.ReasonForcedPlaintext, d.Reason)
}

func TestDecide_ErrorSettlesAndRearms(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusLoading})
	ctx := context.Background()

	d := e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r1"})
	require.True(t, d.Upgrade)

	// An error on an unrelated URL leaves the tracker alone.
	e.events.emitError(secondary.ErrorEvent{TabID: "1", RequestID: "x", URL: "https://cdn.example.net/app.js", Error: "net::ERR_FAILED"})
	_, ok := e.tracker.Lookup("1")
	require.True(t, ok)

	e.events.emitError(secondary.ErrorEvent{TabID: "1", RequestID: "r1", URL: "https://example.com/", Error: "net::ERR_CONNECTION_REFUSED"})
	_, ok = e.tracker.Lookup("1")
	assert.False(t, ok)
	assert.Equal(t, 0, e.events.listeners())

	d = e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r4"})
	assert.True(t, d.Upgrade)
	assert.Equal(t, 3, e.events.listeners())
}

func TestDecide_TabResolution(t *testing.T) {
	t.Run("found after misses", func(t *testing.T) {
		e := newTestEngine(nil)
		e.tabs.put(secondary.TabInfo{ID: "1", URL: "http://example.com/a", Status: secondary.TabStatusComplete})
		e.tabs.missesOf["1"] = 2
		var slept int
		e.svc.sleep = func(ctx context.Context, d time.Duration) error {
			slept++
			return nil
		}

		d := e.svc.Decide(context.Background(), primary.NavigationRequest{TabID: "1", URL: "http://example.com/b"})

		assert.Equal(t, upgrade.ReasonDerivedURL, d.Reason)
		assert.Equal(t, 2, slept)
		assert.Equal(t, 3, e.tabs.getCalls)
	})

	t.Run("unresolved proceeds as unknown", func(t *testing.T) {
		e := newTestEngine(nil)
		e.svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }

		d := e.svc.Decide(context.Background(), primary.NavigationRequest{TabID: "9", URL: "http://example.com/"})

		assert.True(t, d.Upgrade)
		assert.Equal(t, int(TabResolveTimeout/TabResolveInterval)+1, e.tabs.getCalls)
	})

	t.Run("host failure stops polling", func(t *testing.T) {
		e := newTestEngine(nil)
		e.tabs.getErr = errors.New("browser gone")

		d := e.svc.Decide(context.Background(), primary.NavigationRequest{TabID: "9", URL: "http://example.com/"})

		assert.True(t, d.Upgrade)
		assert.Equal(t, 1, e.tabs.getCalls)
	})
}

func TestDecide_PreferencesUnavailable(t *testing.T) {
	store := newMockPreferenceStore(nil)
	logger := logging.NewNop()
	prefs := NewPreferenceService(store, logger, nil)
	tracker := NewRedirectTracker(newMockResponseEvents(), logger, nil)
	svc := NewUpgradeService(prefs, newMockTabSource(), NewTabLedger(), tracker, nil, logger, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	d := svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/"})

	assert.False(t, d.Upgrade)
	assert.Equal(t, upgrade.ReasonPreferenceFailed, d.Reason)
}

func TestDecide_SuppressionFollowsPreferenceChange(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusComplete})
	ctx := context.Background()

	e.store.emit(secondary.PreferenceChange{Key: secondary.PrefSuppressedDomains, NewValue: "example.com"})

	d := e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://shop.example.com/"})
	assert.Equal(t, upgrade.ReasonSuppressed, d.Reason)

	e.store.emit(secondary.PreferenceChange{Key: secondary.PrefSuppressedDomains, OldValue: "example.com", NewValue: ""})

	d = e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://shop.example.com/"})
	assert.True(t, d.Upgrade)
}

func TestDecide_RecordsAudit(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusComplete})
	ctx := context.Background()

	e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://example.com/", RequestID: "r1", Timestamp: t0})
	e.svc.Decide(ctx, primary.NavigationRequest{TabID: "1", URL: "http://intranet/", RequestID: "r2", Timestamp: t0})

	require.Len(t, e.audit.records, 2)
	first := e.audit.records[0]
	assert.NotEmpty(t, first.ID)
	assert.True(t, first.Upgraded)
	assert.Equal(t, "https://example.com/", first.NewURL)
	assert.Equal(t, t0, first.DecidedAt)

	second := e.audit.records[1]
	assert.False(t, second.Upgraded)
	assert.Equal(t, upgrade.ReasonNoTLD, second.Reason)
}

func TestDecide_AuditFailureDoesNotChangeDecision(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusComplete})
	e.audit.recordErr = errors.New("disk full")

	d := e.svc.Decide(context.Background(), primary.NavigationRequest{TabID: "1", URL: "http://example.com/"})

	assert.True(t, d.Upgrade)
}

func TestTabRemoved_SettlesTracker(t *testing.T) {
	e := newTestEngine(nil)
	e.svc.TabCreated(primary.TabCreatedEvent{TabID: "1", At: t0})
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "https://start.org/", Status: secondary.TabStatusComplete})

	d := e.svc.Decide(context.Background(), primary.NavigationRequest{TabID: "1", URL: "http://example.com/"})
	require.True(t, d.Upgrade)

	e.svc.TabRemoved("1")

	assert.Equal(t, 0, e.tracker.Len())
	assert.Equal(t, 0, e.events.listeners())
	_, ok := e.ledger.Lookup("1")
	assert.False(t, ok)
}

func TestBootstrap(t *testing.T) {
	e := newTestEngine(nil)
	e.svc.SetClock(func() time.Time { return t0 })
	e.tabs.put(secondary.TabInfo{ID: "1", URL: "about:blank", Active: true})
	e.tabs.put(secondary.TabInfo{ID: "2", URL: "https://a.org/", LastAccessed: t0.Add(-time.Hour)})

	require.NoError(t, e.svc.Bootstrap(context.Background()))

	rec, ok := e.ledger.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, t0, rec.CreatedAt)
	assert.Equal(t, t0, rec.LastActivatedAt)

	rec, ok = e.ledger.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, t0.Add(-time.Hour), rec.CreatedAt)
	assert.True(t, rec.LastActivatedAt.IsZero())
}

func TestBootstrap_QueryError(t *testing.T) {
	e := newTestEngine(nil)
	e.tabs.queryErr = errors.New("no browser")

	err := e.svc.Bootstrap(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 0, e.ledger.Len())
}
