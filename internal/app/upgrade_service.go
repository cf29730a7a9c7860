// Package app contains the application layer - service implementations for the upgrade engine.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/autohttps/internal/core/upgrade"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/metrics"
	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// Tab resolution polls TabSource.Get until the tab appears or the budget runs out.
const (
	TabResolveTimeout  = 200 * time.Millisecond
	TabResolveInterval = 20 * time.Millisecond
)

// UpgradeServiceImpl implements the UpgradeService and TabEvents interfaces.
type UpgradeServiceImpl struct {
	prefs   *PreferenceService
	tabs    secondary.TabSource
	ledger  *TabLedger
	tracker *RedirectTracker
	audit   secondary.DecisionLogWriter
	logger  *logging.Logger
	metrics *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewUpgradeService creates a new UpgradeService with injected dependencies.
// audit may be nil.
func NewUpgradeService(
	prefs *PreferenceService,
	tabs secondary.TabSource,
	ledger *TabLedger,
	tracker *RedirectTracker,
	audit secondary.DecisionLogWriter,
	logger *logging.Logger,
	m *metrics.Metrics,
) *UpgradeServiceImpl {
	return &UpgradeServiceImpl{
		prefs:   prefs,
		tabs:    tabs,
		ledger:  ledger,
		tracker: tracker,
		audit:   audit,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// SetClock replaces the service's time source. Used by the replay host.
func (s *UpgradeServiceImpl) SetClock(now func() time.Time) {
	s.now = now
}

// Decide runs the decision engine for one intercepted navigation.
func (s *UpgradeServiceImpl) Decide(ctx context.Context, req primary.NavigationRequest) primary.Decision {
	decision := s.decide(ctx, req)
	s.record(ctx, req, decision)
	return decision
}

func (s *UpgradeServiceImpl) decide(ctx context.Context, req primary.NavigationRequest) primary.Decision {
	now := req.Timestamp
	if now.IsZero() {
		now = s.now()
	}

	if r := upgrade.CanUpgradeNavigation(upgrade.NavigationContext{
		OriginURL: req.OriginURL,
		TabID:     req.TabID,
	}); !r.Allowed {
		return passThrough(r.Reason)
	}

	prefs, err := s.prefs.Current(ctx)
	if err != nil {
		s.logger.Warn("preferences unavailable, leaving navigation unmodified",
			zap.String("url", req.URL), zap.Error(err))
		return passThrough(upgrade.ReasonPreferenceFailed)
	}

	if r := upgrade.ShouldRedirectToHTTPS(req.URL, prefs.Suppressed); !r.Allowed {
		return passThrough(r.Reason)
	}

	tab := s.resolveTab(ctx, req.TabID)

	if tab != nil && upgrade.IsPlaceholderURL(tab.URL) {
		rec, ok := s.ledger.Lookup(req.TabID)
		activated := rec.LastActivatedAt
		if activated.IsZero() {
			activated = tab.LastAccessed
		}
		if r := upgrade.CanUpgradeBlankTab(upgrade.BlankTabContext{
			HasRecord:       ok && rec.HasCreation(),
			CreatedAt:       rec.CreatedAt,
			LastActivatedAt: activated,
			Now:             now,
		}); !r.Allowed {
			return passThrough(r.Reason)
		}
	}

	if tab != nil && upgrade.IsDerivedURL(tab.URL, req.URL) {
		return passThrough(upgrade.ReasonDerivedURL)
	}

	newURL := upgrade.UpgradeURL(req.URL)
	pending, hasPending := s.tracker.Lookup(req.TabID)
	if r := upgrade.CanUpgradeWithPending(upgrade.PendingContext{
		HasPending:       hasPending,
		TrackedURL:       pending.TrackedURL,
		RetriedRequestID: pending.RetriedRequestID,
		RequestID:        req.RequestID,
		UpgradedURL:      newURL,
		TabLoading:       tab != nil && tab.Status == secondary.TabStatusLoading,
	}); !r.Allowed {
		return passThrough(r.Reason)
	}

	s.tracker.Arm(req.TabID, newURL)
	return primary.Decision{Upgrade: true, NewURL: newURL, Reason: upgrade.ReasonUpgraded}
}

// resolveTab polls for the tab. A nil result means the tab is unresolved.
func (s *UpgradeServiceImpl) resolveTab(ctx context.Context, tabID string) *secondary.TabInfo {
	attempts := int(TabResolveTimeout/TabResolveInterval) + 1
	for i := 0; i < attempts; i++ {
		tab, err := s.tabs.Get(ctx, tabID)
		if err == nil {
			return tab
		}
		if !errors.Is(err, secondary.ErrTabNotFound) {
			s.logger.Warn("tab lookup failed", zap.String("tab", tabID), zap.Error(err))
			return nil
		}
		if i == attempts-1 {
			break
		}
		if err := s.sleep(ctx, TabResolveInterval); err != nil {
			return nil
		}
	}
	s.logger.Debug("tab unresolved", zap.String("tab", tabID))
	return nil
}

func (s *UpgradeServiceImpl) record(ctx context.Context, req primary.NavigationRequest, d primary.Decision) {
	s.metrics.ObserveDecision(d.Upgrade, d.Reason)
	s.logger.Debug("navigation decided",
		zap.String("tab", req.TabID),
		zap.String("request", req.RequestID),
		zap.String("url", req.URL),
		zap.Bool("upgrade", d.Upgrade),
		zap.String("reason", d.Reason))

	if s.audit == nil {
		return
	}
	decidedAt := req.Timestamp
	if decidedAt.IsZero() {
		decidedAt = s.now()
	}
	err := s.audit.Record(ctx, &secondary.DecisionRecord{
		ID:        uuid.NewString(),
		TabID:     req.TabID,
		RequestID: req.RequestID,
		URL:       req.URL,
		NewURL:    d.NewURL,
		Upgraded:  d.Upgrade,
		Reason:    d.Reason,
		DecidedAt: decidedAt,
	})
	if err != nil {
		s.logger.Warn("failed to record decision", zap.Error(err))
	}
}

// Bootstrap records every currently open tab.
func (s *UpgradeServiceImpl) Bootstrap(ctx context.Context) error {
	tabs, err := s.tabs.Query(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	for _, tab := range tabs {
		created := tab.LastAccessed
		if created.IsZero() {
			created = now
		}
		s.ledger.Created(tab.ID, created, tab.Active)
	}
	s.metrics.SetTrackedTabs(s.ledger.Len())
	return nil
}

// TabCreated records a new tab.
func (s *UpgradeServiceImpl) TabCreated(ev primary.TabCreatedEvent) {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	created := ev.LastAccessed
	if created.IsZero() {
		created = at
	}
	s.ledger.Created(ev.TabID, created, ev.Active)
	s.metrics.SetTrackedTabs(s.ledger.Len())
}

// TabActivated records that a tab became the active one.
func (s *UpgradeServiceImpl) TabActivated(tabID string, at time.Time) {
	if at.IsZero() {
		at = s.now()
	}
	s.ledger.Activated(tabID, at)
}

// TabRemoved forgets a tab and settles its outstanding upgrade.
func (s *UpgradeServiceImpl) TabRemoved(tabID string) {
	s.ledger.Removed(tabID)
	s.tracker.TabRemoved(tabID)
	s.metrics.SetTrackedTabs(s.ledger.Len())
}

// HasPendingRedirect reports whether tabID has an outstanding upgrade.
func (s *UpgradeServiceImpl) HasPendingRedirect(tabID string) bool {
	_, ok := s.tracker.Lookup(tabID)
	return ok
}

// Helper functions

func passThrough(reason string) primary.Decision {
	return primary.Decision{Upgrade: false, Reason: reason}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure UpgradeServiceImpl implements the interfaces
var (
	_ primary.UpgradeService = (*UpgradeServiceImpl)(nil)
	_ primary.TabEvents      = (*UpgradeServiceImpl)(nil)
)
