package replay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// Engine is the part of the application a host drives.
type Engine interface {
	primary.UpgradeService
	primary.TabEvents
}

// TrackingInspector reports whether a tab has an outstanding upgrade.
type TrackingInspector interface {
	HasPendingRedirect(tabID string) bool
}

// Publisher receives response-phase events.
type Publisher interface {
	PublishHeaders(ev secondary.HeadersEvent)
	PublishResponseStarted(ev secondary.ResponseStartedEvent)
	PublishError(ev secondary.ErrorEvent)
}

type tab struct {
	info   secondary.TabInfo
	hidden bool
}

// Host plays a scenario. It is the engine's TabSource while it runs.
type Host struct {
	scenario  *Scenario
	publisher Publisher
	clock     *Clock
	prefs     *ScenarioPreferences

	mu   sync.Mutex
	tabs map[string]*tab
}

// NewHost prepares sc for replay. Tabs listed in the scenario exist immediately.
func NewHost(sc *Scenario, publisher Publisher) *Host {
	h := &Host{
		scenario:  sc,
		publisher: publisher,
		clock:     NewClock(sc.Start),
		prefs:     NewScenarioPreferences(sc.Preferences),
		tabs:      make(map[string]*tab),
	}
	for _, spec := range sc.Tabs {
		h.tabs[spec.ID] = &tab{info: spec.info(sc.Start), hidden: spec.Hidden}
	}
	return h
}

// Clock returns the virtual clock.
func (h *Host) Clock() *Clock {
	return h.clock
}

// Preferences returns the scenario's preference store.
func (h *Host) Preferences() *ScenarioPreferences {
	return h.prefs
}

// Query returns every visible tab.
func (h *Host) Query(ctx context.Context) ([]secondary.TabInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var result []secondary.TabInfo
	for _, t := range h.tabs {
		if !t.hidden {
			result = append(result, t.info)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Get returns one visible tab.
func (h *Host) Get(ctx context.Context, tabID string) (*secondary.TabInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tabs[tabID]
	if !ok || t.hidden {
		return nil, secondary.ErrTabNotFound
	}
	info := t.info
	return &info, nil
}

// Run bootstraps engine and plays every step in order.
func (h *Host) Run(ctx context.Context, engine Engine) (*Report, error) {
	if err := engine.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap: %w", err)
	}

	report := &Report{Name: h.scenario.Name}
	for i, step := range h.scenario.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		h.clock.Set(h.scenario.Start.Add(step.At))

		result := StepResult{Step: i + 1, At: step.At, Kind: step.Kind()}
		h.apply(ctx, engine, step, &result)
		if result.Failure != "" {
			report.Failures++
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

func (h *Host) apply(ctx context.Context, engine Engine, step Step, result *StepResult) {
	now := h.clock.Now()

	switch {
	case step.TabCreated != nil:
		spec := step.TabCreated
		h.mu.Lock()
		if spec.Active {
			h.deactivateLocked()
		}
		h.tabs[spec.ID] = &tab{info: spec.info(now), hidden: spec.Hidden}
		h.mu.Unlock()
		engine.TabCreated(primary.TabCreatedEvent{TabID: spec.ID, Active: spec.Active, At: now})

	case step.TabActivated != nil:
		h.mu.Lock()
		h.deactivateLocked()
		if t, ok := h.tabs[step.TabActivated.ID]; ok {
			t.info.Active = true
			t.info.LastAccessed = now
		}
		h.mu.Unlock()
		engine.TabActivated(step.TabActivated.ID, now)

	case step.TabUpdated != nil:
		spec := step.TabUpdated
		h.mu.Lock()
		if t, ok := h.tabs[spec.ID]; ok {
			if spec.URL != "" {
				t.info.URL = spec.URL
			}
			t.info.Status = statusOf(spec.Loading)
		}
		h.mu.Unlock()

	case step.TabRemoved != nil:
		h.mu.Lock()
		delete(h.tabs, step.TabRemoved.ID)
		h.mu.Unlock()
		engine.TabRemoved(step.TabRemoved.ID)

	case step.Reveal != nil:
		h.mu.Lock()
		if t, ok := h.tabs[step.Reveal.ID]; ok {
			t.hidden = false
		}
		h.mu.Unlock()

	case step.Navigate != nil:
		h.navigate(ctx, engine, step, now, result)

	case step.Headers != nil:
		r := step.Headers
		h.publisher.PublishHeaders(secondary.HeadersEvent{TabID: r.Tab, RequestID: r.Request, URL: r.URL, StatusCode: r.Status})

	case step.ResponseStarted != nil:
		r := step.ResponseStarted
		h.mu.Lock()
		if t, ok := h.tabs[r.Tab]; ok {
			if r.URL != "" {
				t.info.URL = r.URL
			}
			t.info.Status = secondary.TabStatusComplete
		}
		h.mu.Unlock()
		h.publisher.PublishResponseStarted(secondary.ResponseStartedEvent{TabID: r.Tab, RequestID: r.Request, URL: r.URL, StatusCode: r.Status})

	case step.Error != nil:
		e := step.Error
		h.mu.Lock()
		if t, ok := h.tabs[e.Tab]; ok {
			t.info.Status = secondary.TabStatusComplete
		}
		h.mu.Unlock()
		h.publisher.PublishError(secondary.ErrorEvent{TabID: e.Tab, RequestID: e.Request, URL: e.URL, Error: e.Error})

	case step.SetPreferences != nil:
		h.prefs.Replace(*step.SetPreferences)
	}

	if step.ExpectTracking != nil {
		inspector, ok := engine.(TrackingInspector)
		if !ok {
			result.Failure = "engine does not expose tracking state"
			return
		}
		got := inspector.HasPendingRedirect(step.ExpectTracking.Tab)
		if got != step.ExpectTracking.Present {
			result.Failure = fmt.Sprintf("tab %s tracking present = %v, want %v", step.ExpectTracking.Tab, got, step.ExpectTracking.Present)
		}
	}
}

func (h *Host) navigate(ctx context.Context, engine Engine, step Step, now time.Time, result *StepResult) {
	nav := step.Navigate
	requestID := nav.Request
	if requestID == "" {
		requestID = uuid.NewString()
	}

	decision := engine.Decide(ctx, primary.NavigationRequest{
		TabID:     nav.Tab,
		URL:       nav.URL,
		RequestID: requestID,
		OriginURL: nav.Origin,
		Timestamp: now,
	})
	result.Decision = &decision
	result.RequestID = requestID

	h.mu.Lock()
	if t, ok := h.tabs[nav.Tab]; ok {
		t.info.Status = secondary.TabStatusLoading
	}
	h.mu.Unlock()

	if want := step.Expect; want != nil {
		result.Failure = want.check(decision)
	}
}

func (h *Host) deactivateLocked() {
	for _, t := range h.tabs {
		t.info.Active = false
	}
}

func (spec TabSpec) info(at time.Time) secondary.TabInfo {
	return secondary.TabInfo{
		ID:           spec.ID,
		URL:          spec.URL,
		Status:       statusOf(spec.Loading),
		Active:       spec.Active,
		LastAccessed: at,
	}
}

func statusOf(loading bool) secondary.TabStatus {
	if loading {
		return secondary.TabStatusLoading
	}
	return secondary.TabStatusComplete
}

func (e *Expectation) check(d primary.Decision) string {
	if d.Upgrade != e.Upgrade {
		return fmt.Sprintf("upgrade = %v (%s), want %v", d.Upgrade, d.Reason, e.Upgrade)
	}
	if e.Reason != "" && d.Reason != e.Reason {
		return fmt.Sprintf("reason = %s, want %s", d.Reason, e.Reason)
	}
	if e.URL != "" && d.NewURL != e.URL {
		return fmt.Sprintf("url = %s, want %s", d.NewURL, e.URL)
	}
	return ""
}

// Ensure Host implements the interface
var _ secondary.TabSource = (*Host)(nil)
