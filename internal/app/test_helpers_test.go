package app

import (
	"context"
	"sync"
	"time"

	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/ports/secondary"
)

// Ensure mocks implement the interfaces
var (
	_ secondary.PreferenceStore    = (*mockPreferenceStore)(nil)
	_ secondary.PreferenceWriter   = (*mockPreferenceStore)(nil)
	_ secondary.TabSource          = (*mockTabSource)(nil)
	_ secondary.ResponseEvents     = (*mockResponseEvents)(nil)
	_ secondary.DecisionRepository = (*mockDecisionRepository)(nil)
)

// mockPreferenceStore implements secondary.PreferenceStore for testing.
type mockPreferenceStore struct {
	mu           sync.Mutex
	record       *secondary.PreferenceRecord
	loadErr      error
	watchErr     error
	setErr       error
	watchFn      func(secondary.PreferenceChange)
	unsubscribed bool
	sets         map[string]string
}

func newMockPreferenceStore(record *secondary.PreferenceRecord) *mockPreferenceStore {
	if record == nil {
		record = &secondary.PreferenceRecord{}
	}
	return &mockPreferenceStore{record: record, sets: make(map[string]string)}
}

func (m *mockPreferenceStore) Load(ctx context.Context) (*secondary.PreferenceRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	rec := *m.record
	return &rec, nil
}

func (m *mockPreferenceStore) Watch(ctx context.Context, fn func(secondary.PreferenceChange)) (secondary.Subscription, error) {
	if m.watchErr != nil {
		return nil, m.watchErr
	}
	m.mu.Lock()
	m.watchFn = fn
	m.mu.Unlock()
	return secondary.SubscriptionFunc(func() {
		m.mu.Lock()
		m.unsubscribed = true
		m.watchFn = nil
		m.mu.Unlock()
	}), nil
}

func (m *mockPreferenceStore) Set(ctx context.Context, key, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.sets[key] = value
	return nil
}

// emit delivers a change to the registered watcher, if any.
func (m *mockPreferenceStore) emit(change secondary.PreferenceChange) {
	m.mu.Lock()
	fn := m.watchFn
	m.mu.Unlock()
	if fn != nil {
		fn(change)
	}
}

// mockTabSource implements secondary.TabSource for testing.
type mockTabSource struct {
	mu       sync.Mutex
	tabs     map[string]*secondary.TabInfo
	missesOf map[string]int // Get returns ErrTabNotFound this many times first
	getErr   error
	queryErr error
	getCalls int
}

func newMockTabSource() *mockTabSource {
	return &mockTabSource{
		tabs:     make(map[string]*secondary.TabInfo),
		missesOf: make(map[string]int),
	}
}

func (m *mockTabSource) put(tab secondary.TabInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[tab.ID] = &tab
}

func (m *mockTabSource) Query(ctx context.Context) ([]secondary.TabInfo, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []secondary.TabInfo
	for _, t := range m.tabs {
		result = append(result, *t)
	}
	return result, nil
}

func (m *mockTabSource) Get(ctx context.Context, tabID string) (*secondary.TabInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.missesOf[tabID] > 0 {
		m.missesOf[tabID]--
		return nil, secondary.ErrTabNotFound
	}
	t, ok := m.tabs[tabID]
	if !ok {
		return nil, secondary.ErrTabNotFound
	}
	tab := *t
	return &tab, nil
}

// mockResponseEvents implements secondary.ResponseEvents for testing.
// Events are delivered synchronously to matching live handlers.
type mockResponseEvents struct {
	mu       sync.Mutex
	nextID   int
	headers  map[int]headersHandler
	started  map[int]startedHandler
	failures map[int]errorHandler
}

type headersHandler struct {
	filter secondary.EventFilter
	fn     func(secondary.HeadersEvent)
}

type startedHandler struct {
	filter secondary.EventFilter
	fn     func(secondary.ResponseStartedEvent)
}

type errorHandler struct {
	filter secondary.EventFilter
	fn     func(secondary.ErrorEvent)
}

func newMockResponseEvents() *mockResponseEvents {
	return &mockResponseEvents{
		headers:  make(map[int]headersHandler),
		started:  make(map[int]startedHandler),
		failures: make(map[int]errorHandler),
	}
}

func (m *mockResponseEvents) OnHeadersReceived(filter secondary.EventFilter, fn func(secondary.HeadersEvent)) secondary.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.headers[id] = headersHandler{filter, fn}
	return m.release(func() { delete(m.headers, id) })
}

func (m *mockResponseEvents) OnResponseStarted(filter secondary.EventFilter, fn func(secondary.ResponseStartedEvent)) secondary.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.started[id] = startedHandler{filter, fn}
	return m.release(func() { delete(m.started, id) })
}

func (m *mockResponseEvents) OnErrorOccurred(filter secondary.EventFilter, fn func(secondary.ErrorEvent)) secondary.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.failures[id] = errorHandler{filter, fn}
	return m.release(func() { delete(m.failures, id) })
}

func (m *mockResponseEvents) release(drop func()) secondary.Subscription {
	return secondary.SubscriptionFunc(func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		drop()
	})
}

func (m *mockResponseEvents) emitHeaders(ev secondary.HeadersEvent) {
	m.mu.Lock()
	var fns []func(secondary.HeadersEvent)
	for _, h := range m.headers {
		if h.filter.Matches(ev.TabID, ev.URL) {
			fns = append(fns, h.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *mockResponseEvents) emitStarted(ev secondary.ResponseStartedEvent) {
	m.mu.Lock()
	var fns []func(secondary.ResponseStartedEvent)
	for _, h := range m.started {
		if h.filter.Matches(ev.TabID, ev.URL) {
			fns = append(fns, h.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *mockResponseEvents) emitError(ev secondary.ErrorEvent) {
	m.mu.Lock()
	var fns []func(secondary.ErrorEvent)
	for _, h := range m.failures {
		if h.filter.Matches(ev.TabID, ev.URL) {
			fns = append(fns, h.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// listeners returns the number of live handlers across all three streams.
func (m *mockResponseEvents) listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.headers) + len(m.started) + len(m.failures)
}

// mockDecisionRepository implements secondary.DecisionRepository for testing.
type mockDecisionRepository struct {
	mu        sync.Mutex
	records   []*secondary.DecisionRecord
	recordErr error
	listErr   error
	prunedAt  time.Time
	pruneN    int64
}

func newMockDecisionRepository() *mockDecisionRepository {
	return &mockDecisionRepository{}
}

func (m *mockDecisionRepository) Record(ctx context.Context, record *secondary.DecisionRecord) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockDecisionRepository) List(ctx context.Context, filters secondary.DecisionFilters) ([]*secondary.DecisionRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.DecisionRecord
	for _, r := range m.records {
		if filters.TabID != "" && r.TabID != filters.TabID {
			continue
		}
		if filters.Upgraded != nil && r.Upgraded != *filters.Upgraded {
			continue
		}
		result = append(result, r)
	}

	// Apply limit
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

func (m *mockDecisionRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	m.prunedAt = olderThan
	return m.pruneN, nil
}

// engine bundles an UpgradeServiceImpl with its collaborators.
type engine struct {
	svc     *UpgradeServiceImpl
	prefs   *PreferenceService
	store   *mockPreferenceStore
	tabs    *mockTabSource
	events  *mockResponseEvents
	ledger  *TabLedger
	tracker *RedirectTracker
	audit   *mockDecisionRepository
}

// newTestEngine wires an engine over mocks with preferences already loaded.
func newTestEngine(record *secondary.PreferenceRecord) *engine {
	logger := logging.NewNop()
	e := &engine{
		store:  newMockPreferenceStore(record),
		tabs:   newMockTabSource(),
		events: newMockResponseEvents(),
		ledger: NewTabLedger(),
		audit:  newMockDecisionRepository(),
	}
	e.prefs = NewPreferenceService(e.store, logger, nil)
	if err := e.prefs.Start(context.Background()); err != nil {
		panic(err)
	}
	e.tracker = NewRedirectTracker(e.events, logger, nil)
	e.svc = NewUpgradeService(e.prefs, e.tabs, e.ledger, e.tracker, e.audit, logger, nil)
	e.svc.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}
