package app

import (
	"sync"
	"time"
)

// TabTiming is the ledger's record for one tab.
type TabTiming struct {
	CreatedAt       time.Time // Zero when only an activation has been seen
	LastActivatedAt time.Time // Zero until the tab is activated
}

// HasCreation reports whether the tab's creation was observed.
func (t TabTiming) HasCreation() bool {
	return !t.CreatedAt.IsZero()
}

// TabLedger records per-tab creation and activation times for the lifetime of
// the process.
type TabLedger struct {
	mu   sync.Mutex
	tabs map[string]TabTiming
}

// NewTabLedger creates an empty ledger.
func NewTabLedger() *TabLedger {
	return &TabLedger{tabs: make(map[string]TabTiming)}
}

// Created records a tab creation. A tab created active is also activated.
func (l *TabLedger) Created(tabID string, at time.Time, active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.tabs[tabID]
	rec.CreatedAt = at
	if active {
		rec.LastActivatedAt = at
	}
	l.tabs[tabID] = rec
}

// Activated records that tabID became the active tab.
func (l *TabLedger) Activated(tabID string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.tabs[tabID]
	rec.LastActivatedAt = at
	l.tabs[tabID] = rec
}

// Removed forgets tabID.
func (l *TabLedger) Removed(tabID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tabs, tabID)
}

// Lookup returns a copy of the record for tabID.
func (l *TabLedger) Lookup(tabID string) (TabTiming, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.tabs[tabID]
	return rec, ok
}

// Len returns the number of tabs with a record.
func (l *TabLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tabs)
}
