package secondary

import (
	"context"
	"errors"
	"time"
)

// ErrTabNotFound is returned by TabSource.Get for a tab that does not exist
// yet or has already closed.
var ErrTabNotFound = errors.New("tab not found")

// TabStatus is the loading state of a tab.
type TabStatus string

const (
	TabStatusLoading  TabStatus = "loading"
	TabStatusComplete TabStatus = "complete"
)

// TabSource defines the secondary port for querying browser tabs.
type TabSource interface {
	// Query returns every open tab. Used to bootstrap the timing ledger.
	Query(ctx context.Context) ([]TabInfo, error)

	// Get returns the live state of one tab, or ErrTabNotFound.
	Get(ctx context.Context, tabID string) (*TabInfo, error)
}

// TabInfo is a snapshot of one browser tab.
type TabInfo struct {
	ID           string
	URL          string
	Status       TabStatus
	Active       bool
	LastAccessed time.Time // Zero when the host does not report it
}
