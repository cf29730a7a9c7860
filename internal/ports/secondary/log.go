package secondary

import (
	"context"
	"time"
)

// DecisionLogWriter defines the interface for writing decision audit entries.
type DecisionLogWriter interface {
	// Record appends one decision. Implementations assign ID and DecidedAt
	// when they are empty.
	Record(ctx context.Context, record *DecisionRecord) error
}

// DecisionRepository defines the secondary port for the decision audit trail.
type DecisionRepository interface {
	DecisionLogWriter

	// List retrieves decisions newest first.
	List(ctx context.Context, filters DecisionFilters) ([]*DecisionRecord, error)

	// Prune deletes decisions older than the cutoff and returns the count.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// DecisionRecord represents one navigation decision as stored in persistence.
type DecisionRecord struct {
	ID        string
	TabID     string
	RequestID string
	URL       string
	NewURL    string // Empty when not upgraded
	Upgraded  bool
	Reason    string
	DecidedAt time.Time
}

// DecisionFilters contains filter options for querying decisions.
type DecisionFilters struct {
	TabID    string
	Upgraded *bool
	Limit    int
}
