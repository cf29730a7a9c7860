package primary

import (
	"context"
	"time"
)

// DecisionLogService defines the primary port for the decision audit trail.
type DecisionLogService interface {
	// ListDecisions lists recent decisions, newest first.
	ListDecisions(ctx context.Context, filters DecisionLogFilters) ([]*DecisionEntry, error)

	// PruneDecisions deletes decisions older than the given age.
	PruneDecisions(ctx context.Context, olderThan time.Duration) (int64, error)
}

// DecisionLogFilters contains filter options for listing decisions.
type DecisionLogFilters struct {
	TabID        string
	UpgradedOnly bool
	Limit        int
}

// DecisionEntry is one audited decision.
type DecisionEntry struct {
	ID        string
	TabID     string
	URL       string
	NewURL    string
	Upgraded  bool
	Reason    string
	DecidedAt time.Time
}
