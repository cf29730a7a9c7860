package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// DecisionLogServiceImpl implements the DecisionLogService interface.
type DecisionLogServiceImpl struct {
	decisionRepo secondary.DecisionRepository
	now          func() time.Time
}

// NewDecisionLogService creates a new DecisionLogService with injected dependencies.
func NewDecisionLogService(decisionRepo secondary.DecisionRepository) *DecisionLogServiceImpl {
	return &DecisionLogServiceImpl{
		decisionRepo: decisionRepo,
		now:          time.Now,
	}
}

// ListDecisions retrieves decisions matching the given filters.
func (s *DecisionLogServiceImpl) ListDecisions(ctx context.Context, filters primary.DecisionLogFilters) ([]*primary.DecisionEntry, error) {
	repoFilters := secondary.DecisionFilters{
		TabID: filters.TabID,
		Limit: filters.Limit,
	}
	if filters.UpgradedOnly {
		upgraded := true
		repoFilters.Upgraded = &upgraded
	}

	records, err := s.decisionRepo.List(ctx, repoFilters)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	entries := make([]*primary.DecisionEntry, len(records))
	for i, r := range records {
		entries[i] = s.recordToEntry(r)
	}
	return entries, nil
}

// PruneDecisions deletes decisions older than the given age.
func (s *DecisionLogServiceImpl) PruneDecisions(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("prune age must be positive, got %s", olderThan)
	}
	return s.decisionRepo.Prune(ctx, s.now().Add(-olderThan))
}

// Helper methods

func (s *DecisionLogServiceImpl) recordToEntry(r *secondary.DecisionRecord) *primary.DecisionEntry {
	return &primary.DecisionEntry{
		ID:        r.ID,
		TabID:     r.TabID,
		URL:       r.URL,
		NewURL:    r.NewURL,
		Upgraded:  r.Upgraded,
		Reason:    r.Reason,
		DecidedAt: r.DecidedAt,
	}
}

// Ensure DecisionLogServiceImpl implements the interface
var _ primary.DecisionLogService = (*DecisionLogServiceImpl)(nil)
