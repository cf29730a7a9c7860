package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/autohttps/internal/ports/secondary"
)

// DecisionRepository implements secondary.DecisionRepository with SQLite.
type DecisionRepository struct {
	db *sql.DB
}

// NewDecisionRepository creates a new SQLite decision repository.
func NewDecisionRepository(db *sql.DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Record appends one decision.
func (r *DecisionRepository) Record(ctx context.Context, d *secondary.DecisionRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decisions (id, tab_id, request_id, url, new_url, upgraded, reason, decided_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.TabID, d.RequestID, d.URL, d.NewURL, d.Upgraded, d.Reason, d.DecidedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}
	return nil
}

// List retrieves decisions matching the given filters, newest first.
func (r *DecisionRepository) List(ctx context.Context, filters secondary.DecisionFilters) ([]*secondary.DecisionRecord, error) {
	query := "SELECT id, tab_id, request_id, url, new_url, upgraded, reason, decided_at FROM decisions"
	var conditions []string
	var args []any

	if filters.TabID != "" {
		conditions = append(conditions, "tab_id = ?")
		args = append(args, filters.TabID)
	}
	if filters.Upgraded != nil {
		conditions = append(conditions, "upgraded = ?")
		args = append(args, *filters.Upgraded)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY decided_at DESC, rowid DESC"
	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var records []*secondary.DecisionRecord
	for rows.Next() {
		record := &secondary.DecisionRecord{}
		if err := rows.Scan(
			&record.ID, &record.TabID, &record.RequestID, &record.URL, &record.NewURL,
			&record.Upgraded, &record.Reason, &record.DecidedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// Prune deletes decisions made before olderThan.
func (r *DecisionRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM decisions WHERE decided_at < ?", olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune decisions: %w", err)
	}
	return result.RowsAffected()
}

// Ensure DecisionRepository implements the interface
var _ secondary.DecisionRepository = (*DecisionRepository)(nil)
