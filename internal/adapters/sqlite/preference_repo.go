// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/example/autohttps/internal/ports/secondary"
)

// DefaultPollInterval is how often Watch re-reads the preferences table.
const DefaultPollInterval = time.Second

// PreferenceRepository implements secondary.PreferenceStore and
// secondary.PreferenceWriter with SQLite.
type PreferenceRepository struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewPreferenceRepository creates a new SQLite preference repository.
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db, pollInterval: DefaultPollInterval}
}

// WithPollInterval sets how often Watch checks for committed changes.
func (r *PreferenceRepository) WithPollInterval(d time.Duration) *PreferenceRepository {
	r.pollInterval = d
	return r
}

// Load reads all stored preferences. Missing rows take their defaults.
func (r *PreferenceRepository) Load(ctx context.Context) (*secondary.PreferenceRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT key, value FROM preferences")
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	defer rows.Close()

	record := &secondary.PreferenceRecord{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		switch key {
		case secondary.PrefSuppressedDomains:
			record.SuppressedDomains = value
		case secondary.PrefLoggingEnabled:
			enabled, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("invalid stored value %q for %s: %w", value, key, err)
			}
			record.LoggingEnabled = enabled
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	return record, nil
}

// Set stores value under key.
func (r *PreferenceRepository) Set(ctx context.Context, key, value string) error {
	if !secondary.IsKnownPreference(key) {
		return fmt.Errorf("unknown preference %q", key)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}

	return nil
}

// Watch polls the table and reports every key whose value changed. Rows that
// cannot be read count as defaults until they are corrected.
func (r *PreferenceRepository) Watch(ctx context.Context, fn func(secondary.PreferenceChange)) (secondary.Subscription, error) {
	last, err := r.Load(ctx)
	if err != nil {
		last = &secondary.PreferenceRecord{}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
			}

			current, err := r.Load(ctx)
			if err != nil {
				// Keep the last good snapshot and try again on the next tick.
				continue
			}
			for _, change := range secondary.DiffPreferences(last, current) {
				fn(change)
			}
			last = current
		}
	}()

	var once sync.Once
	return secondary.SubscriptionFunc(func() {
		once.Do(func() { close(stop) })
		<-done
	}), nil
}

// Ensure PreferenceRepository implements the interfaces
var (
	_ secondary.PreferenceStore  = (*PreferenceRepository)(nil)
	_ secondary.PreferenceWriter = (*PreferenceRepository)(nil)
)
