// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"strconv"
)

// Preference keys shared by every PreferenceStore implementation.
const (
	PrefSuppressedDomains = "suppressed_domains"
	PrefLoggingEnabled    = "logging_enabled"
)

// PreferenceStore defines the secondary port for persisted user preferences.
type PreferenceStore interface {
	// Load reads the current preferences. Missing keys take their defaults.
	Load(ctx context.Context) (*PreferenceRecord, error)

	// Watch delivers one PreferenceChange per changed key until the
	// subscription is released or ctx is done.
	Watch(ctx context.Context, fn func(PreferenceChange)) (Subscription, error)
}

// PreferenceWriter defines the secondary port for editing stored preferences.
type PreferenceWriter interface {
	// Set stores value under key. Unknown keys are rejected.
	Set(ctx context.Context, key, value string) error
}

// PreferenceRecord represents preferences as stored in persistence.
type PreferenceRecord struct {
	SuppressedDomains string // Whitespace-separated domain patterns
	LoggingEnabled    bool
}

// Value returns the stored string form of key.
func (r *PreferenceRecord) Value(key string) (string, bool) {
	switch key {
	case PrefSuppressedDomains:
		return r.SuppressedDomains, true
	case PrefLoggingEnabled:
		return strconv.FormatBool(r.LoggingEnabled), true
	}
	return "", false
}

// PreferenceChange carries the old and new stored value of one key.
type PreferenceChange struct {
	Key      string
	OldValue string
	NewValue string
}

// IsKnownPreference reports whether key is a recognised preference key.
func IsKnownPreference(key string) bool {
	return key == PrefSuppressedDomains || key == PrefLoggingEnabled
}

// DiffPreferences returns one change per key whose stored value differs.
func DiffPreferences(before, after *PreferenceRecord) []PreferenceChange {
	var changes []PreferenceChange
	for _, key := range []string{PrefSuppressedDomains, PrefLoggingEnabled} {
		oldValue, _ := before.Value(key)
		newValue, _ := after.Value(key)
		if oldValue != newValue {
			changes = append(changes, PreferenceChange{Key: key, OldValue: oldValue, NewValue: newValue})
		}
	}
	return changes
}
