package primary

import "context"

// PreferenceAdmin defines the primary port for inspecting and editing stored
// preferences from the command line.
type PreferenceAdmin interface {
	// Show returns the stored preferences.
	Show(ctx context.Context) (*PreferenceView, error)

	// Set stores one preference value.
	Set(ctx context.Context, key, value string) error
}

// PreferenceView is the displayable form of stored preferences.
type PreferenceView struct {
	SuppressedDomains []string
	LoggingEnabled    bool
}
