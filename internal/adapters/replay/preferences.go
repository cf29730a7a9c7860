package replay

import (
	"context"
	"strings"
	"sync"

	"github.com/example/autohttps/internal/ports/secondary"
)

// ScenarioPreferences is an in-memory preference store whose contents are
// replaced by scenario steps.
type ScenarioPreferences struct {
	mu       sync.Mutex
	record   secondary.PreferenceRecord
	nextID   int
	watchers map[int]func(secondary.PreferenceChange)
}

// NewScenarioPreferences creates a store holding p.
func NewScenarioPreferences(p Preferences) *ScenarioPreferences {
	return &ScenarioPreferences{
		record:   p.record(),
		watchers: make(map[int]func(secondary.PreferenceChange)),
	}
}

// Load returns the current preferences.
func (s *ScenarioPreferences) Load(ctx context.Context) (*secondary.PreferenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.record
	return &rec, nil
}

// Watch registers fn for subsequent Replace calls.
func (s *ScenarioPreferences) Watch(ctx context.Context, fn func(secondary.PreferenceChange)) (secondary.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	return secondary.SubscriptionFunc(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.watchers, id)
	}), nil
}

// Replace swaps in p and notifies watchers of every changed key.
func (s *ScenarioPreferences) Replace(p Preferences) {
	s.mu.Lock()
	before := s.record
	s.record = p.record()
	after := s.record
	fns := make([]func(secondary.PreferenceChange), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, change := range secondary.DiffPreferences(&before, &after) {
		for _, fn := range fns {
			fn(change)
		}
	}
}

func (p Preferences) record() secondary.PreferenceRecord {
	return secondary.PreferenceRecord{
		SuppressedDomains: strings.Join(p.SuppressedDomains, " "),
		LoggingEnabled:    p.LoggingEnabled,
	}
}

// Ensure ScenarioPreferences implements the interface
var _ secondary.PreferenceStore = (*ScenarioPreferences)(nil)
