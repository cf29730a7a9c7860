package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/example/autohttps/internal/core/suppress"
	"github.com/example/autohttps/internal/logging"
	"github.com/example/autohttps/internal/metrics"
	"github.com/example/autohttps/internal/ports/secondary"
)

// ErrNotReady is returned when preferences are read before the initial load
// completed and the caller gave up waiting.
var ErrNotReady = errors.New("preferences not ready")

// PreferenceState is the engine's view of the user's preferences.
// The trie is rebuilt wholesale on every change and never mutated afterwards.
type PreferenceState struct {
	Suppressed     *suppress.Trie
	LoggingEnabled bool
}

// PreferenceService owns the process-wide PreferenceState.
// It is written only by its own load and change handlers.
type PreferenceService struct {
	store   secondary.PreferenceStore
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	state PreferenceState
	sub   secondary.Subscription

	ready     chan struct{}
	readyOnce sync.Once
}

// NewPreferenceService creates a PreferenceService with injected dependencies.
func NewPreferenceService(store secondary.PreferenceStore, logger *logging.Logger, m *metrics.Metrics) *PreferenceService {
	return &PreferenceService{
		store:   store,
		logger:  logger,
		metrics: m,
		state:   PreferenceState{Suppressed: suppress.Build("")},
		ready:   make(chan struct{}),
	}
}

// Start performs the initial load and subscribes to changes.
// A failed load falls back to defaults; readiness is signalled either way.
func (s *PreferenceService) Start(ctx context.Context) error {
	record, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("preference load failed, using defaults", zap.Error(err))
		record = &secondary.PreferenceRecord{}
	}
	s.replace(record)
	s.markReady()

	sub, err := s.store.Watch(ctx, s.apply)
	if err != nil {
		return fmt.Errorf("failed to watch preferences: %w", err)
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	return nil
}

// Close releases the change subscription.
func (s *PreferenceService) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// Current returns the preference state, waiting for the initial load.
func (s *PreferenceService) Current(ctx context.Context) (PreferenceState, error) {
	select {
	case <-s.ready:
	default:
		select {
		case <-s.ready:
		case <-ctx.Done():
			return PreferenceState{}, fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *PreferenceService) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

func (s *PreferenceService) replace(record *secondary.PreferenceRecord) {
	s.mu.Lock()
	s.state = PreferenceState{
		Suppressed:     suppress.Build(record.SuppressedDomains),
		LoggingEnabled: record.LoggingEnabled,
	}
	s.mu.Unlock()

	s.logger.SetDiagnostics(record.LoggingEnabled)
	s.metrics.IncPreferenceReload()
	s.logger.Debug("preferences loaded",
		zap.Int("suppressed_patterns", s.state.Suppressed.Len()),
		zap.Bool("logging", record.LoggingEnabled))
}

// apply handles one change notification from the store.
func (s *PreferenceService) apply(change secondary.PreferenceChange) {
	switch change.Key {
	case secondary.PrefSuppressedDomains:
		trie := suppress.Build(change.NewValue)
		s.mu.Lock()
		s.state.Suppressed = trie
		s.mu.Unlock()
		s.metrics.IncPreferenceReload()
		s.logger.Debug("suppressed domains rebuilt", zap.Int("patterns", trie.Len()))
	case secondary.PrefLoggingEnabled:
		enabled, err := strconv.ParseBool(change.NewValue)
		if err != nil {
			enabled = false
		}
		s.mu.Lock()
		s.state.LoggingEnabled = enabled
		s.mu.Unlock()
		s.logger.SetDiagnostics(enabled)
	}
}
