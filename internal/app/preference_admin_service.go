package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/autohttps/internal/core/suppress"
	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// PreferenceAdminServiceImpl implements the PreferenceAdmin interface.
type PreferenceAdminServiceImpl struct {
	store  secondary.PreferenceStore
	writer secondary.PreferenceWriter
}

// NewPreferenceAdminService creates a new PreferenceAdminService with injected dependencies.
func NewPreferenceAdminService(store secondary.PreferenceStore, writer secondary.PreferenceWriter) *PreferenceAdminServiceImpl {
	return &PreferenceAdminServiceImpl{
		store:  store,
		writer: writer,
	}
}

// Show returns the stored preferences.
func (s *PreferenceAdminServiceImpl) Show(ctx context.Context) (*primary.PreferenceView, error) {
	record, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}
	return &primary.PreferenceView{
		SuppressedDomains: suppress.Build(record.SuppressedDomains).Patterns(),
		LoggingEnabled:    record.LoggingEnabled,
	}, nil
}

// Set validates and stores one preference value.
func (s *PreferenceAdminServiceImpl) Set(ctx context.Context, key, value string) error {
	switch key {
	case secondary.PrefSuppressedDomains:
		value = strings.Join(strings.Fields(value), " ")
	case secondary.PrefLoggingEnabled:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value %q for %s: expected true or false", value, key)
		}
		value = strconv.FormatBool(enabled)
	default:
		return fmt.Errorf("unknown preference %q", key)
	}

	if err := s.writer.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Ensure PreferenceAdminServiceImpl implements the interface
var _ primary.PreferenceAdmin = (*PreferenceAdminServiceImpl)(nil)
