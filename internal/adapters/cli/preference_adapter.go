package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/ports/secondary"
)

// PreferenceAdapter translates CLI operations to PreferenceAdmin calls.
type PreferenceAdapter struct {
	service primary.PreferenceAdmin
	out     io.Writer
}

// NewPreferenceAdapter creates a new PreferenceAdapter with the given service.
func NewPreferenceAdapter(service primary.PreferenceAdmin, out io.Writer) *PreferenceAdapter {
	return &PreferenceAdapter{
		service: service,
		out:     out,
	}
}

// Show prints the current preferences.
func (a *PreferenceAdapter) Show(ctx context.Context) error {
	view, err := a.service.Show(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	logging := color.New(color.FgYellow).Sprint("off")
	if view.LoggingEnabled {
		logging = color.New(color.FgGreen).Sprint("on")
	}
	fmt.Fprintf(a.out, "Diagnostic logging: %s\n", logging)

	if len(view.SuppressedDomains) == 0 {
		fmt.Fprintln(a.out, "Suppressed domains: (none)")
		return nil
	}
	fmt.Fprintf(a.out, "Suppressed domains (%d):\n", len(view.SuppressedDomains))
	for _, d := range view.SuppressedDomains {
		fmt.Fprintf(a.out, "  %s\n", d)
	}
	return nil
}

// SetDomains replaces the suppression list.
func (a *PreferenceAdapter) SetDomains(ctx context.Context, domains []string) error {
	if err := a.service.Set(ctx, secondary.PrefSuppressedDomains, strings.Join(domains, " ")); err != nil {
		return fmt.Errorf("failed to set suppressed domains: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Suppressing %d domain pattern(s)\n", len(domains))
	return nil
}

// AddDomains appends patterns not already present.
func (a *PreferenceAdapter) AddDomains(ctx context.Context, domains []string) error {
	view, err := a.service.Show(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	current := view.SuppressedDomains
	seen := make(map[string]bool, len(current))
	for _, d := range current {
		seen[d] = true
	}
	added := 0
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		current = append(current, d)
		added++
	}
	if added == 0 {
		fmt.Fprintln(a.out, "Nothing to add")
		return nil
	}

	if err := a.service.Set(ctx, secondary.PrefSuppressedDomains, strings.Join(current, " ")); err != nil {
		return fmt.Errorf("failed to set suppressed domains: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Added %d domain pattern(s)\n", added)
	return nil
}

// RemoveDomains drops the given patterns from the list.
func (a *PreferenceAdapter) RemoveDomains(ctx context.Context, domains []string) error {
	view, err := a.service.Show(ctx)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	drop := make(map[string]bool, len(domains))
	for _, d := range domains {
		drop[strings.TrimSpace(d)] = true
	}
	kept := make([]string, 0, len(view.SuppressedDomains))
	for _, d := range view.SuppressedDomains {
		if !drop[d] {
			kept = append(kept, d)
		}
	}
	removed := len(view.SuppressedDomains) - len(kept)
	if removed == 0 {
		fmt.Fprintln(a.out, "No matching patterns")
		return nil
	}

	if err := a.service.Set(ctx, secondary.PrefSuppressedDomains, strings.Join(kept, " ")); err != nil {
		return fmt.Errorf("failed to set suppressed domains: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Removed %d domain pattern(s)\n", removed)
	return nil
}

// SetLogging turns diagnostic logging on or off.
func (a *PreferenceAdapter) SetLogging(ctx context.Context, enabled bool) error {
	if err := a.service.Set(ctx, secondary.PrefLoggingEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("failed to set logging: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(a.out, "✓ Diagnostic logging %s\n", state)
	return nil
}
