// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/example/autohttps/internal/ports/primary"
)

// DecisionAdapter is a thin adapter that translates CLI operations to
// decision service calls.
type DecisionAdapter struct {
	upgrades primary.UpgradeService
	log      primary.DecisionLogService
	out      io.Writer
}

// NewDecisionAdapter creates a new DecisionAdapter. Either service may be nil
// when the command does not need it.
func NewDecisionAdapter(upgrades primary.UpgradeService, log primary.DecisionLogService, out io.Writer) *DecisionAdapter {
	return &DecisionAdapter{
		upgrades: upgrades,
		log:      log,
		out:      out,
	}
}

// Check runs one navigation through the engine and prints the decision.
func (a *DecisionAdapter) Check(ctx context.Context, req primary.NavigationRequest) primary.Decision {
	decision := a.upgrades.Decide(ctx, req)

	if decision.Upgrade {
		fmt.Fprintf(a.out, "%s %s\n", color.New(color.FgGreen).Sprint("UPGRADE"), req.URL)
		fmt.Fprintf(a.out, "     -> %s\n", decision.NewURL)
	} else {
		fmt.Fprintf(a.out, "%s %s\n", color.New(color.FgYellow).Sprint("PASS   "), req.URL)
	}
	if decision.Reason != "" {
		fmt.Fprintf(a.out, "Reason: %s\n", decision.Reason)
	}
	return decision
}

// List prints recorded decisions, newest first, and returns them.
func (a *DecisionAdapter) List(ctx context.Context, filters primary.DecisionLogFilters) ([]*primary.DecisionEntry, error) {
	entries, err := a.log.ListDecisions(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}

	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No decisions recorded")
		return entries, nil
	}

	for _, e := range entries {
		a.PrintEntry(e)
	}
	return entries, nil
}

// PrintEntry prints one decision line.
func (a *DecisionAdapter) PrintEntry(e *primary.DecisionEntry) {
	ts := e.DecidedAt.Local().Format("2006-01-02 15:04:05")
	tab := e.TabID
	if tab == "" {
		tab = "-"
	}
	if e.Upgraded {
		fmt.Fprintf(a.out, "[%s] %-8s %s %s -> %s\n", ts, tab,
			color.New(color.FgGreen).Sprint("upgrade"), e.URL, e.NewURL)
		return
	}
	fmt.Fprintf(a.out, "[%s] %-8s %s %s (%s)\n", ts, tab,
		color.New(color.FgYellow).Sprint("pass   "), e.URL, e.Reason)
}

// Prune deletes decisions older than olderThan.
func (a *DecisionAdapter) Prune(ctx context.Context, olderThan time.Duration) error {
	n, err := a.log.PruneDecisions(ctx, olderThan)
	if err != nil {
		return fmt.Errorf("failed to prune decisions: %w", err)
	}

	fmt.Fprintf(a.out, "✓ Pruned %d decision(s) older than %s\n", n, olderThan)
	return nil
}
