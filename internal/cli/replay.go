package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/adapters/replay"
	"github.com/example/autohttps/internal/wire"
)

// ReplayCmd returns the replay command.
func ReplayCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>...",
		Short: "Replay recorded tab and navigation events against the engine",
		Long: `Replay one or more YAML scenarios on a virtual clock and check each
expect step against the engine's decision. Scenarios carry their own tabs and
preferences, and their decisions are not recorded in the audit log.

Exits non-zero if any expectation fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				sc, err := replay.LoadScenario(path)
				if err != nil {
					return err
				}
				report, err := runScenario(sc)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				printReport(report, verbose)
				if !report.Passed() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scenario(s) failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every step")
	return cmd
}

func runScenario(sc *replay.Scenario) (*replay.Report, error) {
	ctx, cancel := NewSignalContext()
	defer cancel()
	if sc.Timeout > 0 {
		var done context.CancelFunc
		ctx, done = context.WithTimeout(ctx, sc.Timeout)
		defer done()
	}

	hub := wire.NewHub()
	host := replay.NewHost(sc, hub)
	engine, err := wire.NewEngine(ctx, wire.EngineOptions{
		Tabs:   host,
		Events: hub,
		Store:  host.Preferences(),
	})
	if err != nil {
		return nil, err
	}
	defer engine.Close()
	engine.SetClock(host.Clock().Now)

	return host.Run(ctx, engine)
}

func printReport(report *replay.Report, verbose bool) {
	status := color.New(color.FgGreen).Sprint("PASS")
	if !report.Passed() {
		status = color.New(color.FgRed).Sprint("FAIL")
	}
	fmt.Printf("%s %s (%d steps)\n", status, report.Name, len(report.Results))

	for _, r := range report.Results {
		if !verbose && r.Failure == "" {
			continue
		}
		line := fmt.Sprintf("  %3d %8s %-16s", r.Step, r.At, r.Kind)
		if r.Decision != nil {
			if r.Decision.Upgrade {
				line += " upgrade " + r.Decision.NewURL
			} else {
				line += " pass (" + r.Decision.Reason + ")"
			}
		}
		fmt.Println(line)
		if r.Failure != "" {
			fmt.Printf("      %s %s\n", color.New(color.FgRed).Sprint("✗"), r.Failure)
		}
	}
}
