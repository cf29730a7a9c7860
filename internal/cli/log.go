package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View recorded upgrade decisions",
	Long:  "View and prune the decision audit log written by 'autohttps serve'",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent decisions",
	Long:  "Show recent decisions, newest first (default 50)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		limit, _ := cmd.Flags().GetInt("limit")
		tabID, _ := cmd.Flags().GetString("tab")
		upgradedOnly, _ := cmd.Flags().GetBool("upgraded")
		follow, _ := cmd.Flags().GetBool("follow")

		if limit <= 0 {
			limit = 50
		}

		filters := primary.DecisionLogFilters{
			TabID:        tabID,
			UpgradedOnly: upgradedOnly,
			Limit:        limit,
		}

		adapter := wire.DecisionAdapter(nil)

		// Initial fetch
		entries, err := adapter.List(ctx, filters)
		if err != nil {
			return err
		}

		if !follow {
			return nil
		}

		// Poll for new entries, printing oldest first
		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			seen[e.ID] = true
		}
		for {
			time.Sleep(1 * time.Second)

			newEntries, err := wire.DecisionLogService().ListDecisions(ctx, filters)
			if err != nil {
				fmt.Printf("Error fetching decisions: %v\n", err)
				continue
			}

			for i := len(newEntries) - 1; i >= 0; i-- {
				entry := newEntries[i]
				if seen[entry.ID] {
					continue
				}
				seen[entry.ID] = true
				adapter.PrintEntry(entry)
			}
		}
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old decisions",
	Long:  "Delete decisions older than the specified number of days (default 30)",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		if days <= 0 {
			days = 30
		}

		return wire.DecisionAdapter(nil).Prune(NewContext(), time.Duration(days)*24*time.Hour)
	},
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	// log tail
	logTailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logTailCmd.Flags().String("tab", "", "Filter by tab ID")
	logTailCmd.Flags().Bool("upgraded", false, "Only show upgraded navigations")
	logTailCmd.Flags().BoolP("follow", "f", false, "Follow mode: poll for new entries")

	// log prune
	logPruneCmd.Flags().Int("days", 30, "Delete entries older than N days")

	logCmd.AddCommand(logTailCmd)
	logCmd.AddCommand(logPruneCmd)

	return logCmd
}
