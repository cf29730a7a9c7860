package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/adapters/replay"
	"github.com/example/autohttps/internal/ports/primary"
	"github.com/example/autohttps/internal/wire"
)

const checkTabID = "check"

// CheckCmd returns the check command.
func CheckCmd() *cobra.Command {
	var originURL, tabURL string

	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Explain what the engine would do with a navigation",
		Long: `Run one navigation through the engine with the current preferences and
print the decision with its reason. The navigation happens in a settled tab
showing --tab-url; --origin simulates a link click from that page.

Examples:
  autohttps check http://example.com/
  autohttps check http://intranet.corp/
  autohttps check http://example.com/login --tab-url https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := NewContext()

			hub := wire.NewHub()
			host := replay.NewHost(&replay.Scenario{
				Name: "check",
				Tabs: []replay.TabSpec{{ID: checkTabID, URL: tabURL, Active: true}},
			}, hub)
			engine, err := wire.NewEngine(ctx, wire.EngineOptions{Tabs: host, Events: hub})
			if err != nil {
				return err
			}
			defer engine.Close()

			wire.DecisionAdapter(engine).Check(ctx, primary.NavigationRequest{
				TabID:     checkTabID,
				URL:       args[0],
				RequestID: "check",
				OriginURL: originURL,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&originURL, "origin", "", "URL of the page that triggered the navigation")
	cmd.Flags().StringVar(&tabURL, "tab-url", "", "URL the tab is showing before the navigation")
	return cmd
}
