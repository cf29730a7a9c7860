package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/wire"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "View and change preferences",
	Long: `View and change the suppressed domain list and diagnostic logging.

Changes are picked up by a running 'autohttps serve' without a restart.`,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.PreferenceAdapter().Show(NewContext())
	},
}

var prefsSetDomainsCmd = &cobra.Command{
	Use:   "set-domains [domain]...",
	Short: "Replace the suppressed domain list",
	Long: `Replace the suppressed domain list. A pattern suppresses the domain
itself and every subdomain. With no arguments the list is cleared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.PreferenceAdapter().SetDomains(NewContext(), args)
	},
}

var prefsAddDomainCmd = &cobra.Command{
	Use:   "add-domain <domain>...",
	Short: "Stop upgrading a domain and its subdomains",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.PreferenceAdapter().AddDomains(NewContext(), args)
	},
}

var prefsRemoveDomainCmd = &cobra.Command{
	Use:   "remove-domain <domain>...",
	Short: "Resume upgrading a domain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return wire.PreferenceAdapter().RemoveDomains(NewContext(), args)
	},
}

var prefsLoggingCmd = &cobra.Command{
	Use:       "logging <on|off>",
	Short:     "Turn diagnostic logging on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE: func(cmd *cobra.Command, args []string) error {
		enabled, err := parseSwitch(args[0])
		if err != nil {
			return err
		}
		return wire.PreferenceAdapter().SetLogging(NewContext(), enabled)
	},
}

func parseSwitch(v string) (bool, error) {
	switch v {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", v)
	}
	return b, nil
}

// PrefsCmd returns the prefs command with all subcommands attached.
func PrefsCmd() *cobra.Command {
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetDomainsCmd)
	prefsCmd.AddCommand(prefsAddDomainCmd)
	prefsCmd.AddCommand(prefsRemoveDomainCmd)
	prefsCmd.AddCommand(prefsLoggingCmd)

	return prefsCmd
}
