package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/cli"
	"github.com/example/autohttps/internal/db"
	"github.com/example/autohttps/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "autohttps",
		Short:   "autohttps - upgrade plaintext navigations to HTTPS",
		Version: version.String(),
		Long: `autohttps upgrades top-level http:// navigations to https:// in a
running browser, skipping suppressed domains, freshly opened tabs and
sites that redirect back to plaintext.`,
		PersistentPreRunE: cli.Configure,
		SilenceUsage:      true,
	}
	cli.AddGlobalFlags(rootCmd)

	// Add subcommands
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.ReplayCmd())
	rootCmd.AddCommand(cli.CheckCmd())
	rootCmd.AddCommand(cli.PrefsCmd())
	rootCmd.AddCommand(cli.LogCmd())
	rootCmd.AddCommand(cli.DoctorCmd())
	rootCmd.AddCommand(cli.VersionCmd())

	err := rootCmd.Execute()
	_ = db.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
