package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/version"
)

// VersionCmd returns the version command.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		// Skip config loading so version works without a home directory.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.String())
		},
	}
}
