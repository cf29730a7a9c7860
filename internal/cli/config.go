package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/config"
	"github.com/example/autohttps/internal/wire"
)

// AddGlobalFlags registers the flags that override config.json.
func AddGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("home", "", "Directory holding .autohttps/ (default: your home directory)")
	root.PersistentFlags().String("db", "", "Database path (overrides db_path)")
	root.PersistentFlags().String("prefs-file", "", "Use the YAML preference file backend at this path")
	root.PersistentFlags().Bool("dev", false, "Human-readable development logging")
	root.PersistentFlags().Bool("debug", false, "Start with diagnostic logging enabled")
}

// Configure loads config.json, applies flag overrides and hands the result to
// wire. It is installed as the root command's PersistentPreRunE.
func Configure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	wire.Configure(cfg)
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	home, _ := flags.GetString("home")
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		home = dir
	}

	cfg, err := config.LoadConfig(home)
	if err != nil {
		return nil, err
	}

	if dbPath, _ := flags.GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if prefsFile, _ := flags.GetString("prefs-file"); prefsFile != "" {
		cfg.PreferenceBackend = config.BackendFile
		cfg.PreferencesFile = prefsFile
	}
	if dev, _ := flags.GetBool("dev"); dev {
		cfg.Development = true
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Diagnostics = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
