package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/config"
	"github.com/example/autohttps/internal/db"
	"github.com/example/autohttps/internal/version"
	"github.com/example/autohttps/internal/wire"
)

// CheckResult represents the outcome of a single check
type CheckResult struct {
	Name    string
	Status  string // "✓", "⚠", "✗"
	Details string // Only shown if Status != "✓"
}

// DoctorCmd returns the doctor command for environment validation
func DoctorCmd() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the autohttps environment",
		Long: `Environment health check for autohttps.

Validates:
- Configuration (~/.autohttps/config.json)
- Database schema version
- Preference backend
- Browser availability for 'autohttps serve'
- Binary installation and PATH

Examples:
  autohttps doctor              # Run full health check
  autohttps doctor --quiet      # Exit code only (0=healthy, 1=issues)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()
			results := []CheckResult{}
			hasErrors := false

			results = append(results, checkConfig(cmd))
			dbResult := checkDatabase()
			results = append(results, dbResult)
			if dbResult.Status != "✗" {
				results = append(results, checkPreferences(cfg))
			}
			results = append(results, checkBrowser(cfg.Chrome))
			results = append(results, checkBinary())

			// Check for errors
			for _, r := range results {
				if r.Status == "✗" {
					hasErrors = true
					break
				}
			}

			if !quiet {
				// Print compact table
				fmt.Println()
				fmt.Println("Check              Status")
				fmt.Println("─────────────────────────")
				for _, r := range results {
					fmt.Printf("%-18s %s\n", r.Name, r.Status)
				}
				fmt.Println()

				// Print details for non-passing checks
				hasDetails := false
				for _, r := range results {
					if r.Status != "✓" && r.Details != "" {
						if !hasDetails {
							fmt.Println("Details:")
							hasDetails = true
						}
						fmt.Printf("\n%s:\n%s\n", r.Name, r.Details)
					}
				}

				if hasErrors {
					fmt.Println("\n⚠ Issues found.")
				} else {
					fmt.Println("All checks passed.")
				}
			}

			if hasErrors {
				return fmt.Errorf("environment validation failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - exit code only")

	return cmd
}

// checkConfig reports whether config.json exists. A missing file is not an
// error; defaults apply.
func checkConfig(cmd *cobra.Command) CheckResult {
	home, _ := cmd.Flags().GetString("home")
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return CheckResult{Name: "Config", Status: "✗", Details: "  Cannot get home directory"}
		}
		home = dir
	}

	path := filepath.Join(config.Dir(home), "config.json")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return CheckResult{
			Name:    "Config",
			Status:  "⚠",
			Details: fmt.Sprintf("  %s not found, using defaults", path),
		}
	}
	return CheckResult{Name: "Config", Status: "✓"}
}

// checkDatabase opens the database and compares its schema version.
func checkDatabase() CheckResult {
	path, err := db.GetDBPath()
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  " + err.Error()}
	}

	database, err := db.GetDB()
	if err != nil {
		return CheckResult{
			Name:    "Database",
			Status:  "✗",
			Details: fmt.Sprintf("  %s: %v", path, err),
		}
	}

	current, err := db.SchemaVersion(database)
	if err != nil {
		return CheckResult{Name: "Database", Status: "✗", Details: "  " + err.Error()}
	}
	if latest := db.LatestVersion(); current != latest {
		return CheckResult{
			Name:    "Database",
			Status:  "✗",
			Details: fmt.Sprintf("  %s at schema v%d, expected v%d", path, current, latest),
		}
	}
	return CheckResult{Name: "Database", Status: "✓"}
}

// checkPreferences loads preferences from the configured backend.
func checkPreferences(cfg *config.Config) CheckResult {
	if _, err := wire.Preferences().Load(NewContext()); err != nil {
		return CheckResult{
			Name:    "Preferences",
			Status:  "✗",
			Details: fmt.Sprintf("  %s backend: %v", cfg.PreferenceBackend, err),
		}
	}
	if cfg.PreferenceBackend == config.BackendFile {
		if _, err := os.Stat(cfg.PreferencesFile); errors.Is(err, os.ErrNotExist) {
			return CheckResult{
				Name:    "Preferences",
				Status:  "⚠",
				Details: fmt.Sprintf("  %s not found, using defaults", cfg.PreferencesFile),
			}
		}
	}
	return CheckResult{Name: "Preferences", Status: "✓"}
}

// checkBrowser verifies serve will find a browser.
func checkBrowser(chrome config.ChromeConfig) CheckResult {
	if chrome.DebuggerURL != "" {
		if _, err := launcher.ResolveURL(chrome.DebuggerURL); err != nil {
			return CheckResult{
				Name:    "Browser",
				Status:  "✗",
				Details: fmt.Sprintf("  Cannot reach %s: %v", chrome.DebuggerURL, err),
			}
		}
		return CheckResult{Name: "Browser", Status: "✓"}
	}

	if !chrome.Launch {
		return CheckResult{
			Name:    "Browser",
			Status:  "✗",
			Details: "  No chrome.debugger_url and chrome.launch is off",
		}
	}
	if chrome.Bin != "" {
		if _, err := os.Stat(chrome.Bin); err != nil {
			return CheckResult{Name: "Browser", Status: "✗", Details: "  " + err.Error()}
		}
		return CheckResult{Name: "Browser", Status: "✓"}
	}
	if _, found := launcher.LookPath(); !found {
		return CheckResult{
			Name:    "Browser",
			Status:  "⚠",
			Details: "  No local Chrome found; one will be downloaded on first serve",
		}
	}
	return CheckResult{Name: "Browser", Status: "✓"}
}

// checkBinary validates autohttps binary installation
func checkBinary() CheckResult {
	path, err := exec.LookPath("autohttps")
	if err != nil {
		return CheckResult{
			Name:    "Binary",
			Status:  "⚠",
			Details: "  'autohttps' not found in PATH\n  Run: go install ./cmd/autohttps",
		}
	}

	return CheckResult{Name: "Binary", Status: "✓", Details: fmt.Sprintf("  %s (%s)", path, version.String())}
}
