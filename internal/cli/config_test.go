package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/example/autohttps/internal/config"
)

func newRootForTest(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := &cobra.Command{Use: "autohttps"}
	AddGlobalFlags(root)
	if err := root.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	return root
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	home := t.TempDir()
	if err := config.SaveConfig(home, &config.Config{
		PreferenceBackend: config.BackendSQLite,
		DBPath:            "/from/file.db",
	}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	root := newRootForTest(t, "--home", home, "--db", "/from/flag.db", "--prefs-file", "/tmp/p.yaml", "--dev", "--debug")
	cfg, err := loadConfig(root)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.DBPath != "/from/flag.db" {
		t.Errorf("expected flag db path, got %q", cfg.DBPath)
	}
	if cfg.PreferenceBackend != config.BackendFile || cfg.PreferencesFile != "/tmp/p.yaml" {
		t.Errorf("expected file backend at /tmp/p.yaml, got %q %q", cfg.PreferenceBackend, cfg.PreferencesFile)
	}
	if !cfg.Development || !cfg.Diagnostics {
		t.Errorf("expected development and diagnostics, got %+v", cfg)
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	home := t.TempDir()
	if err := config.SaveConfig(home, &config.Config{
		PreferenceBackend: config.BackendSQLite,
		DBPath:            filepath.Join(home, "x.db"),
		MetricsAddr:       ":9464",
	}); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	cfg, err := loadConfig(newRootForTest(t, "--home", home))
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.DBPath != filepath.Join(home, "x.db") || cfg.MetricsAddr != ":9464" {
		t.Errorf("file values not kept: %+v", cfg)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	home := t.TempDir()
	dir := config.Dir(home)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"preference_backend":"etcd"}`), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := loadConfig(newRootForTest(t, "--home", home))
	if err == nil || !strings.Contains(err.Error(), "unknown preference_backend") {
		t.Errorf("expected backend error, got %v", err)
	}
}

func TestParseSwitch(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: "on", want: true},
		{in: "off", want: false},
		{in: "true", want: true},
		{in: "0", want: false},
		{in: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseSwitch(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSwitch(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseSwitch(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
