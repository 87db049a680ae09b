package langclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("config = %+v, want defaults", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	content := `
[diagnostics]
on_change = false
on_focus = true
tick_interval_ms = 250
max_workspace_failures = 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	d := cfg.Diagnostics
	if d.OnChange || !d.OnFocus {
		t.Errorf("trigger flags = %+v, want on_change off and on_focus on", d)
	}
	if d.TickIntervalMS != 250 {
		t.Errorf("TickIntervalMS = %d, want 250", d.TickIntervalMS)
	}
	if d.MaxWorkspaceFailures != 10 {
		t.Errorf("MaxWorkspaceFailures = %d, want 10", d.MaxWorkspaceFailures)
	}

	opts := cfg.PullOptions()
	if opts.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v, want 250ms", opts.TickInterval)
	}
	if !opts.OnSave {
		t.Error("OnSave default lost through override")
	}
}

func TestLoadConfigRejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte("diagnostics = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig = nil, want parse error")
	}
}
