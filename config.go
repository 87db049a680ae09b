package langclient

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the host-facing configuration for the diagnostic pull runtime.
type Config struct {
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
}

// DiagnosticsConfig controls when pulls happen and how the background
// loops pace themselves. Durations are in milliseconds.
type DiagnosticsConfig struct {
	OnChange bool `toml:"on_change"`
	OnSave   bool `toml:"on_save"`
	OnFocus  bool `toml:"on_focus"`
	OnTabs   bool `toml:"on_tabs"`

	TickIntervalMS       int `toml:"tick_interval_ms"`
	WorkspaceIntervalMS  int `toml:"workspace_interval_ms"`
	MaxWorkspaceFailures int `toml:"max_workspace_failures"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Diagnostics: DiagnosticsConfig{
			OnChange:             true,
			OnSave:               true,
			OnTabs:               true,
			TickIntervalMS:       int(defaultTickInterval / time.Millisecond),
			WorkspaceIntervalMS:  int(defaultWorkspaceInterval / time.Millisecond),
			MaxWorkspaceFailures: defaultMaxWorkspaceFailures,
		},
	}
}

// LoadConfig reads a TOML config file, layered over the defaults. A
// missing file is not an error; the defaults apply.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// PullOptions converts the config into pull options for the feature.
func (c Config) PullOptions() DiagnosticPullOptions {
	d := c.Diagnostics
	return DiagnosticPullOptions{
		OnChange:             d.OnChange,
		OnSave:               d.OnSave,
		OnFocus:              d.OnFocus,
		OnTabs:               d.OnTabs,
		TickInterval:         time.Duration(d.TickIntervalMS) * time.Millisecond,
		WorkspaceInterval:    time.Duration(d.WorkspaceIntervalMS) * time.Millisecond,
		MaxWorkspaceFailures: d.MaxWorkspaceFailures,
	}
}
