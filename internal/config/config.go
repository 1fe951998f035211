// Package config loads and validates BrowserLens's layered YAML
// configuration: a typed struct with yaml tags, DefaultConfig() filling in
// thresholds the YAML leaves silent, and duration-parsing accessor
// methods for any field given as a string.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level BrowserLens config.
	WorkspaceDirName = ".browserlens"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely.
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up.
	ExplicitDir string
}

// Config captures every tunable setting for a BrowserLens session plus the
// demo binary's browser connection.
type Config struct {
	Router  RouterConfig  `yaml:"router"`
	Limits  LimitsConfig  `yaml:"limits"`
	Tracing TracingConfig `yaml:"tracing"`
	Demo    DemoConfig    `yaml:"demo"`
}

// RouterConfig holds the representation router's thresholds.
type RouterConfig struct {
	A11yFullThreshold float64 `yaml:"a11y_full_threshold"`
	DOMNodeCap        int     `yaml:"dom_node_cap"`
	HybridMinCoverage float64 `yaml:"hybrid_min_coverage"`
	NameLengthCap     int     `yaml:"name_length_cap"`
	DynamicProbe      bool    `yaml:"dynamic_probe"`
}

// LimitsConfig holds the resource bounds and phase timeouts.
type LimitsConfig struct {
	RefSessionCap        int    `yaml:"ref_session_cap"`
	SnapshotTTL          string `yaml:"snapshot_ttl"`
	SignalCacheCapacity  int    `yaml:"signal_cache_capacity"`
	SignalProbeTimeout   string `yaml:"signal_probe_timeout"`
	ExtractorTimeout     string `yaml:"extractor_timeout"`
	DiffTimeout          string `yaml:"diff_timeout"`
}

// TracingConfig controls the optional observation trace recorder.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// DemoConfig configures how cmd/lensdemo attaches to or launches Chrome.
type DemoConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when Launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome in detached mode.
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Navigation timeout (e.g., "15s").
	NavigationTimeout string `yaml:"navigation_timeout"`
	ViewportWidth     int    `yaml:"viewport_width"`
	ViewportHeight    int    `yaml:"viewport_height"`
	StartURL          string `yaml:"start_url"`
}

// DefaultConfig provides the documented router, limits, and tracing defaults.
func DefaultConfig() Config {
	return Config{
		Router: RouterConfig{
			A11yFullThreshold: 0.8,
			DOMNodeCap:        2000,
			HybridMinCoverage: 0.5,
			NameLengthCap:     200,
			DynamicProbe:      false,
		},
		Limits: LimitsConfig{
			RefSessionCap:       65535,
			SnapshotTTL:         "10m",
			SignalCacheCapacity: 64,
			SignalProbeTimeout:  "600ms",
			ExtractorTimeout:    "2000ms",
			DiffTimeout:         "200ms",
		},
		Tracing: TracingConfig{
			Enabled: false,
			Dir:     "data/traces",
		},
		Demo: DemoConfig{
			NavigationTimeout: "15s",
			ViewportWidth:     1280,
			ViewportHeight:    800,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .browserlens/config.yaml file.
// Returns the workspace root directory (parent of .browserlens/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .browserlens/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .browserlens/ directory with a template config at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	if err := os.MkdirAll(filepath.Join(wsDir, "data"), 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", wsDir, err)
	}

	templateConfig := `# BrowserLens project-level configuration.
# Values here override defaults but are overridden by --config and CLI flags.

# router:
#   a11y_full_threshold: 0.8
#   dom_node_cap: 2000

# tracing:
#   enabled: true
#   dir: ".browserlens/data/traces"

# demo:
#   headless: false
#   viewport_width: 1280
#   viewport_height: 720
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0o644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	gitignoreContent := "# Runtime data (traces) - do not version control\ndata/\n"
	if err := os.WriteFile(filepath.Join(wsDir, ".gitignore"), []byte(gitignoreContent), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Tracing.Dir = resolve(cfg.Tracing.Dir)
	return cfg
}

// Validate surfaces a ConfigurationError-shaped problem for out-of-range
// thresholds at session creation.
func (c *Config) Validate() error {
	if c.Router.A11yFullThreshold < 0 || c.Router.A11yFullThreshold > 1 {
		return errors.New("router.a11y_full_threshold must be within [0,1]")
	}
	if c.Router.HybridMinCoverage < 0 || c.Router.HybridMinCoverage > 1 {
		return errors.New("router.hybrid_min_coverage must be within [0,1]")
	}
	if c.Router.DOMNodeCap <= 0 {
		return errors.New("router.dom_node_cap must be positive")
	}
	if c.Router.NameLengthCap <= 0 {
		return errors.New("router.name_length_cap must be positive")
	}
	if c.Limits.RefSessionCap <= 0 {
		return errors.New("limits.ref_session_cap must be positive")
	}
	if c.Limits.SignalCacheCapacity <= 0 {
		return errors.New("limits.signal_cache_capacity must be positive")
	}
	for _, d := range []string{c.Limits.SnapshotTTL, c.Limits.SignalProbeTimeout, c.Limits.ExtractorTimeout, c.Limits.DiffTimeout} {
		if d == "" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return fmt.Errorf("invalid duration %q: %w", d, err)
		}
	}
	for _, d := range []string{c.Limits.SignalProbeTimeout, c.Limits.ExtractorTimeout, c.Limits.DiffTimeout} {
		if dur, err := time.ParseDuration(d); err == nil && dur <= 0 {
			return fmt.Errorf("timeout %q must be positive", d)
		}
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// SnapshotTTLDuration returns the parsed signal-cache TTL with a sane default.
func (l LimitsConfig) SnapshotTTLDuration() time.Duration {
	return parseDurationOr(l.SnapshotTTL, 10*time.Minute)
}

// SignalProbeTimeoutDuration returns the parsed signal-probe phase timeout.
func (l LimitsConfig) SignalProbeTimeoutDuration() time.Duration {
	return parseDurationOr(l.SignalProbeTimeout, 600*time.Millisecond)
}

// ExtractorTimeoutDuration returns the parsed extractor phase timeout.
func (l LimitsConfig) ExtractorTimeoutDuration() time.Duration {
	return parseDurationOr(l.ExtractorTimeout, 2000*time.Millisecond)
}

// DiffTimeoutDuration returns the parsed diff phase timeout.
func (l LimitsConfig) DiffTimeoutDuration() time.Duration {
	return parseDurationOr(l.DiffTimeout, 200*time.Millisecond)
}

// NavigationTimeoutDuration returns the demo binary's navigation timeout.
func (d DemoConfig) NavigationTimeoutDuration() time.Duration {
	return parseDurationOr(d.NavigationTimeout, 15*time.Second)
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (d DemoConfig) IsHeadless() bool {
	if d.Headless == nil {
		return true
	}
	return *d.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (d DemoConfig) GetViewportWidth() int {
	if d.ViewportWidth <= 0 {
		return 1280
	}
	return d.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (d DemoConfig) GetViewportHeight() int {
	if d.ViewportHeight <= 0 {
		return 800
	}
	return d.ViewportHeight
}
