package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SandboxArgs are always passed to the browser ahead of any user-supplied
// arguments so the server runs inside unprivileged containers.
var SandboxArgs = []string{"--no-sandbox", "--disable-setuid-sandbox"}

// Supported browser drivers.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
)

// Config captures all tunable settings for the universal browser MCP server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	MCP     MCPConfig     `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Empty means stderr; stdout is reserved for the stdio transport.
	LogFile string `yaml:"log_file"`
	Debug   bool   `yaml:"debug"`
	// TraceDir enables the JSONL call trace when set.
	TraceDir string `yaml:"trace_dir"`
	// TraceKeep is how many trace files survive rotation (default 3).
	TraceKeep int `yaml:"trace_keep"`
}

// GetTraceKeep returns the trace rotation depth with a sane default.
func (s ServerConfig) GetTraceKeep() int {
	if s.TraceKeep <= 0 {
		return 3
	}
	return s.TraceKeep
}

// BrowserConfig configures which engine is launched and how.
type BrowserConfig struct {
	// Engine is one of chromium, firefox, webkit, msedge, chrome. Unknown
	// values are tolerated here and replaced by DefaultEngine at launch.
	Engine string `yaml:"engine"`
	// Driver selects the automation backend: playwright (all engines) or rod (Chromium family).
	Driver string `yaml:"driver"`
	// Headless controls whether the browser runs without a window (default: true).
	Headless *bool `yaml:"headless"`
	// Extra launch arguments, appended after SandboxArgs.
	Args []string `yaml:"args"`
	// Optional explicit browser binary.
	ExecutablePath string `yaml:"executable_path"`
	// Install downloads the playwright driver and browsers before the first launch.
	Install bool `yaml:"install"`
	// Per-action engine timeout (e.g., "30s").
	DefaultActionTimeout string `yaml:"default_timeout"`
	// Navigation timeout (e.g., "30s").
	DefaultNavigationTimeout string `yaml:"navigation_timeout"`
	ViewportWidth            int    `yaml:"viewport_width"`
	ViewportHeight           int    `yaml:"viewport_height"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio.
	SSEPort int `yaml:"sse_port"`
}

// DefaultConfig provides the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "universal-browser-mcp",
			Version: "0.1.0",
		},
		Browser: BrowserConfig{
			Engine:                   string(DefaultEngine),
			Driver:                   DriverPlaywright,
			DefaultActionTimeout:     "30s",
			DefaultNavigationTimeout: "30s",
			ViewportWidth:            1280,
			ViewportHeight:           720,
		},
	}
}

// Load reads YAML config from disk and overlays defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
// Unknown engines are not rejected; they fall back to chromium at launch.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	switch c.Browser.Driver {
	case DriverPlaywright, DriverRod:
	default:
		return fmt.Errorf("browser.driver must be %q or %q, got %q", DriverPlaywright, DriverRod, c.Browser.Driver)
	}
	if c.Browser.DefaultActionTimeout != "" {
		if _, err := time.ParseDuration(c.Browser.DefaultActionTimeout); err != nil {
			return fmt.Errorf("browser.default_timeout: %w", err)
		}
	}
	if c.Browser.DefaultNavigationTimeout != "" {
		if _, err := time.ParseDuration(c.Browser.DefaultNavigationTimeout); err != nil {
			return fmt.Errorf("browser.navigation_timeout: %w", err)
		}
	}
	if c.MCP.SSEPort < 0 {
		return fmt.Errorf("mcp.sse_port must not be negative, got %d", c.MCP.SSEPort)
	}
	return nil
}

// IsHeadless returns whether the browser should run headless (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// LaunchArgs returns the sandbox arguments followed by the configured extras.
func (b BrowserConfig) LaunchArgs() []string {
	args := make([]string, 0, len(SandboxArgs)+len(b.Args))
	args = append(args, SandboxArgs...)
	return append(args, b.Args...)
}

// ActionTimeout returns the parsed per-action timeout with a sane default.
func (b BrowserConfig) ActionTimeout() time.Duration {
	return parseDurationOr(b.DefaultActionTimeout, 30*time.Second)
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDurationOr(b.DefaultNavigationTimeout, 30*time.Second)
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 720
	}
	return b.ViewportHeight
}

func parseDurationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
