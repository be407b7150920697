package main

import (
	"os"
	"path/filepath"
	"testing"

	"universal-browser-mcp/internal/config"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parse binds the root command's flags to a fresh set and folds the result over cfg.
func parse(t *testing.T, cfg config.Config, args ...string) (config.Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	opts := &options{}
	bindFlags(fs, opts)
	require.NoError(t, fs.Parse(args))
	err := opts.apply(&cfg, fs)
	return cfg, err
}

func TestFlagDefaults(t *testing.T) {
	cfg, err := parse(t, config.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "chromium", cfg.Browser.Engine)
	assert.True(t, cfg.Browser.IsHeadless())
	assert.False(t, cfg.Server.Debug)
	assert.Empty(t, cfg.Browser.Args)
	assert.Equal(t, config.DriverPlaywright, cfg.Browser.Driver)
	assert.Zero(t, cfg.MCP.SSEPort)
}

func TestBrowserFlag(t *testing.T) {
	for _, engine := range config.EngineNames() {
		t.Run(engine, func(t *testing.T) {
			cfg, err := parse(t, config.DefaultConfig(), "--browser", engine)
			require.NoError(t, err)
			assert.Equal(t, engine, cfg.Browser.Engine)
		})
	}

	t.Run("short form", func(t *testing.T) {
		cfg, err := parse(t, config.DefaultConfig(), "-b", "webkit")
		require.NoError(t, err)
		assert.Equal(t, "webkit", cfg.Browser.Engine)
	})

	t.Run("rejected outside the set", func(t *testing.T) {
		_, err := parse(t, config.DefaultConfig(), "--browser", "opera")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "opera")
	})

	t.Run("config value kept when flag unset", func(t *testing.T) {
		base := config.DefaultConfig()
		base.Browser.Engine = "firefox"
		cfg, err := parse(t, base)
		require.NoError(t, err)
		assert.Equal(t, "firefox", cfg.Browser.Engine)
	})
}

func TestHeadlessFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "default", args: nil, want: true},
		{name: "headful", args: []string{"--headful"}, want: false},
		{name: "headless false", args: []string{"--headless=false"}, want: false},
		{name: "headful wins", args: []string{"--headless", "--headful"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parse(t, config.DefaultConfig(), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Browser.IsHeadless())
		})
	}
}

func TestRepeatableBrowserArg(t *testing.T) {
	cfg, err := parse(t, config.DefaultConfig(),
		"--browser-arg=--window-size=1920,1080",
		"--browser-arg", "--lang=en-US",
		"--debug",
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"--window-size=1920,1080", "--lang=en-US"}, cfg.Browser.Args)
	assert.Equal(t, []string{
		"--no-sandbox", "--disable-setuid-sandbox",
		"--window-size=1920,1080", "--lang=en-US",
	}, cfg.Browser.LaunchArgs())
	assert.True(t, cfg.Server.Debug)
}

func TestTransportFlags(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "server.log")
	cfg, err := parse(t, config.DefaultConfig(), "--driver", "rod", "--sse-port", "8931", "--log-file", logFile)
	require.NoError(t, err)

	assert.Equal(t, config.DriverRod, cfg.Browser.Driver)
	assert.Equal(t, 8931, cfg.MCP.SSEPort)
	assert.Equal(t, logFile, cfg.Server.LogFile)

	_, err = parse(t, config.DefaultConfig(), "--driver", "selenium")
	assert.Error(t, err)
}

func TestRunRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  driver: selenium\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", path})
	cmd.SetOut(os.Stderr)
	cmd.SetErr(os.Stderr)
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.driver")
}
