package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"universal-browser-mcp/internal/config"
)

var (
	// ErrPageNotFound is returned when a page key is not registered.
	ErrPageNotFound = errors.New("page not found")
	// ErrPageExists is returned when creating a page under a key already in use.
	ErrPageExists = errors.New("page already exists")
	// ErrShutdown is returned once the manager has been torn down.
	ErrShutdown = errors.New("browser session has been shut down")
	// ErrUnsupportedEngine is returned when a driver cannot drive the requested engine.
	ErrUnsupportedEngine = errors.New("engine not supported by driver")
	// ErrElementNotFound is returned when neither a selector nor a text match yields an element.
	ErrElementNotFound = errors.New("element not found")
)

// Launcher starts a browser engine. Implementations must release anything
// they acquired (driver process, browser) before returning an error.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Engine, error)
}

// Engine owns the driver process, the browser and the one browsing context
// shared by every page.
type Engine interface {
	NewPage(ctx context.Context) (Page, error)
	// Close closes the browser and stops the driver. Best effort: every
	// step runs even if an earlier one failed.
	Close() error
}

// Page is one tab inside the shared context.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL() string
	Click(ctx context.Context, selector string) error
	// ClickText clicks the first element whose visible text contains text.
	ClickText(ctx context.Context, text string) error
	// Fill replaces the value of the input matching selector.
	Fill(ctx context.Context, selector, text string) error
	TextContent(ctx context.Context, selector string) (string, error)
	Content(ctx context.Context) (string, error)
	// Screenshot returns a PNG of the full page, or of the element matching
	// selector when it is non-empty.
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	Close() error
}

// LaunchOptions is the resolved, engine-ready view of BrowserConfig.
type LaunchOptions struct {
	Engine            config.EngineType
	Headless          bool
	Args              []string
	ExecutablePath    string
	Install           bool
	ActionTimeout     time.Duration
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
}

// NewLaunchOptions resolves cfg against the already-chosen engine.
func NewLaunchOptions(cfg config.BrowserConfig, engine config.EngineType) LaunchOptions {
	return LaunchOptions{
		Engine:            engine,
		Headless:          cfg.IsHeadless(),
		Args:              cfg.LaunchArgs(),
		ExecutablePath:    cfg.ExecutablePath,
		Install:           cfg.Install,
		ActionTimeout:     cfg.ActionTimeout(),
		NavigationTimeout: cfg.NavigationTimeout(),
		ViewportWidth:     cfg.GetViewportWidth(),
		ViewportHeight:    cfg.GetViewportHeight(),
	}
}

// LauncherFor returns the launcher for a configured driver name.
func LauncherFor(driver string) (Launcher, error) {
	switch driver {
	case config.DriverPlaywright, "":
		return &PlaywrightLauncher{}, nil
	case config.DriverRod:
		return &RodLauncher{}, nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", driver)
	}
}
