package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"universal-browser-mcp/internal/config"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher drives every supported engine through the playwright
// driver process.
type PlaywrightLauncher struct {
	// Driver output; discarded when nil so stdout stays clean for MCP.
	Output io.Writer
}

func (l *PlaywrightLauncher) runOptions(engine config.EngineType) *playwright.RunOptions {
	out := l.Output
	if out == nil {
		out = io.Discard
	}
	return &playwright.RunOptions{
		Browsers: []string{string(engine)},
		Verbose:  false,
		Stdout:   out,
		Stderr:   out,
	}
}

// Launch starts the driver, launches the browser and opens the shared context.
func (l *PlaywrightLauncher) Launch(_ context.Context, opts LaunchOptions) (Engine, error) {
	runOpts := l.runOptions(opts.Engine)
	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := browserType(pw, opts.Engine).Launch(playwrightLaunchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create context: %w", err)
	}

	return &playwrightEngine{pw: pw, browser: browser, bctx: bctx, opts: opts}, nil
}

func browserType(pw *playwright.Playwright, engine config.EngineType) playwright.BrowserType {
	switch engine.Product() {
	case config.EngineFirefox:
		return pw.Firefox
	case config.EngineWebKit:
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

func playwrightLaunchOptions(opts LaunchOptions) playwright.BrowserTypeLaunchOptions {
	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if ch := opts.Engine.Channel(); ch != "" {
		launch.Channel = playwright.String(ch)
	}
	if opts.ExecutablePath != "" {
		launch.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	return launch
}

type playwrightEngine struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	opts    LaunchOptions
}

func (e *playwrightEngine) NewPage(_ context.Context) (Page, error) {
	page, err := e.bctx.NewPage()
	if err != nil {
		return nil, err
	}
	page.SetDefaultTimeout(millis(e.opts.ActionTimeout))
	page.SetDefaultNavigationTimeout(millis(e.opts.NavigationTimeout))
	return &playwrightPage{page: page}, nil
}

func (e *playwrightEngine) Close() error {
	var errs []error
	if err := e.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := e.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	return errors.Join(errs...)
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Navigate(_ context.Context, url string) error {
	_, err := p.page.Goto(url)
	return err
}

func (p *playwrightPage) Title(_ context.Context) (string, error) {
	return p.page.Title()
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Click(_ context.Context, selector string) error {
	return p.page.Locator(selector).First().Click()
}

func (p *playwrightPage) ClickText(_ context.Context, text string) error {
	return p.page.GetByText(text).First().Click()
}

func (p *playwrightPage) Fill(_ context.Context, selector, text string) error {
	return p.page.Locator(selector).First().Fill(text)
}

func (p *playwrightPage) TextContent(_ context.Context, selector string) (string, error) {
	return p.page.Locator(selector).First().TextContent()
}

func (p *playwrightPage) Content(_ context.Context) (string, error) {
	return p.page.Content()
}

func (p *playwrightPage) Screenshot(_ context.Context, selector string) ([]byte, error) {
	if selector != "" {
		return p.page.Locator(selector).First().Screenshot()
	}
	return p.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
}

func (p *playwrightPage) WaitForSelector(_ context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(millis(timeout)),
	})
	return err
}

func (p *playwrightPage) Close() error {
	return p.page.Close()
}

// millis converts to the float milliseconds playwright expects.
func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
