package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
)

// RodLauncher drives Chromium-family browsers directly over CDP.
type RodLauncher struct{}

// Launch starts Chrome via Rod's launcher, connects, and opens one incognito
// context shared by every page.
func (RodLauncher) Launch(_ context.Context, opts LaunchOptions) (Engine, error) {
	if !opts.Engine.IsChromiumFamily() {
		return nil, fmt.Errorf("%w: rod drives Chromium-family browsers only, got %s", ErrUnsupportedEngine, opts.Engine)
	}

	bin, err := rodBinary(opts)
	if err != nil {
		return nil, err
	}

	l := applyLaunchFlags(launcher.New().Headless(opts.Headless), opts.Args)
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, fmt.Errorf("launch %s: %w", opts.Engine, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to %s: %w", opts.Engine, err)
	}

	incognito, err := browser.Incognito()
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	return &rodEngine{launcher: l, browser: browser, incognito: incognito, opts: opts}, nil
}

// rodBinary picks the executable: explicit path first, then the system
// browser for branded channels. Plain chromium falls through to Rod's managed build.
func rodBinary(opts LaunchOptions) (string, error) {
	if opts.ExecutablePath != "" {
		return opts.ExecutablePath, nil
	}
	if opts.Engine.Channel() == "" {
		return "", nil
	}
	path, found := launcher.LookPath()
	if !found {
		return "", fmt.Errorf("no %s executable found; set browser.executable_path", opts.Engine)
	}
	return path, nil
}

// applyLaunchFlags translates "--name=value" style arguments into launcher flags.
func applyLaunchFlags(l *launcher.Launcher, args []string) *launcher.Launcher {
	for _, rawFlag := range args {
		name, val, hasVal := parseLaunchFlag(rawFlag)
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func parseLaunchFlag(raw string) (name, val string, hasVal bool) {
	flagStr := strings.TrimLeft(strings.TrimSpace(raw), "-")
	return strings.Cut(flagStr, "=")
}

type rodEngine struct {
	launcher  *launcher.Launcher
	browser   *rod.Browser
	incognito *rod.Browser
	opts      LaunchOptions
}

func (e *rodEngine) NewPage(ctx context.Context) (Page, error) {
	page, err := e.incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             e.opts.ViewportWidth,
		Height:            e.opts.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page.Context(ctx)); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	return &rodPage{
		page:              page,
		actionTimeout:     e.opts.ActionTimeout,
		navigationTimeout: e.opts.NavigationTimeout,
	}, nil
}

func (e *rodEngine) Close() error {
	err := e.browser.Close()
	if err != nil {
		e.launcher.Kill()
	}
	e.launcher.Cleanup()
	return err
}

type rodPage struct {
	page              *rod.Page
	actionTimeout     time.Duration
	navigationTimeout time.Duration
}

// scoped bounds every lookup; Rod otherwise retries element queries forever.
// The returned cancel must be called once the page and its elements are done.
func (p *rodPage) scoped(ctx context.Context, d time.Duration) (*rod.Page, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return p.page.Context(ctx), cancel
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg, cancel := p.scoped(ctx, p.navigationTimeout)
	defer cancel()
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Title(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

func (p *rodPage) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	pg, cancel := p.scoped(ctx, p.actionTimeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) ClickText(ctx context.Context, text string) error {
	pg, cancel := p.scoped(ctx, p.actionTimeout)
	defer cancel()
	el, err := pg.ElementX(textXPath(text))
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Fill(ctx context.Context, selector, text string) error {
	pg, cancel := p.scoped(ctx, p.actionTimeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (p *rodPage) TextContent(ctx context.Context, selector string) (string, error) {
	pg, cancel := p.scoped(ctx, p.actionTimeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (p *rodPage) Content(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

func (p *rodPage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if selector == "" {
		return p.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
	}
	pg, cancel := p.scoped(ctx, p.actionTimeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()
	el, err := pg.Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}

// textXPath matches the deepest elements whose normalized text contains text.
func textXPath(text string) string {
	lit := xpathLiteral(text)
	return fmt.Sprintf(`//body//*[contains(normalize-space(.), %s)][not(*[contains(normalize-space(.), %s)])]`, lit, lit)
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = `"` + part + `"`
	}
	return "concat(" + strings.Join(quoted, `, '"', `) + ")"
}
