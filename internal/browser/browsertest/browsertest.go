// Package browsertest provides an in-memory browser engine for tests.
package browsertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"time"

	"universal-browser-mcp/internal/browser"
)

// ErrLaunch is returned by Launcher for each scripted launch failure.
var ErrLaunch = errors.New("browsertest: launch failed")

// Launcher records launches and hands out fake engines.
type Launcher struct {
	mu sync.Mutex
	// FailLaunches makes the next N launches fail with ErrLaunch.
	FailLaunches int
	// FailNewPage makes NewPage on engines fail.
	FailNewPage bool
	// Setup runs on every page an engine opens.
	Setup func(*Page)

	launches []browser.LaunchOptions
	engines  []*Engine
}

func (l *Launcher) Launch(_ context.Context, opts browser.LaunchOptions) (browser.Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.launches = append(l.launches, opts)
	if l.FailLaunches > 0 {
		l.FailLaunches--
		return nil, ErrLaunch
	}
	e := &Engine{launcher: l}
	l.engines = append(l.engines, e)
	return e, nil
}

// Launches returns the options of every launch attempt.
func (l *Launcher) Launches() []browser.LaunchOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.LaunchOptions(nil), l.launches...)
}

// Engines returns every successfully launched engine.
func (l *Launcher) Engines() []*Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Engine(nil), l.engines...)
}

// Engine is a fake browser with one shared context.
type Engine struct {
	launcher *Launcher

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

func (e *Engine) NewPage(_ context.Context) (browser.Page, error) {
	e.launcher.mu.Lock()
	failNewPage, setup := e.launcher.FailNewPage, e.launcher.Setup
	e.launcher.mu.Unlock()
	if failNewPage {
		return nil, errors.New("browsertest: new page failed")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("browsertest: engine closed")
	}
	p := NewPage()
	if setup != nil {
		setup(p)
	}
	e.pages = append(e.pages, p)
	return p, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Pages returns every page opened on this engine.
func (e *Engine) Pages() []*Page {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Page(nil), e.pages...)
}

// Page is a fake tab. Elements maps CSS selectors to their visible text.
type Page struct {
	mu       sync.Mutex
	url      string
	titles   map[string]string
	elements map[string]string
	values   map[string]string
	clicks   []string
	closed   bool
}

func NewPage() *Page {
	return &Page{
		url:      "about:blank",
		titles:   make(map[string]string),
		elements: make(map[string]string),
		values:   make(map[string]string),
	}
}

// AddElement makes selector resolvable with the given visible text.
func (p *Page) AddElement(selector, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = text
}

// SetTitle sets the title reported after navigating to url.
func (p *Page) SetTitle(url, title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles[url] = title
}

// Clicks returns what was clicked: selectors, or "text=<t>" for text matches.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Value returns what Fill last wrote into selector.
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[selector]
}

func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !strings.Contains(url, "://") && !strings.HasPrefix(url, "about:") {
		return fmt.Errorf("Protocol error (Page.navigate): Cannot navigate to invalid URL %q", url)
	}
	p.url = url
	return nil
}

func (p *Page) Title(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if title, ok := p.titles[p.url]; ok {
		return title, nil
	}
	if p.url == "about:blank" {
		return "", nil
	}
	return "Fake page " + p.url, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) lookup(selector string) (string, error) {
	text, ok := p.elements[selector]
	if !ok {
		return "", fmt.Errorf("Timeout 30000ms exceeded waiting for locator(%q)", selector)
	}
	return text, nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.lookup(selector); err != nil {
		return err
	}
	p.clicks = append(p.clicks, selector)
	return nil
}

func (p *Page) ClickText(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sel := range p.sortedSelectors() {
		if strings.Contains(p.elements[sel], text) {
			p.clicks = append(p.clicks, "text="+text)
			return nil
		}
	}
	return fmt.Errorf("Timeout 30000ms exceeded waiting for get_by_text(%q)", text)
}

func (p *Page) Fill(_ context.Context, selector, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.lookup(selector); err != nil {
		return err
	}
	p.values[selector] = text
	return nil
}

func (p *Page) TextContent(_ context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lookup(selector)
}

func (p *Page) Content(ctx context.Context) (string, error) {
	title, _ := p.Title(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	var body strings.Builder
	for _, sel := range p.sortedSelectors() {
		fmt.Fprintf(&body, "<div data-selector=%q>%s</div>", sel, html.EscapeString(p.elements[sel]))
	}
	return fmt.Sprintf("<html><head><title>%s</title></head><body>%s</body></html>", html.EscapeString(title), body.String()), nil
}

func (p *Page) Screenshot(_ context.Context, selector string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if selector != "" {
		if _, err := p.lookup(selector); err != nil {
			return nil, err
		}
	}
	return PNG(), nil
}

// WaitForSelector returns at once for known selectors, otherwise after timeout.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	_, err := p.lookup(selector)
	p.mu.Unlock()
	if err == nil {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("Timeout %dms exceeded waiting for selector %q", timeout.Milliseconds(), selector)
	}
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) sortedSelectors() []string {
	keys := make([]string, 0, len(p.elements))
	for k := range p.elements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PNG returns a real 1x1 PNG image.
func PNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
