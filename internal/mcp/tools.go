package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"universal-browser-mcp/internal/browser"

	"github.com/sirupsen/logrus"
)

const (
	defaultWaitTimeoutMs = 30000
	maxWaitTimeoutMs     = 10 * 60 * 1000
)

// waitTimeout reads the timeout argument in ms. Non-positive values mean the
// default; large ones are capped so the conversion cannot overflow.
func waitTimeout(args map[string]interface{}) time.Duration {
	ms := getIntArg(args, "timeout", defaultWaitTimeoutMs)
	switch {
	case ms <= 0:
		ms = defaultWaitTimeoutMs
	case ms > maxWaitTimeoutMs:
		ms = maxWaitTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// catalog returns one tool per Operation, in declaration order.
func catalog(sessions *browser.SessionManager) []Tool {
	return []Tool{
		&NavigateTool{sessions: sessions},
		&ClickTool{sessions: sessions},
		&TypeTool{sessions: sessions},
		&GetTextTool{sessions: sessions},
		&GetPageContentTool{sessions: sessions},
		&TakeScreenshotTool{sessions: sessions},
		&NewPageTool{sessions: sessions},
		&SwitchPageTool{sessions: sessions},
		&GetPagesTool{sessions: sessions},
		&WaitForSelectorTool{sessions: sessions},
		&GetBrowserInfoTool{sessions: sessions},
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

func pageIDProp() map[string]interface{} {
	return stringProp("Page to act on (defaults to the active page)")
}

type NavigateTool struct {
	sessions *browser.SessionManager
}

func (t *NavigateTool) Name() string { return string(OpNavigate) }
func (t *NavigateTool) Description() string {
	return `Navigate to a URL.

Loads the URL in the given page (or the active page) and waits for the load
event. Returns the URL and the resulting page title.`
}
func (t *NavigateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":     stringProp("URL to load"),
			"page_id": pageIDProp(),
		},
		"required": []string{"url"},
	}
}
func (t *NavigateTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	url, err := requireStringArg(args, "url")
	if err != nil {
		return nil, err
	}
	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}

	if err := page.Navigate(ctx, url); err != nil {
		return nil, err
	}
	title, err := page.Title(ctx)
	if err != nil {
		return nil, err
	}
	return textResult("Navigated to %s\nTitle: %s", url, title), nil
}

type ClickTool struct {
	sessions *browser.SessionManager
}

func (t *ClickTool) Name() string { return string(OpClick) }
func (t *ClickTool) Description() string {
	return `Click on an element by selector.

Clicks the first element matching the CSS selector. If nothing matches, the
selector is retried as visible text and the first element containing it is
clicked.`
}
func (t *ClickTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": stringProp("CSS selector, or visible text of the element"),
			"page_id":  pageIDProp(),
		},
		"required": []string{"selector"},
	}
}
func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	selector, err := requireStringArg(args, "selector")
	if err != nil {
		return nil, err
	}
	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}

	selErr := page.Click(ctx, selector)
	if selErr == nil {
		return textResult("Clicked element at selector: %s", selector), nil
	}
	log := loggerFrom(ctx).WithField("selector", selector)
	log.WithError(selErr).Warn("selector click failed, trying text match")

	if textErr := page.ClickText(ctx, selector); textErr != nil {
		log.WithError(textErr).Debug("text match failed")
		return nil, fmt.Errorf("could not find element with selector or text '%s': %w", selector, browser.ErrElementNotFound)
	}
	return textResult("Clicked element with text: %s", selector), nil
}

type TypeTool struct {
	sessions *browser.SessionManager
}

func (t *TypeTool) Name() string { return string(OpType) }
func (t *TypeTool) Description() string {
	return "Type text into an input element, replacing its current value."
}
func (t *TypeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": stringProp("CSS selector of the input"),
			"text":     stringProp("Text to enter (may be empty to clear the field)"),
			"page_id":  pageIDProp(),
		},
		"required": []string{"selector", "text"},
	}
}
func (t *TypeTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	selector, err := requireStringArg(args, "selector")
	if err != nil {
		return nil, err
	}
	if !hasArg(args, "text") {
		return nil, fmt.Errorf("%w: text", ErrMissingArgument)
	}
	text := getStringArg(args, "text")

	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}
	if err := page.Fill(ctx, selector, text); err != nil {
		return nil, err
	}
	return textResult("Typed '%s' into %s", text, selector), nil
}

type GetTextTool struct {
	sessions *browser.SessionManager
}

func (t *GetTextTool) Name() string { return string(OpGetText) }
func (t *GetTextTool) Description() string {
	return "Get text content from an element."
}
func (t *GetTextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": stringProp("CSS selector of the element"),
			"page_id":  pageIDProp(),
		},
		"required": []string{"selector"},
	}
}
func (t *GetTextTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	selector, err := requireStringArg(args, "selector")
	if err != nil {
		return nil, err
	}
	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}
	text, err := page.TextContent(ctx, selector)
	if err != nil {
		return nil, err
	}
	return &Result{Text: text}, nil
}

type GetPageContentTool struct {
	sessions *browser.SessionManager
}

func (t *GetPageContentTool) Name() string { return string(OpGetPageContent) }
func (t *GetPageContentTool) Description() string {
	return "Get the current page HTML content."
}
func (t *GetPageContentTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id": pageIDProp(),
		},
	}
}
func (t *GetPageContentTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}
	content, err := page.Content(ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Text: content}, nil
}

type TakeScreenshotTool struct {
	sessions *browser.SessionManager
}

func (t *TakeScreenshotTool) Name() string { return string(OpTakeScreenshot) }
func (t *TakeScreenshotTool) Description() string {
	return `Take a screenshot of the current page.

Captures the full page as PNG, or only the element matching selector when
one is given. Returned as base64 image content.`
}
func (t *TakeScreenshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id":  pageIDProp(),
			"selector": stringProp("Optional CSS selector to capture a single element"),
		},
	}
}
func (t *TakeScreenshotTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}
	png, err := page.Screenshot(ctx, getStringArg(args, "selector"))
	if err != nil {
		return nil, err
	}
	return imageResult(png), nil
}

type NewPageTool struct {
	sessions *browser.SessionManager
}

func (t *NewPageTool) Name() string { return string(OpNewPage) }
func (t *NewPageTool) Description() string {
	return `Create a new browser page.

Opens a tab in the shared browser context under page_id and makes it the
active page. Fails if page_id is already in use.`
}
func (t *NewPageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id": stringProp("Identifier for the new page"),
		},
		"required": []string{"page_id"},
	}
}
func (t *NewPageTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	pageID, err := requireStringArg(args, "page_id")
	if err != nil {
		return nil, err
	}
	if err := t.sessions.NewPage(ctx, pageID); err != nil {
		return nil, err
	}
	return textResult("Created new page with ID: %s", pageID), nil
}

type SwitchPageTool struct {
	sessions *browser.SessionManager
}

func (t *SwitchPageTool) Name() string { return string(OpSwitchPage) }
func (t *SwitchPageTool) Description() string {
	return "Switch to a different browser page. Later calls without page_id act on it."
}
func (t *SwitchPageTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"page_id": stringProp("Identifier of an existing page"),
		},
		"required": []string{"page_id"},
	}
}
func (t *SwitchPageTool) Execute(_ context.Context, args map[string]interface{}) (*Result, error) {
	pageID, err := requireStringArg(args, "page_id")
	if err != nil {
		return nil, err
	}
	if err := t.sessions.SwitchPage(pageID); err != nil {
		return nil, err
	}
	return textResult("Switched to page: %s", pageID), nil
}

type GetPagesTool struct {
	sessions *browser.SessionManager
}

func (t *GetPagesTool) Name() string { return string(OpGetPages) }
func (t *GetPagesTool) Description() string {
	return "List all available browser pages as \"id: url\" lines."
}
func (t *GetPagesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetPagesTool) Execute(_ context.Context, _ map[string]interface{}) (*Result, error) {
	pages := t.sessions.Pages()
	lines := make([]string, 0, len(pages))
	for _, p := range pages {
		lines = append(lines, fmt.Sprintf("%s: %s", p.ID, p.URL))
	}
	return &Result{Text: "Available pages:\n" + strings.Join(lines, "\n")}, nil
}

type WaitForSelectorTool struct {
	sessions *browser.SessionManager
}

func (t *WaitForSelectorTool) Name() string { return string(OpWaitForSelector) }
func (t *WaitForSelectorTool) Description() string {
	return `Wait for an element to be visible on the page.

Blocks until the selector matches a visible element or timeout (ms, default
30000) elapses. A timeout is reported as text, not as an error.`
}
func (t *WaitForSelectorTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"selector": stringProp("CSS selector to wait for"),
			"page_id":  pageIDProp(),
			"timeout": map[string]interface{}{
				"type":        "number",
				"description": "Timeout in milliseconds (default 30000, at most 600000)",
			},
		},
		"required": []string{"selector"},
	}
}
func (t *WaitForSelectorTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	selector, err := requireStringArg(args, "selector")
	if err != nil {
		return nil, err
	}
	timeout := waitTimeout(args)
	page, err := t.sessions.Page(getStringArg(args, "page_id"))
	if err != nil {
		return nil, err
	}

	if err := page.WaitForSelector(ctx, selector, timeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		loggerFrom(ctx).WithFields(logrus.Fields{
			"selector":   selector,
			"timeout_ms": timeout.Milliseconds(),
		}).WithError(err).Debug("wait_for_selector timed out")
		return textResult("Timeout waiting for element: %s", selector), nil
	}
	return textResult("Element found: %s", selector), nil
}

type GetBrowserInfoTool struct {
	sessions *browser.SessionManager
}

func (t *GetBrowserInfoTool) Name() string { return string(OpGetBrowserInfo) }
func (t *GetBrowserInfoTool) Description() string {
	return "Get information about the current browser session: engine, headless flag, page ids and the active page."
}
func (t *GetBrowserInfoTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *GetBrowserInfoTool) Execute(_ context.Context, _ map[string]interface{}) (*Result, error) {
	info, err := json.MarshalIndent(t.sessions.Info(), "", "  ")
	if err != nil {
		return nil, err
	}
	return &Result{Text: "Browser Info:\n" + string(info)}, nil
}
