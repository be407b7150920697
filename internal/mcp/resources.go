package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"universal-browser-mcp/internal/browser"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	screenshotScheme = "screenshot"
	resourceMIMEPNG  = "image/png"

	notificationResourcesListChanged = "notifications/resources/list_changed"
)

const screenshotPrefix = screenshotScheme + "://"

// screenshotURI escapes pageID so any page key round-trips through
// parseScreenshotURI.
func screenshotURI(pageID string) string {
	return screenshotPrefix + url.PathEscape(pageID)
}

func (s *Server) registerAllResources() {
	if s == nil || s.mcpServer == nil {
		return
	}

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			screenshotScheme+"://{page_id}",
			"Page Screenshot",
			mcp.WithTemplateMIMEType(resourceMIMEPNG),
			mcp.WithTemplateDescription("Current PNG screenshot of an open page, addressed by page id."),
		),
		s.handleScreenshotResource,
	)
}

// refreshResources publishes one screenshot resource per open page and tells
// clients the list may have changed. AddResource notifies on its own, so the
// explicit notification is only sent when nothing was re-added.
func (s *Server) refreshResources(_ context.Context) {
	pages := s.sessions.Pages()

	s.resMu.Lock()
	defer s.resMu.Unlock()
	changed := false
	for _, p := range pages {
		uri := screenshotURI(p.ID)
		if s.published[uri] == p.URL {
			continue
		}
		s.mcpServer.AddResource(
			mcp.NewResource(
				uri,
				"Screenshot: "+p.URL,
				mcp.WithResourceDescription("Current screenshot of page at "+p.URL),
				mcp.WithMIMEType(resourceMIMEPNG),
			),
			s.handleScreenshotResource,
		)
		s.published[uri] = p.URL
		changed = true
	}
	if !changed {
		s.mcpServer.SendNotificationToAllClients(notificationResourcesListChanged, nil)
	}
}

func (s *Server) handleScreenshotResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	png, err := s.readScreenshot(ctx, request.Params.URI)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.BlobResourceContents{
			URI:      request.Params.URI,
			MIMEType: resourceMIMEPNG,
			Blob:     base64.StdEncoding.EncodeToString(png),
		},
	}, nil
}

// readScreenshot captures the page a screenshot:// URI points at. It never
// launches the browser: before the first tool call no page exists.
func (s *Server) readScreenshot(ctx context.Context, uri string) ([]byte, error) {
	pageID, err := parseScreenshotURI(uri)
	if err != nil {
		return nil, err
	}
	page, err := s.sessions.Page(pageID)
	if err != nil {
		return nil, err
	}
	return page.Screenshot(ctx, "")
}

func parseScreenshotURI(raw string) (string, error) {
	escaped, ok := strings.CutPrefix(raw, screenshotPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, raw)
	}
	if escaped == "" {
		return "", fmt.Errorf("%w: %s", browser.ErrPageNotFound, raw)
	}
	pageID, err := url.PathUnescape(escaped)
	if err != nil {
		return "", fmt.Errorf("invalid resource URI %q: %w", raw, err)
	}
	return pageID, nil
}
