package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"universal-browser-mcp/internal/browser"
	"universal-browser-mcp/internal/recorder"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownOperation is returned for tool names outside the catalog.
	ErrUnknownOperation = errors.New("unknown tool")
	// ErrMissingArgument is returned when a required tool argument is absent.
	ErrMissingArgument = errors.New("missing required argument")
	// ErrUnsupportedScheme is returned when reading a resource URI that is not screenshot://.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
)

// Operation names one tool of the catalog.
type Operation string

const (
	OpNavigate        Operation = "navigate"
	OpClick           Operation = "click"
	OpType            Operation = "type"
	OpGetText         Operation = "get_text"
	OpGetPageContent  Operation = "get_page_content"
	OpTakeScreenshot  Operation = "take_screenshot"
	OpNewPage         Operation = "new_page"
	OpSwitchPage      Operation = "switch_page"
	OpGetPages        Operation = "get_pages"
	OpWaitForSelector Operation = "wait_for_selector"
	OpGetBrowserInfo  Operation = "get_browser_info"
)

// Operations is the closed set of tools, in catalog order.
var Operations = []Operation{
	OpNavigate,
	OpClick,
	OpType,
	OpGetText,
	OpGetPageContent,
	OpTakeScreenshot,
	OpNewPage,
	OpSwitchPage,
	OpGetPages,
	OpWaitForSelector,
	OpGetBrowserInfo,
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (*Result, error)
}

// Result is what a tool hands back: text, or image bytes with their MIME type.
type Result struct {
	Text     string
	Image    []byte
	MIMEType string
}

func textResult(format string, a ...interface{}) *Result {
	return &Result{Text: fmt.Sprintf(format, a...)}
}

func imageResult(png []byte) *Result {
	return &Result{Image: png, MIMEType: resourceMIMEPNG}
}

// Dispatcher maps operation names to tools. Every call first makes sure the
// browser is running; successful calls fire the change hook.
type Dispatcher struct {
	sessions *browser.SessionManager
	log      logrus.FieldLogger
	tools    map[Operation]Tool
	order    []Tool
	onChange func(context.Context)
	trace    CallRecorder
}

// CallRecorder receives one record per dispatched call.
type CallRecorder interface {
	Record(recorder.Call)
}

// NewDispatcher builds the dispatch table from the catalog and fails if any
// Operation lacks a tool or a tool has no Operation.
func NewDispatcher(sessions *browser.SessionManager, log logrus.FieldLogger) (*Dispatcher, error) {
	d := &Dispatcher{
		sessions: sessions,
		log:      log,
		tools:    make(map[Operation]Tool),
	}

	known := make(map[Operation]bool, len(Operations))
	for _, op := range Operations {
		known[op] = true
	}

	for _, tool := range catalog(sessions) {
		op := Operation(tool.Name())
		if !known[op] {
			return nil, fmt.Errorf("tool %s is not a declared operation", op)
		}
		if _, dup := d.tools[op]; dup {
			return nil, fmt.Errorf("duplicate tool %s", op)
		}
		d.tools[op] = tool
		d.order = append(d.order, tool)
	}
	for _, op := range Operations {
		if _, ok := d.tools[op]; !ok {
			return nil, fmt.Errorf("no tool for operation %s", op)
		}
	}
	return d, nil
}

// Tools returns the catalog in declaration order.
func (d *Dispatcher) Tools() []Tool {
	return append([]Tool(nil), d.order...)
}

// OnChange registers fn to run after every successful call.
func (d *Dispatcher) OnChange(fn func(context.Context)) {
	d.onChange = fn
}

// SetRecorder traces every dispatched call to rec.
func (d *Dispatcher) SetRecorder(rec CallRecorder) {
	d.trace = rec
}

// Dispatch runs the named tool. Unknown names fail before the browser is touched.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	tool, ok := d.tools[Operation(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	callID := uuid.NewString()
	log := d.log.WithFields(logrus.Fields{
		"tool":    name,
		"call_id": callID,
	})
	log.Debug("tool call")
	start := time.Now()

	result, err := d.execute(withLogger(ctx, log), tool, args)
	d.record(callID, name, getStringArg(args, "page_id"), start, err)
	if err != nil {
		log.WithError(err).Warn("tool call failed")
		return nil, err
	}
	log.WithField("duration", time.Since(start)).Debug("tool call complete")

	if d.onChange != nil {
		d.onChange(ctx)
	}
	return result, nil
}

func (d *Dispatcher) execute(ctx context.Context, tool Tool, args map[string]interface{}) (*Result, error) {
	if err := d.sessions.Start(ctx); err != nil {
		return nil, err
	}
	return tool.Execute(ctx, args)
}

func (d *Dispatcher) record(callID, name, pageID string, start time.Time, err error) {
	if d.trace == nil {
		return
	}
	call := recorder.Call{
		Timestamp:  start,
		CallID:     callID,
		Tool:       name,
		PageID:     pageID,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		call.Error = err.Error()
	}
	d.trace.Record(call)
}
