package mcp

import (
	"context"
	"errors"
	"testing"

	"universal-browser-mcp/internal/browser/browsertest"
	"universal-browser-mcp/internal/config"
	"universal-browser-mcp/internal/recorder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherCatalog(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)
	tools := env.server.dispatcher.Tools()

	require.Len(t, tools, len(Operations))
	for i, tool := range tools {
		assert.Equal(t, string(Operations[i]), tool.Name(), "catalog order at %d", i)
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)

	_, err := env.call(t, "close_page", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownOperation))
	assert.Contains(t, err.Error(), "close_page")
	assert.Empty(t, env.launcher.Launches(), "unknown operations must not launch the browser")
}

func TestDispatchLazyStart(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)
	assert.False(t, env.sessions.IsRunning())

	env.mustCall(t, "get_pages", nil)
	env.mustCall(t, "get_pages", nil)

	assert.True(t, env.sessions.IsRunning())
	assert.Len(t, env.launcher.Launches(), 1)
}

func TestDispatchLaunchFailure(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)
	env.launcher.FailLaunches = 1

	_, err := env.call(t, "navigate", map[string]interface{}{"url": "https://example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, browsertest.ErrLaunch))
	assert.False(t, env.sessions.IsRunning())

	result := env.mustCall(t, "navigate", map[string]interface{}{"url": "https://example.com"})
	assert.Contains(t, result.Text, "Navigated to https://example.com")
	assert.Len(t, env.launcher.Launches(), 2)
}

func TestDispatchOnChange(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)
	calls := 0
	env.server.dispatcher.OnChange(func(context.Context) { calls++ })

	env.mustCall(t, "get_pages", nil)
	assert.Equal(t, 1, calls)

	_, err := env.call(t, "switch_page", map[string]interface{}{"page_id": "nope"})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "failed calls must not signal a change")

	_, err = env.call(t, "bogus", nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDispatchNilArgs(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)

	_, err := env.call(t, "navigate", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingArgument))
	assert.Contains(t, err.Error(), "url")
}

type callLog struct {
	calls []recorder.Call
}

func (c *callLog) Record(call recorder.Call) { c.calls = append(c.calls, call) }

func TestDispatchRecordsCalls(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)
	trace := &callLog{}
	env.server.SetRecorder(trace)

	env.mustCall(t, "new_page", map[string]interface{}{"page_id": "second"})
	_, err := env.call(t, "switch_page", map[string]interface{}{"page_id": "ghost"})
	require.Error(t, err)
	_, err = env.call(t, "bogus", nil)
	require.Error(t, err)

	require.Len(t, trace.calls, 2, "unknown tools are not traced")
	assert.Equal(t, "new_page", trace.calls[0].Tool)
	assert.Equal(t, "second", trace.calls[0].PageID)
	assert.Empty(t, trace.calls[0].Error)
	assert.NotEmpty(t, trace.calls[0].CallID)
	assert.NotEqual(t, trace.calls[0].CallID, trace.calls[1].CallID)
	assert.Equal(t, "switch_page", trace.calls[1].Tool)
	assert.Contains(t, trace.calls[1].Error, "ghost")
}
