package mcp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"universal-browser-mcp/internal/browser"
	"universal-browser-mcp/internal/browser/browsertest"
	"universal-browser-mcp/internal/config"
	"universal-browser-mcp/internal/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server   *Server
	launcher *browsertest.Launcher
	sessions *browser.SessionManager
}

// newTestEnv builds a server over the in-memory engine. setup runs on every
// page the engine opens.
func newTestEnv(t *testing.T, cfg config.Config, setup func(*browsertest.Page)) *testEnv {
	t.Helper()
	launcher := &browsertest.Launcher{Setup: setup}
	log := logging.NullLogger()
	sessions := browser.NewSessionManager(cfg.Browser, launcher, log)
	t.Cleanup(func() { _ = sessions.Shutdown(context.Background()) })

	server, err := NewServer(cfg, sessions, log)
	require.NoError(t, err)
	return &testEnv{server: server, launcher: launcher, sessions: sessions}
}

func (e *testEnv) call(t *testing.T, name string, args map[string]interface{}) (*Result, error) {
	t.Helper()
	return e.server.ExecuteTool(context.Background(), name, args)
}

func (e *testEnv) mustCall(t *testing.T, name string, args map[string]interface{}) *Result {
	t.Helper()
	result, err := e.call(t, name, args)
	require.NoError(t, err, "tool %s", name)
	require.NotNil(t, result)
	return result
}

func (e *testEnv) handle(t *testing.T, request string) map[string]interface{} {
	t.Helper()
	resp := e.server.MCPServer().HandleMessage(context.Background(), json.RawMessage(request))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func TestNewServer(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)

	assert.NotNil(t, env.server.MCPServer())
	assert.Len(t, env.server.dispatcher.Tools(), len(Operations))
	assert.Empty(t, env.launcher.Launches(), "constructing the server must not launch a browser")
}

func TestServerToolsList(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)

	resp := env.handle(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok, "unexpected response: %v", resp)
	tools, ok := result["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, len(Operations))

	byName := make(map[string]map[string]interface{})
	for _, raw := range tools {
		tool := raw.(map[string]interface{})
		byName[tool["name"].(string)] = tool
	}
	for _, op := range Operations {
		tool, ok := byName[string(op)]
		if !assert.True(t, ok, "missing tool %s", op) {
			continue
		}
		assert.NotEmpty(t, tool["description"])
		schema := tool["inputSchema"].(map[string]interface{})
		assert.Equal(t, "object", schema["type"])
	}

	navSchema := byName["navigate"]["inputSchema"].(map[string]interface{})
	assert.Equal(t, []interface{}{"url"}, navSchema["required"])
	waitProps := byName["wait_for_selector"]["inputSchema"].(map[string]interface{})["properties"].(map[string]interface{})
	assert.Equal(t, "number", waitProps["timeout"].(map[string]interface{})["type"])
}

func TestServerToolsCall(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)

	resp := env.handle(t, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"navigate","arguments":{"url":"https://example.com"}}}`)
	result, ok := resp["result"].(map[string]interface{})
	require.True(t, ok, "unexpected response: %v", resp)
	assert.NotEqual(t, true, result["isError"])

	content := result["content"].([]interface{})
	require.Len(t, content, 1)
	text := content[0].(map[string]interface{})["text"].(string)
	assert.Contains(t, text, "Navigated to https://example.com")
}

func TestWrapToolError(t *testing.T) {
	env := newTestEnv(t, config.DefaultConfig(), nil)
	handler := env.server.wrapTool(env.server.dispatcher.tools[OpClick])

	req := mcp.CallToolRequest{}
	req.Params.Name = string(OpClick)
	req.Params.Arguments = map[string]interface{}{"selector": "#missing"}

	result, err := handler(context.Background(), req)
	require.NoError(t, err, "tool failures are results, not protocol errors")
	assert.True(t, result.IsError)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "tool click failed")
	assert.Contains(t, text.Text, "#missing")
}

func TestToCallToolResult(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		result := toCallToolResult(&Result{Text: "hello"})
		require.Len(t, result.Content, 1)
		text, ok := result.Content[0].(mcp.TextContent)
		require.True(t, ok)
		assert.Equal(t, "hello", text.Text)
		assert.False(t, result.IsError)
	})

	t.Run("image", func(t *testing.T) {
		png := browsertest.PNG()
		result := toCallToolResult(imageResult(png))
		require.Len(t, result.Content, 1)
		img, ok := result.Content[0].(mcp.ImageContent)
		require.True(t, ok)
		assert.Equal(t, "image/png", img.MIMEType)
		decoded, err := base64.StdEncoding.DecodeString(img.Data)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(png, decoded))
	})

	t.Run("nil", func(t *testing.T) {
		result := toCallToolResult(nil)
		require.Len(t, result.Content, 1)
	})
}
