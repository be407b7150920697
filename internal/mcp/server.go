package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"universal-browser-mcp/internal/browser"
	"universal-browser-mcp/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// Server wires the MCP runtime to the tool dispatcher and the browser session.
type Server struct {
	sessions   *browser.SessionManager
	dispatcher *Dispatcher
	log        logrus.FieldLogger
	mcpServer  *mcpserver.MCPServer

	resMu     sync.Mutex
	published map[string]string // resource URI -> page URL it was published with
}

// NewServer constructs the MCP server and registers every tool and the
// screenshot resource template.
func NewServer(cfg config.Config, sessions *browser.SessionManager, log logrus.FieldLogger) (*Server, error) {
	dispatcher, err := NewDispatcher(sessions, log)
	if err != nil {
		return nil, err
	}

	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	server := &Server{
		sessions:   sessions,
		dispatcher: dispatcher,
		log:        log,
		mcpServer:  mcpSrv,
		published:  make(map[string]string),
	}
	dispatcher.OnChange(server.refreshResources)

	server.registerAllTools()
	server.registerAllResources()
	return server, nil
}

// Start serves MCP over stdin/stdout until ctx is cancelled or stdin closes.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("SSE server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool dispatches a tool call directly, bypassing the MCP transport.
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	return s.dispatcher.Dispatch(ctx, name, args)
}

// SetRecorder traces every tool call to rec.
func (s *Server) SetRecorder(rec CallRecorder) {
	s.dispatcher.SetRecorder(rec)
}

// MCPServer exposes the underlying runtime (used by tests and embedders).
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerAllTools() {
	for _, tool := range s.dispatcher.Tools() {
		s.registerTool(tool)
	}
}

func (s *Server) registerTool(tool Tool) {
	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := s.dispatcher.Dispatch(ctx, tool.Name(), request.GetArguments())
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}
		return toCallToolResult(result), nil
	}
}

func toCallToolResult(result *Result) *mcp.CallToolResult {
	if result == nil {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent("")}}
	}
	if result.Image != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewImageContent(base64.StdEncoding.EncodeToString(result.Image), result.MIMEType),
			},
		}
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(result.Text)},
	}
}
