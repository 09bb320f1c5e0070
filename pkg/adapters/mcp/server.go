// Package mcp exposes a running engine as a Model Context Protocol server, so agents
// can dispatch actions, list handlers and read the state snapshot as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/ripple/pkg/domain"
	"github.com/aretw0/ripple/pkg/epic"
	"github.com/aretw0/ripple/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// HandlersURI is the resource describing the registered handlers.
const HandlersURI = "ripple://handlers"

// DispatchResponse is the structured result of dispatch_action.
type DispatchResponse struct {
	ID   string `json:"id" jsonschema_description:"Identifier assigned to the dispatched action"`
	Type string `json:"type" jsonschema_description:"The dispatched action type"`
}

// StateResponse is the structured result of get_state.
type StateResponse struct {
	Path  string `json:"path,omitempty" jsonschema_description:"The selected state path, empty for the whole snapshot"`
	Value any    `json:"value" jsonschema_description:"The selected value"`
}

// HandlersResponse is the structured result of list_handlers.
type HandlersResponse struct {
	Handlers []epic.Info `json:"handlers" jsonschema_description:"Registered handlers in registration order"`
}

// Server wraps a runtime and exposes it as an MCP Server.
type Server struct {
	runtime   ports.Runtime
	validate  func(domain.Action) error
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithValidator checks every action before dispatch.
func WithValidator(fn func(domain.Action) error) Option {
	return func(s *Server) {
		s.validate = fn
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(rt ports.Runtime, version string, opts ...Option) *Server {
	s := &Server{
		runtime:   rt,
		logger:    slog.New(slog.DiscardHandler),
		mcpServer: server.NewMCPServer("ripple-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	dispatchTool := mcp.NewTool("dispatch_action",
		mcp.WithDescription("Dispatch an action into the running timeline. Handlers react asynchronously; read state or handlers afterwards to observe the effect."),
		mcp.WithString("type", mcp.Required(), mcp.Description("The action type, e.g. catalog/TEXT_SEARCH")),
		mcp.WithString("payload", mcp.Description("JSON encoded payload (optional)")),
		mcp.WithOutputSchema[DispatchResponse](),
	)
	s.mcpServer.AddTool(dispatchTool, mcp.NewStructuredToolHandler(s.handleDispatch))

	stateTool := mcp.NewTool("get_state",
		mcp.WithDescription("Read the current state snapshot, or the value at a dotted path."),
		mcp.WithString("path", mcp.Description("Dotted state path, e.g. geoprocessing.enabled (optional)")),
		mcp.WithOutputSchema[StateResponse](),
	)
	s.mcpServer.AddTool(stateTool, mcp.NewStructuredToolHandler(s.handleGetState))

	handlersTool := mcp.NewTool("list_handlers",
		mcp.WithDescription("List the registered handlers with their triggers, strategies and status."),
		mcp.WithOutputSchema[HandlersResponse](),
	)
	s.mcpServer.AddTool(handlersTool, mcp.NewStructuredToolHandler(s.handleListHandlers))
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DispatchResponse, error) {
	actionType, _ := args["type"].(string)
	if actionType == "" {
		return DispatchResponse{}, errors.New("type is required")
	}

	var payload any
	if raw, ok := args["payload"].(string); ok && strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return DispatchResponse{}, fmt.Errorf("payload is not valid JSON: %w", err)
		}
	}

	act := domain.NewAction(actionType, payload)
	if s.validate != nil {
		if err := s.validate(act); err != nil {
			s.logger.Warn("MCP dispatch rejected", "action", actionType, "err", err)
			return DispatchResponse{}, fmt.Errorf("action rejected: %w", err)
		}
	}
	if err := s.runtime.Dispatch(act); err != nil {
		return DispatchResponse{}, fmt.Errorf("dispatch failed: %w", err)
	}
	s.logger.Debug("MCP dispatch", "action", actionType, "id", act.Meta.ID)
	return DispatchResponse{ID: act.Meta.ID, Type: act.Type}, nil
}

func (s *Server) handleGetState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	path, _ := args["path"].(string)
	state := s.runtime.State()
	if path == "" {
		return StateResponse{Value: state.Tree()}, nil
	}
	v, ok := state.Get(path)
	if !ok {
		return StateResponse{}, fmt.Errorf("%w: %s", domain.ErrStateNotFound, path)
	}
	return StateResponse{Path: path, Value: v}, nil
}

func (s *Server) handleListHandlers(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (HandlersResponse, error) {
	return HandlersResponse{Handlers: s.runtime.Handlers()}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(HandlersURI, "Registered Handlers",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.runtime.Handlers())
		if err != nil {
			return nil, fmt.Errorf("failed to encode handlers: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      HandlersURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
