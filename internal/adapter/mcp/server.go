// Package mcp exposes read-only inspection tools over the Model Context
// Protocol so agent tooling can examine task logs and derived states.
package mcp

import (
	"context"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/domain/task"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/taskstore"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/service"
)

// Server wraps an MCP server exposing the inspection tool set.
type Server struct {
	mcpServer *mcpserver.MCPServer
	sse       *mcpserver.SSEServer
	ctxsvc    *service.ContextService
	store     taskstore.Store
	addr      string
}

// NewServer creates the inspection server with all tools registered.
func NewServer(addr string, ctxsvc *service.ContextService, store taskstore.Store) *Server {
	ms := mcpserver.NewMCPServer(
		"engine-lever-core",
		"0.1.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithRecovery(),
	)

	s := &Server{
		mcpServer: ms,
		ctxsvc:    ctxsvc,
		store:     store,
		addr:      addr,
	}
	s.registerTools()
	return s
}

// Start serves MCP over HTTP/SSE on the configured address. It blocks
// until Stop is called.
func (s *Server) Start() error {
	s.sse = mcpserver.NewSSEServer(s.mcpServer,
		mcpserver.WithBaseURL("http://"+s.addr),
		mcpserver.WithStaticBasePath("/mcp"),
	)
	slog.Info("mcp server listening", "addr", s.addr)
	return s.sse.Start(s.addr)
}

// Stop shuts down the SSE transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.sse == nil {
		return nil
	}
	return s.sse.Shutdown(ctx)
}

// activeStatuses are the coarse statuses list_active_tasks reports.
var activeStatuses = []task.Status{
	task.StatusCreated,
	task.StatusInProgress,
	task.StatusPausedForInput,
}
