// Package mcp exposes the search pipeline to AI assistants over the Model
// Context Protocol, via stdio or streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/thejusdutt/google-search-mcp/internal/pipeline"
)

// Version is the MCP server version.
const Version = "1.0.0"

// Server hosts the search tools.
type Server struct {
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
	server   *mcp.Server
}

// NewServer wires the tool handlers over the given pipeline.
func NewServer(p *pipeline.Pipeline, logger *slog.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("pipeline is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: p,
		logger:   logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "google-search-mcp",
			Version: Version,
		}, nil),
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP over stdio. It blocks until the context is cancelled or
// the transport closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves MCP over streamable HTTP on addr, shutting down gracefully
// when the context is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("mcp server listening", "addr", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
