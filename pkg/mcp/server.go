// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the pipeline as tools over the Model Context
// Protocol, on stdio or streamable HTTP.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the mcp-go server.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a named MCP server.
func NewServer(name, version string) *Server {
	return &Server{
		mcpServer: server.NewMCPServer(name, version),
	}
}

// RegisterTool registers a tool. Argument schema is declared through the
// mcp-go tool options.
func (s *Server) RegisterTool(name, description string, opts []mcp.ToolOption, handler func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)) {
	toolOpts := append([]mcp.ToolOption{mcp.WithDescription(description)}, opts...)
	tool := mcp.NewTool(name, toolOpts...)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]interface{})
		return handler(ctx, args)
	})
}

// ServeStdio serves over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeStreamableHTTP serves the streamable HTTP transport on addr.
func (s *Server) ServeStreamableHTTP(addr string) error {
	return server.NewStreamableHTTPServer(s.mcpServer).Start(addr)
}
