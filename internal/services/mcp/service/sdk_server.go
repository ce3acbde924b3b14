package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/authless-calculator/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// newMCPServer builds an SDK server whose tools mirror the registry. It backs
// the stdio transport; HTTP requests are answered by the dispatcher directly.
func newMCPServer(registry *domain.Registry) (server *mcp.Server, err error) {
	server = mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)

	// AddTool panics on malformed tool definitions.
	defer func() {
		if r := recover(); r != nil {
			server = nil
			err = fmt.Errorf("register mcp tools: %v", r)
		}
	}()
	for _, op := range registry.List() {
		server.AddTool(toolFor(op), toolHandler(op))
	}
	return server, nil
}

// toolHandler adapts an operation to the SDK's low-level tool handler.
// Validation failures are reported as tool errors so the client sees which
// fields were rejected.
func toolHandler(op domain.Operation) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args []byte
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}
		result, err := op.Invoke(ctx, args)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: verr.Error()}},
				}, nil
			}
			return nil, err
		}
		return result.CallToolResult(), nil
	}
}
