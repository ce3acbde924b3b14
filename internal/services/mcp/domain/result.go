package domain

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ContentTypeText is the only content type produced by calculator operations.
const ContentTypeText = "text"

// Content is one item of an operation result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the output of one operation invocation.
type Result struct {
	Content []Content `json:"content"`
}

// TextResult builds a single-item text result.
func TextResult(text string) Result {
	return Result{Content: []Content{{Type: ContentTypeText, Text: text}}}
}

// CallToolResult converts the result into the MCP SDK representation.
func (r Result) CallToolResult() *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(r.Content))
	for _, c := range r.Content {
		content = append(content, &mcp.TextContent{Text: c.Text})
	}
	return &mcp.CallToolResult{Content: content}
}
