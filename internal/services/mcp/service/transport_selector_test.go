package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportSelectorClassify(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		want        TransportDecision
	}{
		{name: "stream true", target: "/mcp", contentType: "application/json", body: `{"stream":true,"tool":"add"}`, want: ServerPush},
		{name: "stream false", target: "/mcp", contentType: "application/json", body: `{"stream":false}`, want: Synchronous},
		{name: "no stream field", target: "/mcp", contentType: "application/json", body: `{"tool":"add"}`, want: Synchronous},
		{name: "charset suffix", target: "/mcp", contentType: "application/json; charset=utf-8", body: `{"stream":true}`, want: ServerPush},
		{name: "query parameter", target: "/mcp?transportType=streamable-http", contentType: "text/plain", body: `hello`, want: ServerPush},
		{name: "other query value", target: "/mcp?transportType=sse", contentType: "application/json", body: `{}`, want: Synchronous},
		{name: "non json content type", target: "/mcp", contentType: "text/plain", body: `{"stream":true}`, want: Synchronous},
		{name: "malformed body", target: "/mcp", contentType: "application/json", body: `{"stream":`, want: Synchronous},
		{name: "stream not boolean", target: "/mcp", contentType: "application/json", body: `{"stream":"yes"}`, want: Synchronous},
		{name: "other path", target: "/other?transportType=streamable-http", contentType: "application/json", body: `{"stream":true}`, want: Synchronous},
	}
	selector := TransportSelector{Endpoint: "/mcp", MaxBodyBytes: 1024}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			assert.Equal(t, tt.want, selector.Classify(req))
		})
	}
}

func TestTransportSelectorRestoresBody(t *testing.T) {
	body := `{"stream":true,"tool":"add","a":1,"b":2}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	require.Equal(t, ServerPush, TransportSelector{Endpoint: "/mcp"}.Classify(req))

	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestTransportSelectorOversizedBody(t *testing.T) {
	body := `{"stream":true,"padding":"` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	assert.Equal(t, Synchronous, TransportSelector{Endpoint: "/mcp", MaxBodyBytes: 16}.Classify(req))

	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestTransportDecisionString(t *testing.T) {
	assert.Equal(t, "synchronous", Synchronous.String())
	assert.Equal(t, "server-push", ServerPush.String())
}
