package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectInMemory(t *testing.T, ctx context.Context, sessions *Initializer) (*mcp.ClientSession, <-chan error) {
	t.Helper()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- runWithTransport(ctx, sessions, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer clientCancel()

	session, err := client.Connect(clientCtx, clientTransport, nil)
	require.NoError(t, err)
	return session, serveErr
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", result.Content[0])
	return text.Text
}

func TestRunWithTransportServesAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, serveErr := connectInMemory(t, ctx, NewInitializer(nil, zerolog.Nop(), nil))
	defer session.Close()

	cancel()

	select {
	case err := <-serveErr:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestStdioBridgeCallsOperations(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, _ := connectInMemory(t, ctx, NewInitializer(nil, zerolog.Nop(), nil))
	defer session.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()

	tools, err := session.ListTools(callCtx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.Equal(t, []string{"add", "calculate"}, names)

	result, err := session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      "add",
		Arguments: map[string]any{"a": 2, "b": 3},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "5", toolText(t, result))

	result, err = session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      "calculate",
		Arguments: map[string]any{"operation": "divide", "a": 10, "b": 0},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "Error: Cannot divide by zero", toolText(t, result))

	result, err = session.CallTool(callCtx, &mcp.CallToolParams{
		Name:      "calculate",
		Arguments: map[string]any{"operation": "modulo", "a": 10, "b": 3},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(t, result), "operation: must be one of")
}

func TestRunWithTransportInitializationFailure(t *testing.T) {
	sessions := NewInitializer(func(context.Context) (*SessionState, error) {
		return nil, errors.New("no registry")
	}, zerolog.Nop(), nil)
	serverTransport, _ := mcp.NewInMemoryTransports()

	err := runWithTransport(context.Background(), sessions, serverTransport)
	require.ErrorIs(t, err, ErrInitialization)
}

func TestRunUnsupportedTransport(t *testing.T) {
	err := Run(context.Background(), Config{Transport: "websocket", Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not supported"), err.Error())
}
