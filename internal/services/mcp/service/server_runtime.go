package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
)

// defaultHTTPAddr keeps the default footprint local.
const defaultHTTPAddr = "localhost:8787"

// TransportKind identifies how the calculator is served.
type TransportKind string

const (
	// TransportStdio serves MCP over standard input/output.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves the HTTP endpoint with synchronous and push replies.
	TransportHTTP TransportKind = "http"
)

// Config configures the calculator service.
type Config struct {
	Transport         TransportKind
	HTTPAddr          string
	Endpoint          string
	MaxBodyBytes      int64
	StreamHeartbeat   time.Duration
	MaxStreamLifetime time.Duration
	RateLimitRPS      float64
	RateLimitBurst    int
	MetricsEnabled    bool
	Logger            zerolog.Logger

	// Build overrides how session state is created. Nil uses DefaultSessionState.
	Build InitFunc
}

// Run serves the calculator until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportHTTP
	}

	var metrics *Metrics
	if cfg.MetricsEnabled {
		metrics = NewMetrics()
	}
	sessions := NewInitializer(cfg.Build, cfg.Logger, metrics)

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, sessions, &mcp.StdioTransport{})
	case TransportHTTP:
		return NewHTTPServer(cfg, sessions, metrics).Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithTransport initializes session state eagerly and serves its SDK
// server over transport.
func runWithTransport(ctx context.Context, sessions *Initializer, transport mcp.Transport) error {
	state, err := sessions.Ensure(ctx)
	if err != nil {
		return err
	}
	if state.MCPServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	err = state.MCPServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
