package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/louisbranch/authless-calculator/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// serverName identifies the calculator to MCP clients.
	serverName = "Authless Calculator"
	// serverVersion identifies the calculator version.
	serverVersion = Version

	sessionFlightKey = "session"
)

// Version is the calculator release reported to clients and telemetry.
const Version = "1.0.0"

// ErrInitialization wraps every failure raised while building session state.
var ErrInitialization = errors.New("session initialization failed")

// SessionState is the process-wide state shared by every request once
// initialization has completed. It is never mutated afterwards.
type SessionState struct {
	Registry      *domain.Registry
	MCPServer     *mcp.Server
	InitializedAt time.Time
}

// InitFunc builds session state. It may block on sub-steps.
type InitFunc func(ctx context.Context) (*SessionState, error)

// Initializer guarantees SessionState is built once per process. Concurrent
// first callers share one in-flight attempt; a failed attempt is not cached,
// so a later call starts a new one.
type Initializer struct {
	build   InitFunc
	flight  singleflight.Group
	state   atomic.Pointer[SessionState]
	log     zerolog.Logger
	metrics *Metrics
}

// NewInitializer creates an initializer around build.
func NewInitializer(build InitFunc, logger zerolog.Logger, metrics *Metrics) *Initializer {
	if build == nil {
		build = DefaultSessionState
	}
	return &Initializer{
		build:   build,
		log:     logger.With().Str("component", "session").Logger(),
		metrics: metrics,
	}
}

// Ensure returns the initialized session state, building it if needed.
// Cancelling ctx only abandons this caller's wait; the shared attempt keeps
// running for the other waiters.
func (i *Initializer) Ensure(ctx context.Context) (*SessionState, error) {
	if state := i.state.Load(); state != nil {
		return state, nil
	}

	ch := i.flight.DoChan(sessionFlightKey, func() (any, error) {
		if state := i.state.Load(); state != nil {
			return state, nil
		}
		started := time.Now()
		state, err := i.build(context.WithoutCancel(ctx))
		if err == nil && state == nil {
			err = errors.New("initializer returned no state")
		}
		if err != nil {
			i.metrics.observeInitialization(false)
			i.log.Error().Err(err).Dur("elapsed", time.Since(started)).Msg("session initialization failed")
			return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
		}
		if state.InitializedAt.IsZero() {
			state.InitializedAt = time.Now()
		}
		i.state.Store(state)
		i.metrics.observeInitialization(true)
		i.log.Info().Int("operations", state.Registry.Len()).Dur("elapsed", time.Since(started)).Msg("session initialized")
		return state, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*SessionState), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ready reports whether initialization has completed.
func (i *Initializer) Ready() bool {
	return i.state.Load() != nil
}

// DefaultSessionState builds the registry with the calculator operations and
// the MCP SDK server that mirrors it.
func DefaultSessionState(ctx context.Context) (*SessionState, error) {
	registry := domain.NewRegistry()
	if err := domain.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("register operations: %w", err)
	}
	server, err := newMCPServer(registry)
	if err != nil {
		return nil, err
	}
	return &SessionState{Registry: registry, MCPServer: server}, nil
}
