package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializerBuildsOnceUnderConcurrency(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	build := func(ctx context.Context) (*SessionState, error) {
		builds.Add(1)
		<-release
		return DefaultSessionState(ctx)
	}
	sessions := NewInitializer(build, zerolog.Nop(), nil)

	const callers = 32
	states := make([]*SessionState, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			states[i], errs[i] = sessions.Ensure(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, states[0], states[i])
	}
	assert.True(t, sessions.Ready())
	assert.Equal(t, 2, states[0].Registry.Len())
	assert.NotNil(t, states[0].MCPServer)
	assert.False(t, states[0].InitializedAt.IsZero())
}

func TestInitializerRetriesAfterFailure(t *testing.T) {
	var builds atomic.Int32
	boom := errors.New("boom")
	build := func(ctx context.Context) (*SessionState, error) {
		if builds.Add(1) == 1 {
			return nil, boom
		}
		return DefaultSessionState(ctx)
	}
	metrics := NewMetrics()
	sessions := NewInitializer(build, zerolog.Nop(), metrics)

	_, err := sessions.Ensure(context.Background())
	require.ErrorIs(t, err, ErrInitialization)
	require.ErrorIs(t, err, boom)
	assert.False(t, sessions.Ready())

	state, err := sessions.Ensure(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.True(t, sessions.Ready())

	again, err := sessions.Ensure(context.Background())
	require.NoError(t, err)
	assert.Same(t, state, again)
	assert.Equal(t, int32(2), builds.Load())
}

func TestInitializerRejectsNilState(t *testing.T) {
	sessions := NewInitializer(func(context.Context) (*SessionState, error) {
		return nil, nil
	}, zerolog.Nop(), nil)

	_, err := sessions.Ensure(context.Background())
	require.ErrorIs(t, err, ErrInitialization)
}

func TestInitializerWaiterCancellation(t *testing.T) {
	release := make(chan struct{})
	build := func(ctx context.Context) (*SessionState, error) {
		<-release
		return DefaultSessionState(ctx)
	}
	sessions := NewInitializer(build, zerolog.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := sessions.Ensure(ctx)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled waiter did not return")
	}

	// The shared attempt keeps running and completes for later callers.
	close(release)
	state, err := sessions.Ensure(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, state)
}
