package service

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// pushHandler answers over a Server-Sent Events stream. The JSON-RPC response
// is sent as the first "message" event; the stream then stays open with
// heartbeat comments until the client leaves, the server closes streams, or
// the optional maximum lifetime elapses.
type pushHandler struct {
	sessions    *Initializer
	exchange    exchange
	heartbeat   time.Duration
	maxLifetime time.Duration

	mu      sync.Mutex
	streams map[string]chan struct{}
	closed  bool
}

func newPushHandler(sessions *Initializer, x exchange, heartbeat, maxLifetime time.Duration) *pushHandler {
	return &pushHandler{
		sessions:    sessions,
		exchange:    x,
		heartbeat:   heartbeat,
		maxLifetime: maxLifetime,
		streams:     make(map[string]chan struct{}),
	}
}

// Handle implements TransportHandler.
func (h *pushHandler) Handle(w http.ResponseWriter, r *http.Request) string {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeReply(w, errorReply(nil, newRPCError(http.StatusInternalServerError, codeInternalError, "Streaming unsupported")))
		return outcomeError
	}

	body, rep, ok := readRequestBody(r)
	if !ok {
		writeReply(w, rep)
		return rep.outcome()
	}

	ctx := r.Context()
	state, err := h.sessions.Ensure(ctx)
	if err != nil {
		writeReply(w, initializationFailed(err))
		return outcomeInitFailed
	}

	rep = h.exchange.handle(ctx, state, body)
	if rep.notification {
		writeReply(w, rep)
		return rep.outcome()
	}

	streamID := uuid.NewString()
	done, ok := h.open(streamID)
	if !ok {
		writeReply(w, errorReply(rep.response.ID, newRPCError(http.StatusServiceUnavailable, codeInternalError, "Server is shutting down")))
		return outcomeUnavailable
	}
	defer h.release(streamID)

	log := h.exchange.log.With().Str("stream_id", streamID).Str("operation", rep.operation).Logger()
	log.Debug().Msg("stream opened")
	defer func() { log.Debug().Msg("stream closed") }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rep.response); err != nil {
		return rep.outcome()
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	var expired <-chan time.Time
	if h.maxLifetime > 0 {
		timer := time.NewTimer(h.maxLifetime)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return rep.outcome()
		case <-done:
			return rep.outcome()
		case <-expired:
			return rep.outcome()
		case <-ticker.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				return rep.outcome()
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes payload as one SSE "message" event.
func writeEvent(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: message\ndata: %s\n\n", uuid.NewString(), data)
	return err
}

// open registers a stream. It fails once closeAll has run.
func (h *pushHandler) open(id string) (<-chan struct{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	done := make(chan struct{})
	h.streams[id] = done
	h.exchange.metrics.streamOpened()
	return done, true
}

func (h *pushHandler) release(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[id]; !ok {
		return
	}
	delete(h.streams, id)
	h.exchange.metrics.streamClosed()
}

func (h *pushHandler) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	// Entries stay until their handler releases them.
	for _, done := range h.streams {
		close(done)
	}
}

func (h *pushHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams)
}
