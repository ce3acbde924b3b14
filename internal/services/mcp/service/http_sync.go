package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// syncHandler answers with a single buffered JSON-RPC response.
type syncHandler struct {
	sessions *Initializer
	exchange exchange
}

// Handle implements TransportHandler.
func (h *syncHandler) Handle(w http.ResponseWriter, r *http.Request) string {
	body, rep, ok := readRequestBody(r)
	if !ok {
		writeReply(w, rep)
		return rep.outcome()
	}

	state, err := h.sessions.Ensure(r.Context())
	if err != nil {
		writeReply(w, initializationFailed(err))
		return outcomeInitFailed
	}

	rep = h.exchange.handle(r.Context(), state, body)
	writeReply(w, rep)
	return rep.outcome()
}

// readRequestBody drains the request body. On failure it returns the error
// reply to send instead.
func readRequestBody(r *http.Request) ([]byte, reply, bool) {
	if r.Body == nil {
		return nil, errorReply(nil, newRPCError(http.StatusBadRequest, codeParseError, "Parse error")), false
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errorReply(nil, newRPCError(http.StatusRequestEntityTooLarge, codeInvalidRequest, "Request body too large")), false
		}
		return nil, errorReply(nil, newRPCError(http.StatusBadRequest, codeParseError, "Failed to read request body")), false
	}
	return body, reply{}, true
}

// writeReply writes rep as a JSON response, or a bare 202 for notifications.
func writeReply(w http.ResponseWriter, rep reply) {
	if rep.notification {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	data, err := json.Marshal(rep.response)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"},"id":null}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = w.Write(data)
}
