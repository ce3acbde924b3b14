package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603

	// codeRateLimited is a server-defined code for throttled clients.
	codeRateLimited = -32029
)

// MCP methods answered by the HTTP endpoint.
const (
	methodInitialize = "initialize"
	methodPing       = "ping"
	methodToolsList  = "tools/list"
	methodToolsCall  = "tools/call"
)

// defaultProtocolVersion is reported when the client does not ask for one.
const defaultProtocolVersion = "2025-06-18"

var errBodyTooLarge = errors.New("request body too large")

// rpcError is a JSON-RPC error object. status is the HTTP status used by the
// synchronous transport and is not serialized.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	status  int
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func newRPCError(status, code int, message string) *rpcError {
	return &rpcError{Code: code, Message: message, status: status}
}

// rpcResponse is the JSON-RPC response written by both transports.
type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

// envelope is a decoded request body. JSON-RPC requests fill method/params;
// flat shorthand bodies keep their raw fields for resolution against the
// registry.
type envelope struct {
	id           any
	notification bool
	method       string
	params       json.RawMessage
	flat         map[string]json.RawMessage
}

// toolCallParams is the params object of tools/call.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// initializeParams is the subset of initialize params the endpoint reads.
type initializeParams struct {
	ProtocolVersion string `json:"protocolVersion"`
}

// decodeEnvelope parses a request body. Bodies carrying "jsonrpc" or "method"
// are decoded as JSON-RPC; any other JSON object is a flat shorthand call.
func decodeEnvelope(body []byte) (envelope, *rpcError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return envelope{}, newRPCError(http.StatusBadRequest, codeParseError, "Parse error")
	}

	_, hasVersion := fields["jsonrpc"]
	_, hasMethod := fields["method"]
	if !hasVersion && !hasMethod {
		return envelope{flat: fields, method: methodToolsCall}, nil
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		return envelope{}, newRPCError(http.StatusBadRequest, codeInvalidRequest, "Invalid JSON-RPC message")
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		return envelope{}, newRPCError(http.StatusBadRequest, codeInvalidRequest, "Invalid message type: response")
	}

	env := envelope{method: req.Method, params: req.Params}
	var zeroID jsonrpc.ID
	if req.ID == zeroID {
		env.notification = true
	} else {
		env.id = req.ID.Raw()
	}
	return env, nil
}

// flatString returns the string value of a flat body field.
func (e envelope) flatString(name string) (string, bool) {
	raw, ok := e.flat[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// flatArguments re-encodes the flat body without the named control fields.
func (e envelope) flatArguments(drop ...string) json.RawMessage {
	args := make(map[string]json.RawMessage, len(e.flat))
	for k, v := range e.flat {
		args[k] = v
	}
	for _, k := range drop {
		delete(args, k)
	}
	data, err := json.Marshal(args)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
