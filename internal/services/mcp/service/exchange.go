package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/louisbranch/authless-calculator/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Flat shorthand control fields. They select the operation or the transport
// and are stripped from the arguments where noted.
const (
	flatToolField      = "tool"
	flatOperationField = "operation"
	flatStreamField    = "stream"
)

// reply is the transport-independent outcome of one exchange.
type reply struct {
	status       int
	operation    string
	notification bool
	response     rpcResponse
}

// Outcome labels recorded per request.
const (
	outcomeOK           = "ok"
	outcomeError        = "error"
	outcomeNotification = "notification"
	outcomeInitFailed   = "init_failed"
	outcomeUnavailable  = "unavailable"
)

// outcome labels the reply for metrics.
func (r reply) outcome() string {
	switch {
	case r.notification:
		return outcomeNotification
	case r.response.Error != nil:
		return outcomeError
	default:
		return outcomeOK
	}
}

// exchange runs one decoded request against initialized session state. It is
// shared by the synchronous and server-push handlers.
type exchange struct {
	log     zerolog.Logger
	metrics *Metrics
}

// errorReply builds a JSON-RPC error reply.
func errorReply(id any, err *rpcError) reply {
	status := err.status
	if status == 0 {
		status = http.StatusOK
	}
	return reply{status: status, response: rpcResponse{JSONRPC: "2.0", Error: err, ID: id}}
}

// initializationFailed is the reply for requests that could not get session state.
func initializationFailed(err error) reply {
	rpcErr := newRPCError(http.StatusInternalServerError, codeInternalError, "Server initialization failed")
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		rpcErr = newRPCError(http.StatusServiceUnavailable, codeInternalError, "Request cancelled during initialization")
	}
	return errorReply(nil, rpcErr)
}

// handle decodes body, resolves the target, validates, and invokes it.
func (x exchange) handle(ctx context.Context, state *SessionState, body []byte) reply {
	env, rpcErr := decodeEnvelope(body)
	if rpcErr != nil {
		return errorReply(nil, rpcErr)
	}
	if env.notification {
		return reply{status: http.StatusAccepted, notification: true}
	}

	switch env.method {
	case methodInitialize:
		return x.initialize(env)
	case methodPing:
		return resultReply(env.id, struct{}{})
	case methodToolsList:
		return resultReply(env.id, listTools(state.Registry))
	case methodToolsCall:
		return x.callTool(ctx, state.Registry, env)
	default:
		rpcErr := newRPCError(http.StatusOK, codeMethodNotFound, "Method not found")
		rpcErr.Data = map[string]string{"method": env.method}
		return errorReply(env.id, rpcErr)
	}
}

func resultReply(id any, result any) reply {
	return reply{status: http.StatusOK, response: rpcResponse{JSONRPC: "2.0", Result: result, ID: id}}
}

func (x exchange) initialize(env envelope) reply {
	version := defaultProtocolVersion
	var params initializeParams
	if len(env.params) > 0 && json.Unmarshal(env.params, &params) == nil && params.ProtocolVersion != "" {
		version = params.ProtocolVersion
	}
	return resultReply(env.id, &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    &mcp.ServerCapabilities{Tools: &mcp.ToolCapabilities{}},
		ServerInfo:      &mcp.Implementation{Name: serverName, Version: serverVersion},
	})
}

// resolve picks the operation a call targets and the raw arguments for it.
func resolve(registry *domain.Registry, env envelope) (domain.Operation, json.RawMessage, error) {
	if env.flat == nil {
		var params toolCallParams
		if len(env.params) > 0 {
			if err := json.Unmarshal(env.params, &params); err != nil {
				return domain.Operation{}, nil, errInvalidCallParams
			}
		}
		if params.Name == "" {
			return domain.Operation{}, nil, errInvalidCallParams
		}
		op, err := registry.Lookup(params.Name)
		return op, params.Arguments, err
	}

	if name, ok := env.flatString(flatToolField); ok && name != "" {
		op, err := registry.Lookup(name)
		return op, env.flatArguments(flatToolField, flatStreamField), err
	}
	name, ok := env.flatString(flatOperationField)
	if !ok || name == "" {
		return domain.Operation{}, nil, errInvalidCallParams
	}
	if op, err := registry.Lookup(name); err == nil {
		return op, env.flatArguments(flatOperationField, flatStreamField), nil
	}
	op, err := registry.AcceptingEnum(flatOperationField, name)
	return op, env.flatArguments(flatStreamField), err
}

var errInvalidCallParams = errors.New("tool call requires an operation name")

func (x exchange) callTool(ctx context.Context, registry *domain.Registry, env envelope) reply {
	op, args, err := resolve(registry, env)
	if err != nil {
		rpcErr := newRPCError(http.StatusOK, codeInvalidParams, err.Error())
		if errors.Is(err, domain.ErrOperationNotFound) {
			rpcErr.Message = "Unknown operation"
			rpcErr.Data = map[string]string{"detail": err.Error()}
		}
		return errorReply(env.id, rpcErr)
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("calculator.operation", op.Name))

	started := time.Now()
	result, err := op.Invoke(ctx, args)
	elapsed := time.Since(started)
	if err != nil {
		x.metrics.observeOperation(op.Name, "invalid", elapsed)
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			rpcErr := newRPCError(http.StatusOK, codeInvalidParams, verr.Error())
			rpcErr.Data = map[string]any{"operation": op.Name, "fields": verr.Fields}
			out := errorReply(env.id, rpcErr)
			out.operation = op.Name
			return out
		}
		x.log.Error().Err(err).Str("operation", op.Name).Msg("operation failed")
		out := errorReply(env.id, newRPCError(http.StatusOK, codeInternalError, "Operation failed"))
		out.operation = op.Name
		return out
	}
	x.metrics.observeOperation(op.Name, "ok", elapsed)

	out := resultReply(env.id, result)
	out.operation = op.Name
	return out
}

// listTools describes the registry as MCP tools.
func listTools(registry *domain.Registry) *mcp.ListToolsResult {
	ops := registry.List()
	tools := make([]*mcp.Tool, 0, len(ops))
	for _, op := range ops {
		tools = append(tools, toolFor(op))
	}
	return &mcp.ListToolsResult{Tools: tools}
}

func toolFor(op domain.Operation) *mcp.Tool {
	return &mcp.Tool{
		Name:        op.Name,
		Description: op.Description,
		InputSchema: op.Schema.JSONSchema(),
	}
}
