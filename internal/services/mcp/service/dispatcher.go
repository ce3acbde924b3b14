package service

import (
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// defaultEndpoint is the path the calculator answers on.
	defaultEndpoint = "/mcp"
	// defaultMaxBodyBytes bounds request bodies read by either transport.
	defaultMaxBodyBytes = 1 << 20
	// defaultStreamHeartbeat is how often an idle push stream sends a comment.
	defaultStreamHeartbeat = 15 * time.Second

	tracerName = "github.com/louisbranch/authless-calculator/internal/services/mcp/service"
)

// TransportHandler answers one classified endpoint request. It returns the
// outcome label recorded in metrics.
type TransportHandler interface {
	Handle(w http.ResponseWriter, r *http.Request) string
}

// DispatcherOptions configures a Dispatcher. Zero values select defaults.
type DispatcherOptions struct {
	Endpoint          string
	MaxBodyBytes      int64
	StreamHeartbeat   time.Duration
	MaxStreamLifetime time.Duration
	Logger            zerolog.Logger
	Metrics           *Metrics
}

// Dispatcher is the HTTP entry point of the endpoint. It rejects other paths,
// classifies the request, and hands it to the transport handler for the
// decision.
type Dispatcher struct {
	endpoint     string
	maxBodyBytes int64
	selector     TransportSelector
	handlers     map[TransportDecision]TransportHandler
	push         *pushHandler
	log          zerolog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

// NewDispatcher wires the selector and both transport handlers around the session initializer.
func NewDispatcher(sessions *Initializer, opts DispatcherOptions) *Dispatcher {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.StreamHeartbeat <= 0 {
		opts.StreamHeartbeat = defaultStreamHeartbeat
	}
	logger := opts.Logger.With().Str("component", "dispatcher").Logger()
	x := exchange{log: logger, metrics: opts.Metrics}

	push := newPushHandler(sessions, x, opts.StreamHeartbeat, opts.MaxStreamLifetime)
	return &Dispatcher{
		endpoint:     opts.Endpoint,
		maxBodyBytes: opts.MaxBodyBytes,
		selector:     TransportSelector{Endpoint: opts.Endpoint, MaxBodyBytes: opts.MaxBodyBytes},
		handlers: map[TransportDecision]TransportHandler{
			Synchronous: &syncHandler{sessions: sessions, exchange: x},
			ServerPush:  push,
		},
		push:    push,
		log:     logger,
		metrics: opts.Metrics,
		tracer:  otel.Tracer(tracerName),
	}
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != d.endpoint {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "Not found")
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, span := d.tracer.Start(r.Context(), "mcp.request", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	r = r.WithContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, d.maxBodyBytes)

	decision := d.selector.Classify(r)
	span.SetAttributes(attribute.String("calculator.transport", decision.String()))

	started := time.Now()
	outcome := d.handlers[decision].Handle(w, r)
	if outcome == outcomeError || outcome == outcomeInitFailed {
		span.SetStatus(codes.Error, outcome)
	}
	d.metrics.observeRequest(decision.String(), outcome)
	d.log.Debug().
		Str("transport", decision.String()).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(started)).
		Msg("request handled")
}

// CloseStreams ends every open push stream and refuses new ones.
func (d *Dispatcher) CloseStreams() {
	d.push.closeAll()
}

// OpenStreams returns the number of push streams currently open.
func (d *Dispatcher) OpenStreams() int {
	return d.push.count()
}
