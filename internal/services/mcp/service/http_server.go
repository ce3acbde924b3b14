package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/louisbranch/authless-calculator/internal/platform/timeouts"
	"github.com/rs/zerolog"
)

var listenTCP = net.Listen

// HTTPServer serves the calculator endpoint together with health and metrics
// routes.
type HTTPServer struct {
	addr       string
	dispatcher *Dispatcher
	sessions   *Initializer
	metrics    *Metrics
	limiter    *clientRateLimiter
	log        zerolog.Logger
	router     chi.Router
	httpServer *http.Server
}

// NewHTTPServer builds the router for cfg. metrics may be nil.
func NewHTTPServer(cfg Config, sessions *Initializer, metrics *Metrics) *HTTPServer {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = defaultHTTPAddr
	}
	logger := cfg.Logger.With().Str("component", "http").Logger()
	s := &HTTPServer{
		addr: addr,
		dispatcher: NewDispatcher(sessions, DispatcherOptions{
			Endpoint:          cfg.Endpoint,
			MaxBodyBytes:      cfg.MaxBodyBytes,
			StreamHeartbeat:   cfg.StreamHeartbeat,
			MaxStreamLifetime: cfg.MaxStreamLifetime,
			Logger:            cfg.Logger,
			Metrics:           metrics,
		}),
		sessions: sessions,
		metrics:  metrics,
		limiter:  newClientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		log:      logger,
	}
	s.router = s.routes()
	return s
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	// The dispatcher owns path and method checks for everything else.
	r.With(s.limiter.middleware).Handle("/*", s.dispatcher)
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
	OpenStreams int    `json:"open_streams"`
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:      "ok",
		Initialized: s.sessions.Ready(),
		OpenStreams: s.dispatcher.OpenStreams(),
	})
}

// Start serves HTTP until ctx is cancelled, then closes open push streams and
// shuts the server down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	listener, err := listenTCP("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.log.Info().Str("addr", listener.Addr().String()).Msg("serving calculator over HTTP")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down HTTP server")
		s.dispatcher.CloseStreams()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}
