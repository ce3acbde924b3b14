package cmd

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/authless-calculator/internal/platform/otel"
	"github.com/louisbranch/authless-calculator/internal/platform/timeouts"
	"github.com/rs/zerolog"
)

// ServiceCalculator names the calculator in telemetry and CLI output.
const ServiceCalculator = "calculator"

// RunOptions controls shared entrypoint behavior for service commands.
type RunOptions struct {
	// Telemetry selects the trace exporter. ServiceName defaults to the service.
	Telemetry otel.Options
	// ShutdownTimeout sets the timeout used when stopping telemetry.
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// RunWithTelemetry configures observability and executes a service run loop.
func RunWithTelemetry(ctx context.Context, service string, options RunOptions, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if options.Telemetry.ServiceName == "" {
		options.Telemetry.ServiceName = service
	}
	shutdown, err := otel.Setup(ctx, options.Telemetry)
	if err != nil {
		return err
	}
	if options.Telemetry.Enabled() {
		options.Logger.Info().Str("endpoint", options.Telemetry.Endpoint).Msg("tracing enabled")
	}
	defer func() {
		shutdownTimeout := options.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = timeouts.TelemetryShutdown
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			options.Logger.Warn().Err(err).Str("service", service).Msg("otel shutdown failed")
		}
	}()
	return run(ctx)
}
