// Package calculator parses calculator command configuration and runs the
// service on the selected transport.
package calculator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/authless-calculator/internal/platform/cmd"
	"github.com/louisbranch/authless-calculator/internal/platform/config"
	"github.com/louisbranch/authless-calculator/internal/platform/logging"
	"github.com/louisbranch/authless-calculator/internal/platform/otel"
	"github.com/louisbranch/authless-calculator/internal/services/mcp/service"
	"github.com/spf13/cobra"
)

// Config holds calculator command configuration.
type Config struct {
	HTTPAddr          string        `env:"CALCULATOR_HTTP_ADDR"           envDefault:"localhost:8787"`
	Transport         string        `env:"CALCULATOR_TRANSPORT"           envDefault:"http"`
	Endpoint          string        `env:"CALCULATOR_ENDPOINT"            envDefault:"/mcp"`
	MaxBodyBytes      int64         `env:"CALCULATOR_MAX_BODY_BYTES"      envDefault:"1048576"`
	StreamHeartbeat   time.Duration `env:"CALCULATOR_STREAM_HEARTBEAT"    envDefault:"15s"`
	StreamMaxLifetime time.Duration `env:"CALCULATOR_STREAM_MAX_LIFETIME" envDefault:"0s"`
	RateLimitRPS      float64       `env:"CALCULATOR_RATE_LIMIT_RPS"      envDefault:"0"`
	RateLimitBurst    int           `env:"CALCULATOR_RATE_LIMIT_BURST"    envDefault:"20"`
	LogLevel          string        `env:"CALCULATOR_LOG_LEVEL"           envDefault:"info"`
	LogFormat         string        `env:"CALCULATOR_LOG_FORMAT"          envDefault:"console"`
	MetricsEnabled    bool          `env:"CALCULATOR_METRICS_ENABLED"     envDefault:"true"`
	EnvFile           string        `env:"CALCULATOR_ENV_FILE"`
	OTelEndpoint      string        `env:"CALCULATOR_OTEL_ENDPOINT"`
	OTelEnabled       bool          `env:"CALCULATOR_OTEL_ENABLED"        envDefault:"true"`
}

// RunFunc runs the calculator with a parsed configuration.
type RunFunc func(ctx context.Context, cfg Config) error

// LoadConfig parses environ, then the dotenv file it names if any. Values
// in environ win over the file.
func LoadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	if err := config.ParseEnvWithLookup(&cfg, environ); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.EnvFile) == "" {
		return cfg, nil
	}
	merged, err := config.MergeEnvFile(cfg.EnvFile, environ)
	if err != nil {
		return Config{}, err
	}
	cfg = Config{}
	if err := config.ParseEnvWithLookup(&cfg, merged); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	switch service.TransportKind(c.Transport) {
	case service.TransportHTTP, service.TransportStdio:
	default:
		return fmt.Errorf("transport %q is not supported (want http or stdio)", c.Transport)
	}
	if !strings.HasPrefix(c.Endpoint, "/") {
		return fmt.Errorf("endpoint %q must start with /", c.Endpoint)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if c.StreamHeartbeat <= 0 {
		return fmt.Errorf("stream heartbeat must be positive, got %s", c.StreamHeartbeat)
	}
	if c.StreamMaxLifetime < 0 {
		return fmt.Errorf("stream max lifetime must not be negative, got %s", c.StreamMaxLifetime)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limit rps must not be negative, got %v", c.RateLimitRPS)
	}
	return nil
}

// NewCommand builds the root command. Environment values become flag
// defaults, so flags override them.
func NewCommand(environ map[string]string, run RunFunc) (*cobra.Command, error) {
	cfg, err := LoadConfig(environ)
	if err != nil {
		return nil, err
	}
	command := &cobra.Command{
		Use:           "calculator",
		Short:         "Serve the authless calculator over MCP",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(c.Context(), cfg)
		},
	}

	fs := command.Flags()
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "transport: http or stdio")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "HTTP path of the calculator endpoint")
	fs.Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "maximum request body size")
	fs.DurationVar(&cfg.StreamHeartbeat, "stream-heartbeat", cfg.StreamHeartbeat, "interval between push stream heartbeats")
	fs.DurationVar(&cfg.StreamMaxLifetime, "stream-max-lifetime", cfg.StreamMaxLifetime, "maximum push stream lifetime (0 keeps streams open)")
	fs.Float64Var(&cfg.RateLimitRPS, "rate-limit-rps", cfg.RateLimitRPS, "per-client requests per second (0 disables)")
	fs.IntVar(&cfg.RateLimitBurst, "rate-limit-burst", cfg.RateLimitBurst, "per-client burst size")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	fs.BoolVar(&cfg.MetricsEnabled, "metrics", cfg.MetricsEnabled, "expose Prometheus metrics on /metrics")
	return command, nil
}

// ParseConfig parses environ and args into a Config without running it.
func ParseConfig(args []string, environ map[string]string) (Config, error) {
	var parsed Config
	command, err := NewCommand(environ, func(_ context.Context, cfg Config) error {
		parsed = cfg
		return nil
	})
	if err != nil {
		return Config{}, err
	}
	if args == nil {
		args = []string{}
	}
	command.SetArgs(args)
	if err := command.Execute(); err != nil {
		return Config{}, err
	}
	return parsed, nil
}

// Run starts the calculator service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Format:  logging.Format(cfg.LogFormat),
		Service: cmd.ServiceCalculator,
	})
	if err != nil {
		return err
	}

	return cmd.RunWithTelemetry(ctx, cmd.ServiceCalculator, cmd.RunOptions{
		Telemetry: otel.Options{
			ServiceVersion: service.Version,
			Endpoint:       cfg.OTelEndpoint,
			Disabled:       !cfg.OTelEnabled,
		},
		Logger: logger,
	}, func(ctx context.Context) error {
		logger.Info().
			Str("transport", cfg.Transport).
			Str("endpoint", cfg.Endpoint).
			Msg("starting calculator")
		return service.Run(ctx, service.Config{
			Transport:         service.TransportKind(cfg.Transport),
			HTTPAddr:          cfg.HTTPAddr,
			Endpoint:          cfg.Endpoint,
			MaxBodyBytes:      cfg.MaxBodyBytes,
			StreamHeartbeat:   cfg.StreamHeartbeat,
			MaxStreamLifetime: cfg.StreamMaxLifetime,
			RateLimitRPS:      cfg.RateLimitRPS,
			RateLimitBurst:    cfg.RateLimitBurst,
			MetricsEnabled:    cfg.MetricsEnabled,
			Logger:            logger,
		})
	})
}
