package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/config"
	"vurakit/agentveil/pkg/intercept"
	"vurakit/agentveil/pkg/security/secrets"
	veiltls "vurakit/agentveil/pkg/security/tls"
	"vurakit/agentveil/pkg/telemetry/logging"
	"vurakit/agentveil/pkg/telemetry/metrics"
	"vurakit/agentveil/pkg/telemetry/tracing"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

// app is the wiring shared by the proxy-facing commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.ClientMetrics
	tracer  *tracing.Tracer
	client  *client.Client

	metricsFile string
}

// loadConfig loads the configuration, applies flag overrides and resolves
// ${secret:name} references in the credentials.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	opts.apply(cmd.Flags(), cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	if err := secrets.ResolveProxy(commandContext(cmd), cfg, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	var m *metrics.ClientMetrics
	if cfg.Telemetry.Metrics.Enabled {
		m = metrics.NewClientMetrics(&cfg.Telemetry.Metrics, nil)
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	clientCfg, err := client.ConfigFrom(cfg)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}
	clientCfg.Logger = logger.Slog()
	clientCfg.Metrics = m
	clientCfg.Tracer = tracer

	c, err := client.New(clientCfg)
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	if cfg.Proxy.TLS.Enabled() {
		if tlsConfig, err := veiltls.ClientConfig(cfg.Proxy.TLS); err == nil {
			if warning := veiltls.ExpiryWarning(tlsConfig, time.Now()); warning != "" {
				logger.Warn(warning)
			}
		}
	}

	logger.Debug("client ready",
		"proxy_url", c.ProxyURL(),
		"session_id", c.Session().SessionID,
		"role", string(c.Session().Role),
	)

	return &app{
		cfg:         cfg,
		logger:      logger.Slog(),
		metrics:     m,
		tracer:      tracer,
		client:      c,
		metricsFile: opts.metricsFile,
	}, nil
}

// newLogger builds the redacting logger on stderr and installs it as the
// slog default.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	logCfg := logging.FromConfig(cfg.Telemetry.Logging)
	logCfg.Writer = cmd.ErrOrStderr()
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger.Slog())
	return logger, nil
}

// sequencer returns an interception sequencer over the app's scanner.
func (a *app) sequencer(block bool) *intercept.Sequencer {
	seq := intercept.NewSequencer(a.client.Scanner, block)
	seq.Logger = a.logger
	seq.Metrics = a.metrics
	seq.Tracer = a.tracer
	return seq
}

// close flushes spans and writes the metrics file.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush traces: %w", err))
	}
	if a.metricsFile != "" {
		if err := writeMetrics(a.metricsFile, a.metrics); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeMetrics(path string, m *metrics.ClientMetrics) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	if err := m.WriteText(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return f.Close()
}

// withApp runs fn with a ready app and closes it afterwards. An error
// from closing is reported only when fn succeeded.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(*app) error) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.close(); err != nil {
		if runErr == nil {
			return err
		}
		a.logger.Warn("shutdown failed", "error", err)
	}
	return runErr
}

// readInput joins args, or reads stdin when the only argument is "-".
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return "", cli.NewConfigError("input", "no text given")
	}
	return text, nil
}
