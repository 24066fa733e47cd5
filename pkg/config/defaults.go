package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultProxyURL = "http://localhost:8080"
	DefaultRole     = "admin"

	// Chat defaults
	DefaultChatModel       = "gpt-4"
	DefaultChatTemperature = 0.7
	DefaultChatMaxTokens   = 4096

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "text"
	DefaultLoggingRedactPII = true
	DefaultMetricsNamespace = "veil"
	DefaultMetricsSubsystem = "client"
	DefaultTracingSampler   = "always"
	DefaultTracingRatio     = 1.0
	DefaultTracingService   = "agent-veil-client"
	DefaultOTLPInsecure     = true
	DefaultOTLPTimeout      = 10 * time.Second
)

// DefaultRequestDurationBuckets spans a fast scan up to a full stream.
var DefaultRequestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
// Fields that are already set are left untouched.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.URL == "" {
		cfg.Proxy.URL = DefaultProxyURL
	}
	if cfg.Proxy.Role == "" {
		cfg.Proxy.Role = DefaultRole
	}

	// Chat defaults
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = DefaultChatModel
	}
	if cfg.Chat.Temperature == nil {
		t := DefaultChatTemperature
		cfg.Chat.Temperature = &t
	}
	if cfg.Chat.MaxTokens == 0 {
		cfg.Chat.MaxTokens = DefaultChatMaxTokens
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 && cfg.Telemetry.Tracing.Sampler != "ratio" {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
