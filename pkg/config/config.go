package config

import "time"

// Config is the root configuration structure for an Agent Veil client.
type Config struct {
	// Proxy identifies the proxy and the caller's session.
	Proxy ProxyConfig `yaml:"proxy"`

	// Chat contains the defaults applied to every chat request.
	Chat ChatConfig `yaml:"chat"`

	// Interception controls the scan-call-scan sequencer.
	Interception InterceptionConfig `yaml:"interception"`

	// Telemetry contains logging, metrics, and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig contains the proxy location and the caller's identity.
type ProxyConfig struct {
	// URL is the base URL of the Agent Veil proxy.
	// Default: "http://localhost:8080"
	URL string `yaml:"url"`

	// APIKey is the proxy API key. It takes precedence over ProviderAPIKey
	// for the Authorization header.
	APIKey string `yaml:"api_key"`

	// ProviderAPIKey is the upstream provider key (for example an OpenAI
	// key), used when no proxy key is set.
	ProviderAPIKey string `yaml:"provider_api_key"`

	// Provider is an optional upstream provider hint.
	Provider string `yaml:"provider"`

	// Role is the caller's role: "admin", "viewer", or "operator".
	// Default: "admin"
	Role string `yaml:"role"`

	// SessionID groups calls on the proxy. A random id is generated when empty.
	SessionID string `yaml:"session_id"`

	// SecretsDir holds one file per secret for ${secret:name} references
	// in api_key and provider_api_key. Secrets are also read from
	// VURA_SECRET_* environment variables.
	SecretsDir string `yaml:"secrets_dir"`

	// TLS configures the connection to an https proxy.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains client TLS settings for the proxy connection.
// The zero value uses the system roots.
type TLSConfig struct {
	// CAFile is a PEM bundle that replaces the system roots, for a proxy
	// signed by a private CA.
	CAFile string `yaml:"ca_file"`

	// CertFile and KeyFile are the client certificate for mTLS. Both or
	// neither must be set.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// ServerName overrides the name checked against the proxy certificate.
	ServerName string `yaml:"server_name"`

	// MinVersion is the lowest TLS version offered: "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// InsecureSkipVerify disables certificate verification. Local
	// development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Enabled reports whether any TLS setting differs from the defaults.
func (c TLSConfig) Enabled() bool {
	return c != TLSConfig{}
}

// ChatConfig contains chat completion defaults.
type ChatConfig struct {
	// Model is the default model name.
	// Default: "gpt-4"
	Model string `yaml:"model"`

	// Temperature is the default sampling temperature in [0, 2].
	// A nil value means the default is used.
	// Default: 0.7
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens is the default completion length limit.
	// Default: 4096
	MaxTokens int `yaml:"max_tokens"`
}

// InterceptionConfig controls pre and post call scanning.
type InterceptionConfig struct {
	// BlockOnPII refuses a call when a prompt scan finds entities.
	// Default: false
	BlockOnPII bool `yaml:"block_on_pii"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "text"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source"`

	// RedactPII scrubs credentials and PII patterns from every record.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns contains custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactEnabled reports whether redaction is on, applying the default.
func (c LoggingConfig) RedactEnabled() bool {
	if c.RedactPII == nil {
		return DefaultLoggingRedactPII
	}
	return *c.RedactPII
}

// RedactPattern defines a custom redaction pattern.
type RedactPattern struct {
	// Name is a descriptive name for the pattern.
	Name string `yaml:"name"`

	// Pattern is the regular expression to match.
	Pattern string `yaml:"pattern"`

	// Replacement is the string to replace matches with.
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether client metrics are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	// Default: "veil"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "client"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for proxy call
	// duration in seconds.
	// Default: [0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "agent-veil-client"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the OTLP connection.
	// Default: true
	Insecure *bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// InsecureEnabled reports whether the exporter skips TLS, applying the default.
func (c OTLPConfig) InsecureEnabled() bool {
	if c.Insecure == nil {
		return DefaultOTLPInsecure
	}
	return *c.Insecure
}
