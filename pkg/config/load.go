package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment variables read by applyEnvOverrides.
const (
	EnvProxyURL        = "VURA_PROXY_URL"
	EnvAPIKey          = "VURA_API_KEY"
	EnvProviderAPIKey  = "OPENAI_API_KEY"
	EnvProvider        = "VURA_PROVIDER"
	EnvRole            = "VURA_ROLE"
	EnvSessionID       = "VURA_SESSION_ID"
	EnvModel           = "VURA_MODEL"
	EnvTemperature     = "VURA_TEMPERATURE"
	EnvMaxTokens       = "VURA_MAX_TOKENS"
	EnvBlockOnPII      = "VURA_BLOCK_ON_PII"
	EnvLogLevel        = "VURA_LOG_LEVEL"
	EnvLogFormat       = "VURA_LOG_FORMAT"
	EnvMetricsEnabled  = "VURA_METRICS_ENABLED"
	EnvTracingEnabled  = "VURA_TRACING_ENABLED"
	EnvTracingEndpoint = "VURA_TRACING_ENDPOINT"
)

// Parse decodes configuration data without applying defaults or validating.
// Data named *.json or *.jsonc may carry comments and trailing commas.
func Parse(name string, data []byte) (*Config, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	// JSON is valid YAML, so one decoder serves both.
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration %q: %w", name, err)
	}
	return &cfg, nil
}

// LoadConfig loads configuration from the file at path. It applies default
// values and validates the result. Environment variables are not consulted;
// use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(path, data)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from the file at path and
// applies environment variable overrides. Environment variables always take
// precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv builds configuration from defaults and environment variables
// only.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Load loads from path with environment overrides, or from the environment
// alone when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromEnv()
	}
	return LoadConfigWithEnvOverrides(path)
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Unparseable numeric and boolean values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	if val := os.Getenv(EnvProxyURL); val != "" {
		cfg.Proxy.URL = val
	}
	if val := os.Getenv(EnvAPIKey); val != "" {
		cfg.Proxy.APIKey = val
	}
	if val := os.Getenv(EnvProviderAPIKey); val != "" {
		cfg.Proxy.ProviderAPIKey = val
	}
	if val := os.Getenv(EnvProvider); val != "" {
		cfg.Proxy.Provider = val
	}
	if val := os.Getenv(EnvRole); val != "" {
		cfg.Proxy.Role = val
	}
	if val := os.Getenv(EnvSessionID); val != "" {
		cfg.Proxy.SessionID = val
	}

	// Chat overrides
	if val := os.Getenv(EnvModel); val != "" {
		cfg.Chat.Model = val
	}
	if val := os.Getenv(EnvTemperature); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Chat.Temperature = &f
		}
	}
	if val := os.Getenv(EnvMaxTokens); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Chat.MaxTokens = i
		}
	}

	// Interception overrides
	if val := os.Getenv(EnvBlockOnPII); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Interception.BlockOnPII = b
		}
	}

	// Telemetry overrides
	if val := os.Getenv(EnvLogLevel); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv(EnvLogFormat); val != "" {
		cfg.Telemetry.Logging.Format = strings.ToLower(val)
	}
	if val := os.Getenv(EnvMetricsEnabled); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv(EnvTracingEnabled); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv(EnvTracingEndpoint); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
}
