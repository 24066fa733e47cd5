package config

import (
	"fmt"
	"net/url"
	"strings"

	"vurakit/agentveil/pkg/session"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any rule fails. All field errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateChat(&cfg.Chat)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.url",
			Message: "proxy URL is required",
		})
	} else if u, err := url.Parse(cfg.URL); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, FieldError{
			Field:   "proxy.url",
			Message: fmt.Sprintf("unsupported scheme %q: must be http or https", u.Scheme),
		})
	} else if u.Host == "" {
		errs = append(errs, FieldError{
			Field:   "proxy.url",
			Message: "URL must include a host",
		})
	}

	if _, err := session.ParseRole(cfg.Role); err != nil {
		errs = append(errs, FieldError{
			Field:   "proxy.role",
			Message: err.Error(),
		})
	}

	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		errs = append(errs, FieldError{
			Field:   "proxy.tls",
			Message: "cert_file and key_file must be set together",
		})
	}
	switch cfg.TLS.MinVersion {
	case "", "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "proxy.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q: must be '1.2' or '1.3'", cfg.TLS.MinVersion),
		})
	}

	return errs
}

func validateChat(cfg *ChatConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.Model) == "" {
		errs = append(errs, FieldError{
			Field:   "chat.model",
			Message: "model is required",
		})
	}

	if cfg.Temperature != nil && (*cfg.Temperature < 0 || *cfg.Temperature > 2) {
		errs = append(errs, FieldError{
			Field:   "chat.temperature",
			Message: fmt.Sprintf("temperature %g must be between 0 and 2", *cfg.Temperature),
		})
	}

	if cfg.MaxTokens <= 0 {
		errs = append(errs, FieldError{
			Field:   "chat.max_tokens",
			Message: "max tokens must be positive",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json', 'text', or 'console'", cfg.Logging.Format),
		})
	}

	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i),
				Message: "pattern is required",
			})
		}
	}

	for i, b := range cfg.Metrics.RequestDurationBuckets {
		if i > 0 && b <= cfg.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "buckets must be strictly increasing",
			})
			break
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	return errs
}

// Session converts the proxy section into a session context. The session
// id is left empty when unset so callers can resolve a fresh one.
func (c *Config) Session() (session.Context, error) {
	role, err := session.ParseRole(c.Proxy.Role)
	if err != nil {
		return session.Context{}, err
	}
	return session.Context{
		SessionID:      c.Proxy.SessionID,
		Role:           role,
		APIKey:         c.Proxy.APIKey,
		ProviderAPIKey: c.Proxy.ProviderAPIKey,
		Provider:       c.Proxy.Provider,
	}, nil
}
