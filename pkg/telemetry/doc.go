// Package telemetry groups the observability used by the Agent Veil
// clients.
//
// # Components
//
//   - logging: slog-based structured logging with credential and PII redaction
//   - metrics: Prometheus counters and histograms for proxy calls
//   - tracing: OpenTelemetry spans around every proxy call and interception
//   - health: concurrent readiness checks used by `veil status`
//
// Every component is optional for library callers. A nil *metrics.ClientMetrics
// or *tracing.Tracer records nothing, and a missing logger falls back to
// slog.Default().
//
// # PII Protection
//
// By default every log record passes through the redactor:
//
//   - API keys: sk-abc123 → sk-***
//   - Emails: user@example.com → u***@example.com
//   - IP addresses: 192.168.1.1 → 192.*.*.*
//
// Prompt and completion text is never logged.
package telemetry
