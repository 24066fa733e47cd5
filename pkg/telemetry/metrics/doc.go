// Package metrics provides Prometheus metrics for Agent Veil client calls.
//
// # Metrics
//
//   - <ns>_<sub>_requests_total{endpoint,outcome}: proxy calls by result
//   - <ns>_<sub>_request_duration_seconds{endpoint}: proxy call latency
//   - <ns>_<sub>_scan_failures_total{reason}: advisory scans that gave no result
//   - <ns>_<sub>_pii_entities_total{phase}: entities found before and after calls
//   - <ns>_<sub>_blocked_calls_total: calls refused because a prompt held PII
//   - <ns>_<sub>_stream_fragments_total: streamed completion fragments delivered
//
// # Usage
//
//	m := metrics.NewClientMetrics(&cfg.Telemetry.Metrics, registry)
//	c := client.New(client.Config{Metrics: m})
//
// A nil *ClientMetrics is valid and records nothing, so components accept
// it unconditionally.
package metrics
