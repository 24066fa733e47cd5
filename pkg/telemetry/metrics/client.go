package metrics

import (
	"fmt"
	"io"
	"time"

	"vurakit/agentveil/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Outcome labels for requests_total.
const (
	OutcomeSuccess   = "success"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
	OutcomeTimeout   = "timeout"
	OutcomeDecode    = "decode_error"
)

// ClientMetrics tracks proxy calls made by the clients and the sequencer.
//
// Metrics:
//   - requests_total: proxy calls by endpoint and outcome
//   - request_duration_seconds: proxy call latency by endpoint
//   - scan_failures_total: advisory scan failures by reason
//   - pii_entities_total: entities collected by phase ("prompt", "completion")
//   - blocked_calls_total: calls refused on prompt PII
//   - stream_fragments_total: fragments delivered by completion streams
type ClientMetrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	scanFailures    *prometheus.CounterVec
	entities        *prometheus.CounterVec
	blocked         prometheus.Counter
	streamFragments prometheus.Counter
}

// NewClientMetrics creates and registers client metrics with registry.
// A nil registry gets a fresh one; a nil cfg uses the package defaults.
func NewClientMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ClientMetrics {
	if cfg == nil {
		cfg = &config.MetricsConfig{
			Namespace:              config.DefaultMetricsNamespace,
			Subsystem:              config.DefaultMetricsSubsystem,
			RequestDurationBuckets: config.DefaultRequestDurationBuckets,
		}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	buckets := cfg.RequestDurationBuckets
	if len(buckets) == 0 {
		buckets = config.DefaultRequestDurationBuckets
	}

	m := &ClientMetrics{
		registry: registry,

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of proxy calls by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Proxy call duration in seconds",
				Buckets:   buckets,
			},
			[]string{"endpoint"},
		),

		scanFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "scan_failures_total",
				Help:      "Total number of advisory scans that produced no result",
			},
			[]string{"reason"},
		),

		entities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pii_entities_total",
				Help:      "Total number of PII entities reported by scans",
			},
			[]string{"phase"},
		),

		blocked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "blocked_calls_total",
				Help:      "Total number of calls refused because a prompt contained PII",
			},
		),

		streamFragments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "stream_fragments_total",
				Help:      "Total number of streamed completion fragments delivered",
			},
		),
	}

	registry.MustRegister(
		m.requests,
		m.duration,
		m.scanFailures,
		m.entities,
		m.blocked,
		m.streamFragments,
	)

	return m
}

// RecordRequest records one proxy call.
func (m *ClientMetrics) RecordRequest(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordScanFailure records an advisory scan that gave no result.
func (m *ClientMetrics) RecordScanFailure(reason string) {
	if m == nil {
		return
	}
	m.scanFailures.WithLabelValues(reason).Inc()
}

// RecordEntities adds n entities found during phase.
func (m *ClientMetrics) RecordEntities(phase string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.entities.WithLabelValues(phase).Add(float64(n))
}

// RecordBlocked records a call refused on prompt PII.
func (m *ClientMetrics) RecordBlocked() {
	if m == nil {
		return
	}
	m.blocked.Inc()
}

// RecordStreamFragments adds n delivered stream fragments.
func (m *ClientMetrics) RecordStreamFragments(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.streamFragments.Add(float64(n))
}

// Registry returns the Prometheus registry the metrics are registered with.
func (m *ClientMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteText writes every gathered metric to w in the Prometheus text
// exposition format. The CLI uses it to dump metrics at exit, as it serves
// no scrape endpoint.
func (m *ClientMetrics) WriteText(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
