package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Custom keys use the "veil.*" namespace.
const (
	AttrEndpoint   = "veil.endpoint"
	AttrSessionID  = "veil.session_id"
	AttrRole       = "veil.role"
	AttrProvider   = "veil.provider"
	AttrModel      = "veil.model"
	AttrStream     = "veil.stream"
	AttrEntities   = "veil.pii.entities"
	AttrPhase      = "veil.pii.phase"
	AttrState      = "veil.intercept.state"
	AttrBlocked    = "veil.intercept.blocked"
	AttrFragments  = "veil.stream.fragments"
	AttrRiskLevel  = "veil.audit.risk_level"
	AttrStatusCode = "http.response.status_code"
)

// SetSessionAttributes records who is calling. Credentials are never
// recorded.
func SetSessionAttributes(span trace.Span, sessionID, role, provider string) {
	attrs := []attribute.KeyValue{attribute.String(AttrSessionID, sessionID)}
	if role != "" {
		attrs = append(attrs, attribute.String(AttrRole, role))
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrProvider, provider))
	}
	span.SetAttributes(attrs...)
}

// SetStatusCode records the HTTP status of a proxy response.
func SetStatusCode(span trace.Span, code int) {
	span.SetAttributes(attribute.Int(AttrStatusCode, code))
}

// SetEntities records how many entities a scan reported in phase.
func SetEntities(span trace.Span, phase string, n int) {
	span.SetAttributes(
		attribute.String(AttrPhase, phase),
		attribute.Int(AttrEntities, n),
	)
}

// AddStateEvent records an interception state transition as a span event.
func AddStateEvent(span trace.Span, state string, attrs ...attribute.KeyValue) {
	span.AddEvent("intercept.state", trace.WithAttributes(
		append([]attribute.KeyValue{attribute.String(AttrState, state)}, attrs...)...,
	))
}
