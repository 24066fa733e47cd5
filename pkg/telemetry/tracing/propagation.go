package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

// propagator writes W3C traceparent, tracestate, and baggage headers.
var propagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Propagator returns the text map propagator used for outbound requests.
func Propagator() propagation.TextMapPropagator {
	return propagator
}

// Inject writes the trace context from ctx into headers. It does nothing
// when ctx carries no valid span context.
//
//	req, _ := http.NewRequestWithContext(ctx, "POST", url, body)
//	tracing.Inject(ctx, req.Header)
func Inject(ctx context.Context, headers http.Header) {
	propagator.Inject(ctx, propagation.HeaderCarrier(headers))
}

// Extract reads trace context from headers into ctx. The mock proxy uses
// it to check propagation.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return propagator.Extract(ctx, propagation.HeaderCarrier(headers))
}
