// Package tracing provides OpenTelemetry spans around Agent Veil proxy calls.
//
// # Overview
//
// Every call the clients make to the proxy runs inside a span carrying the
// endpoint, the session and role, and the HTTP status. The interception
// sequencer adds one event per state transition. The W3C trace context is
// injected into outbound requests so a proxy that also traces can join the
// trace.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "veil.scan")
//	defer span.End()
//
// When tracing is disabled New returns a tracer backed by the no-op
// provider, and a nil *Tracer behaves the same way.
//
// # Sampling
//
// Three strategies are supported, each wrapped in ParentBased so that a
// caller's sampling decision is respected:
//   - always: sample every trace
//   - never: sample nothing
//   - ratio: sample a fraction of traces by trace ID
package tracing
