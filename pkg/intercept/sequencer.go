package intercept

import (
	"context"
	"log/slog"

	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/telemetry/metrics"
	"vurakit/agentveil/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is a step of one sequenced call.
type State string

// Sequencer states.
const (
	StateBeforeCall State = "BEFORE_CALL"
	StateCalling    State = "CALLING"
	StateAfterCall  State = "AFTER_CALL"
	StateDone       State = "DONE"
	StateBlocked    State = "BLOCKED"
	StateFailed     State = "FAILED"
)

// Terminal reports whether s ends a sequence.
func (s State) Terminal() bool {
	return s == StateDone || s == StateBlocked || s == StateFailed
}

// Phase names the side of the call a scan covered.
type Phase string

// Scan phases.
const (
	PhasePrompt     Phase = "prompt"
	PhaseCompletion Phase = "completion"
)

// Scanner is the advisory scan used by the sequencer. *client.ScanClient
// implements it.
type Scanner interface {
	Scan(ctx context.Context, text string) client.ScanOutcome
}

// Generations are the texts produced by one call.
type Generations []string

// Call is the wrapped operation.
type Call func(ctx context.Context) (Generations, error)

// Sequencer runs scan-before, call, scan-after in strict order. A
// Sequencer with its fields set may be used from several goroutines; the
// Collector is the only shared state.
type Sequencer struct {
	// Scanner performs the scans. A nil Scanner skips scanning.
	Scanner Scanner

	// Collector receives findings. Nil means findings are not kept.
	Collector *Collector

	// BlockOnPII refuses the call when a prompt scan finds PII.
	BlockOnPII bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Metrics *metrics.ClientMetrics
	Tracer  *tracing.Tracer

	// Observer, if set, is called on every state entered.
	Observer func(State)
}

// NewSequencer returns a sequencer with a fresh Collector.
func NewSequencer(scanner Scanner, blockOnPII bool) *Sequencer {
	return &Sequencer{
		Scanner:    scanner,
		Collector:  NewCollector(),
		BlockOnPII: blockOnPII,
	}
}

// Run scans prompts, issues call and scans what it returns.
//
// When BlockOnPII is set, the first prompt whose scan finds PII ends the
// sequence in BLOCKED: call is not issued, the remaining prompts are not
// scanned, and a *PIIDetectedError is returned. An error from call is
// returned unchanged and skips the post-call scan.
func (s *Sequencer) Run(ctx context.Context, prompts []string, call Call) (gens Generations, err error) {
	ctx, span := s.Tracer.Start(ctx, "veil.intercept")
	defer func() { tracing.End(span, err) }()

	s.enter(span, StateBeforeCall)
	for _, prompt := range prompts {
		entities, found := s.scan(ctx, PhasePrompt, prompt)
		if found && s.BlockOnPII {
			s.Metrics.RecordBlocked()
			span.SetAttributes(attribute.Bool(tracing.AttrBlocked, true))
			s.logger().WarnContext(ctx, "call blocked, prompt contains PII",
				"entities", len(entities),
			)
			s.enter(span, StateBlocked)
			return nil, &PIIDetectedError{Phase: PhasePrompt, Entities: entities}
		}
	}

	s.enter(span, StateCalling)
	gens, err = call(ctx)
	if err != nil {
		s.enter(span, StateFailed)
		return gens, err
	}

	s.enter(span, StateAfterCall)
	for _, text := range gens {
		s.scan(ctx, PhaseCompletion, text)
	}

	s.enter(span, StateDone)
	return gens, nil
}

// RunText sequences a single prompt and a call producing one text.
func (s *Sequencer) RunText(ctx context.Context, prompt string, call func(ctx context.Context) (string, error)) (string, error) {
	gens, err := s.Run(ctx, []string{prompt}, func(ctx context.Context) (Generations, error) {
		text, err := call(ctx)
		if err != nil {
			return nil, err
		}
		return Generations{text}, nil
	})
	if err != nil || len(gens) == 0 {
		return "", err
	}
	return gens[0], nil
}

// Findings returns the collected findings, or nil without a Collector.
func (s *Sequencer) Findings() []client.Entity {
	if s.Collector == nil {
		return nil
	}
	return s.Collector.Findings()
}

// scan runs one advisory scan. It reports the entities and whether the
// scan found PII; a failed scan reports nothing.
func (s *Sequencer) scan(ctx context.Context, phase Phase, text string) ([]client.Entity, bool) {
	if s.Scanner == nil {
		return nil, false
	}

	result, ok := s.Scanner.Scan(ctx, text).Get()
	if !ok || !result.Found {
		return nil, false
	}

	if s.Collector != nil {
		s.Collector.Add(result.Entities...)
	}
	s.Metrics.RecordEntities(string(phase), len(result.Entities))
	s.logger().DebugContext(ctx, "scan found PII",
		"phase", string(phase),
		"entities", len(result.Entities),
	)
	return result.Entities, true
}

func (s *Sequencer) enter(span trace.Span, state State) {
	tracing.AddStateEvent(span, string(state))
	if s.Observer != nil {
		s.Observer(state)
	}
}

func (s *Sequencer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
