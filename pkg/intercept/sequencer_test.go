package intercept

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"vurakit/agentveil/internal/proxytest"
	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/telemetry/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeScanner answers scans from a table keyed by text. Unknown texts
// fail, as an unreachable proxy would.
type fakeScanner struct {
	mu      sync.Mutex
	results map[string]client.ScanResult
	scanned []string
}

func (f *fakeScanner) Scan(_ context.Context, text string) client.ScanOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanned = append(f.scanned, text)
	r, ok := f.results[text]
	return client.ScanOutcome{Result: r, OK: ok}
}

func clean() client.ScanResult { return client.ScanResult{Found: false} }

func pii(values ...string) client.ScanResult {
	r := client.ScanResult{Found: true}
	for _, v := range values {
		r.Entities = append(r.Entities, client.Entity{Type: "EMAIL", Value: v})
	}
	return r
}

func recordStates(s *Sequencer) *[]State {
	var states []State
	s.Observer = func(st State) { states = append(states, st) }
	return &states
}

func statesEqual(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRun_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		block      bool
		results    map[string]client.ScanResult
		callErr    error
		wantStates []State
		wantCalled bool
		wantErr    func(error) bool
		wantFound  int
	}{
		{
			name:       "clean prompt",
			results:    map[string]client.ScanResult{"hi": clean(), "out": clean()},
			wantStates: []State{StateBeforeCall, StateCalling, StateAfterCall, StateDone},
			wantCalled: true,
		},
		{
			name:       "pii without blocking",
			results:    map[string]client.ScanResult{"hi": pii("a@b.vn"), "out": pii("c@d.vn")},
			wantStates: []State{StateBeforeCall, StateCalling, StateAfterCall, StateDone},
			wantCalled: true,
			wantFound:  2,
		},
		{
			name:       "pii with blocking",
			block:      true,
			results:    map[string]client.ScanResult{"hi": pii("a@b.vn", "x@y.vn")},
			wantStates: []State{StateBeforeCall, StateBlocked},
			wantErr:    IsPIIDetected,
			wantFound:  2,
		},
		{
			name:       "completion pii never blocks",
			block:      true,
			results:    map[string]client.ScanResult{"hi": clean(), "out": pii("c@d.vn")},
			wantStates: []State{StateBeforeCall, StateCalling, StateAfterCall, StateDone},
			wantCalled: true,
			wantFound:  1,
		},
		{
			name:       "scan failure does not block",
			block:      true,
			results:    map[string]client.ScanResult{},
			wantStates: []State{StateBeforeCall, StateCalling, StateAfterCall, StateDone},
			wantCalled: true,
		},
		{
			name:       "call failure",
			results:    map[string]client.ScanResult{"hi": clean()},
			callErr:    errors.New("upstream down"),
			wantStates: []State{StateBeforeCall, StateCalling, StateFailed},
			wantCalled: true,
			wantErr:    func(err error) bool { return err != nil && err.Error() == "upstream down" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scanner := &fakeScanner{results: tt.results}
			seq := NewSequencer(scanner, tt.block)
			states := recordStates(seq)

			called := false
			gens, err := seq.Run(context.Background(), []string{"hi"}, func(context.Context) (Generations, error) {
				called = true
				if tt.callErr != nil {
					return nil, tt.callErr
				}
				return Generations{"out"}, nil
			})

			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("error = %v", err)
				}
			} else if err != nil {
				t.Fatalf("Run() error = %v", err)
			} else if len(gens) != 1 || gens[0] != "out" {
				t.Errorf("generations = %q, want [out]", gens)
			}

			if called != tt.wantCalled {
				t.Errorf("call issued = %v, want %v", called, tt.wantCalled)
			}
			if !statesEqual(*states, tt.wantStates) {
				t.Errorf("states = %v, want %v", *states, tt.wantStates)
			}
			for i, st := range *states {
				if last := i == len(*states)-1; st.Terminal() != last {
					t.Errorf("state %s at %d: Terminal() = %v, want %v", st, i, st.Terminal(), last)
				}
			}
			if seq.Collector.Len() != tt.wantFound {
				t.Errorf("collected = %d, want %d", seq.Collector.Len(), tt.wantFound)
			}
		})
	}
}

func TestRun_BlockedError(t *testing.T) {
	scanner := &fakeScanner{results: map[string]client.ScanResult{
		"first":  clean(),
		"second": pii("a@b.vn"),
		"third":  pii("never"),
	}}
	registry := prometheus.NewRegistry()
	seq := NewSequencer(scanner, true)
	seq.Metrics = metrics.NewClientMetrics(nil, registry)

	_, err := seq.Run(context.Background(), []string{"first", "second", "third"}, func(context.Context) (Generations, error) {
		t.Fatal("blocked call must not be issued")
		return nil, nil
	})

	var blocked *PIIDetectedError
	if !errors.As(err, &blocked) {
		t.Fatalf("error = %v, want *PIIDetectedError", err)
	}
	if blocked.Phase != PhasePrompt || len(blocked.Entities) != 1 {
		t.Errorf("blocked = %+v", blocked)
	}
	if err.Error() != "PII detected in prompt: 1 entities found" {
		t.Errorf("message = %q", err.Error())
	}
	if len(scanner.scanned) != 2 {
		t.Errorf("scanned = %q, remaining prompts should be skipped", scanner.scanned)
	}

	expected := `
# HELP veil_client_blocked_calls_total Total number of calls refused because a prompt contained PII
# TYPE veil_client_blocked_calls_total counter
veil_client_blocked_calls_total 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "veil_client_blocked_calls_total"); err != nil {
		t.Error(err)
	}
}

func TestRun_BlockingIsPerCall(t *testing.T) {
	scanner := &fakeScanner{results: map[string]client.ScanResult{
		"leaky": pii("a@b.vn"),
		"clean": clean(),
		"out":   clean(),
	}}
	seq := NewSequencer(scanner, true)
	call := func(context.Context) (Generations, error) { return Generations{"out"}, nil }

	if _, err := seq.Run(context.Background(), []string{"leaky"}, call); !IsPIIDetected(err) {
		t.Fatalf("first call error = %v, want blocked", err)
	}
	if _, err := seq.Run(context.Background(), []string{"clean"}, call); err != nil {
		t.Fatalf("earlier findings must not block a later call: %v", err)
	}
	if seq.Collector.Len() != 1 {
		t.Errorf("collected = %d, want 1", seq.Collector.Len())
	}
}

func TestRun_OrderAndUnchangedOutput(t *testing.T) {
	scanner := &fakeScanner{results: map[string]client.ScanResult{
		"p1": pii("a@b.vn"),
		"p2": pii("a@b.vn"),
		"g1": pii("c@d.vn"),
		"g2": clean(),
	}}
	seq := NewSequencer(scanner, false)

	var order []string
	gens, err := seq.Run(context.Background(), []string{"p1", "p2"}, func(context.Context) (Generations, error) {
		order = append(order, append([]string(nil), scanner.scanned...)...)
		order = append(order, "CALL")
		return Generations{"g1", "g2"}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(order, ",") != "p1,p2,CALL" {
		t.Errorf("order before call = %v", order)
	}
	if strings.Join(scanner.scanned, ",") != "p1,p2,g1,g2" {
		t.Errorf("scan order = %v", scanner.scanned)
	}
	if strings.Join(gens, ",") != "g1,g2" {
		t.Errorf("generations changed: %v", gens)
	}

	findings := seq.Findings()
	if len(findings) != 3 || findings[0].Value != "a@b.vn" || findings[1].Value != "a@b.vn" || findings[2].Value != "c@d.vn" {
		t.Errorf("findings = %+v, want duplicates kept in scan order", findings)
	}
}

func TestRunText_NilScanner(t *testing.T) {
	seq := &Sequencer{BlockOnPII: true}
	text, err := seq.RunText(context.Background(), "hi", func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || text != "ok" {
		t.Errorf("RunText() = %q, %v", text, err)
	}
	if seq.Findings() != nil {
		t.Error("no collector means no findings")
	}
}

func TestPIIDetectedError_NotATransportError(t *testing.T) {
	var te error = &client.TransportError{Endpoint: client.EndpointChat, Cause: errors.New("refused")}
	if IsPIIDetected(te) {
		t.Error("transport errors must not match ErrPIIDetected")
	}
	var blocked *PIIDetectedError
	if errors.As(te, &blocked) {
		t.Error("transport error matched *PIIDetectedError")
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Add(client.Entity{Type: "PHONE"})
			}
		}()
	}
	wg.Wait()

	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
	snapshot := c.Findings()
	snapshot[0].Type = "CHANGED"
	if c.Findings()[0].Type != "PHONE" {
		t.Error("Findings should return a copy")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Error("Clear left findings behind")
	}
}

// A scan that times out yields no result, and the wrapped chat still
// completes.
func TestGuardedChat_ScanTimeoutDoesNotBreakChat(t *testing.T) {
	chatServer := proxytest.NewMockServer()
	defer chatServer.Close()
	chatServer.SetResponse(proxytest.PathChat, proxytest.ChatResponse("hello"))

	scanServer := proxytest.NewMockServer()
	defer scanServer.Close()
	scanServer.SetResponse(proxytest.PathScan, proxytest.SlowResponse(5*time.Second, proxytest.ScanBody("EMAIL", "a@b.vn")))

	chat, err := client.NewChatClient(client.Config{ProxyURL: chatServer.URL()})
	if err != nil {
		t.Fatal(err)
	}
	scanner, err := client.NewScanClient(client.Config{
		ProxyURL:   scanServer.URL(),
		HTTPClient: &http.Client{Timeout: 100 * time.Millisecond},
	})
	if err != nil {
		t.Fatal(err)
	}

	seq := NewSequencer(scanner, true)
	states := recordStates(seq)

	text, err := seq.WrapChat(chat).Invoke(context.Background(), "mail a@b.vn")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if text != "hello" {
		t.Errorf("Invoke() = %q, want hello", text)
	}
	if !statesEqual(*states, []State{StateBeforeCall, StateCalling, StateAfterCall, StateDone}) {
		t.Errorf("states = %v", *states)
	}
	if seq.Collector.Len() != 0 {
		t.Error("timed-out scans should collect nothing")
	}
}

func TestGuardedChat_BlocksBeforeProxyCall(t *testing.T) {
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse("CCCD", "012345678901"))
	ms.SetResponse(proxytest.PathChat, proxytest.ChatResponse("should not be reached"))

	c, err := client.New(client.Config{ProxyURL: ms.URL()})
	if err != nil {
		t.Fatal(err)
	}
	guarded := NewSequencer(c.Scanner, true).WrapChat(c.Chat)

	_, err = guarded.Chat(context.Background(), []client.Message{
		client.SystemMessage("you are helpful"),
		client.UserMessage("my id is 012345678901"),
	})
	if !IsPIIDetected(err) {
		t.Fatalf("error = %v, want blocked", err)
	}
	if n := len(ms.RequestsTo(proxytest.PathChat)); n != 0 {
		t.Errorf("chat requests = %d, want 0", n)
	}
	if n := len(ms.RequestsTo(proxytest.PathScan)); n != 1 {
		t.Errorf("scan requests = %d, want 1 (blocking on the first positive prompt)", n)
	}
}

func TestGuardedChat_Stream(t *testing.T) {
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse())
	ms.SetResponse(proxytest.PathChat, proxytest.StreamResponse("Xin ", "chào"))

	c, err := client.New(client.Config{ProxyURL: ms.URL()})
	if err != nil {
		t.Fatal(err)
	}
	guarded := NewSequencer(c.Scanner, true).WrapChat(c.Chat)

	var fragments []string
	text, err := guarded.Stream(context.Background(), []client.Message{client.UserMessage("hi")}, func(f string) {
		fragments = append(fragments, f)
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if text != "Xin chào" || len(fragments) != 2 {
		t.Errorf("text = %q, fragments = %q", text, fragments)
	}

	scans := ms.RequestsTo(proxytest.PathScan)
	if len(scans) != 2 {
		t.Fatalf("scan requests = %d, want prompt and completion", len(scans))
	}
	var body map[string]string
	_ = scans[1].JSON(&body)
	if body["text"] != "Xin chào" {
		t.Errorf("completion scan text = %q", body["text"])
	}
}
