// Package proxytest provides a mock Agent Veil proxy for tests.
package proxytest

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// Proxy paths served by the mock.
const (
	PathScan   = "/scan"
	PathAudit  = "/audit"
	PathChat   = "/v1/chat/completions"
	PathHealth = "/health"
)

// MockServer is a mock proxy. It answers each path with a configured
// response and records every request it receives.
type MockServer struct {
	server    *httptest.Server
	responses map[string]MockResponse
	requests  []Request
	mu        sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	StatusCode int
	Body       any
	Delay      time.Duration
	Headers    map[string]string

	// StreamLines are written one per line as an SSE body. They are sent
	// verbatim, so malformed frames can be injected.
	StreamLines []string

	// Hang blocks after the stream lines until the client goes away.
	Hang bool
}

// Request is a request received by the mock.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// JSON decodes the request body into v.
func (r Request) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// NewMockServer starts a mock proxy. Paths without a response get 404.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// NewTLSMockServer starts a mock proxy over https with a self-signed
// certificate. Certificate returns it for building a CA pool.
func NewTLSMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
	}
	ms.server = httptest.NewTLSServer(http.HandlerFunc(ms.handler))
	return ms
}

// Certificate returns the certificate of a TLS mock, or nil.
func (ms *MockServer) Certificate() *x509.Certificate {
	return ms.server.Certificate()
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.CloseClientConnections()
	ms.server.Close()
}

// SetResponse sets the response for path.
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.responses[path] = response
}

// Requests returns a copy of every request received so far.
func (ms *MockServer) Requests() []Request {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return append([]Request(nil), ms.requests...)
}

// RequestsTo returns the requests received on path.
func (ms *MockServer) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range ms.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// RequestCount returns the number of requests received.
func (ms *MockServer) RequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	return len(ms.requests)
}

// Reset forgets recorded requests.
func (ms *MockServer) Reset() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.requests = nil
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.requests = append(ms.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   body,
	})
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(response.Delay):
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if response.StreamLines != nil {
		ms.handleStream(w, r, response)
		return
	}

	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	switch v := response.Body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, v)
	case []byte:
		_, _ = w.Write(v)
	default:
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (ms *MockServer) handleStream(w http.ResponseWriter, r *http.Request, response MockResponse) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	flusher, _ := w.(http.Flusher)
	for _, line := range response.StreamLines {
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	if response.Hang {
		<-r.Context().Done()
	}
}

// ScanBody builds a /scan response body for entities, given as
// category/original pairs.
func ScanBody(pairs ...string) map[string]any {
	entities := make([]map[string]any, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		entities = append(entities, map[string]any{
			"category":   pairs[i],
			"original":   pairs[i+1],
			"start":      0,
			"end":        len(pairs[i+1]),
			"confidence": 90,
		})
	}
	return map[string]any{
		"found":    len(entities) > 0,
		"entities": entities,
	}
}

// ScanResponse is a 200 /scan response listing the given entities.
func ScanResponse(pairs ...string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: ScanBody(pairs...)}
}

// ChatResponse is a blocking completion whose first choice is content.
func ChatResponse(content string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body: map[string]any{
			"id":     "chatcmpl-123",
			"object": "chat.completion",
			"model":  "gpt-4",
			"choices": []map[string]any{
				{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		},
	}
}

// DeltaFrame returns a "data: " line carrying one content delta.
func DeltaFrame(content string) string {
	chunk := map[string]any{
		"object": "chat.completion.chunk",
		"choices": []map[string]any{
			{"index": 0, "delta": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(chunk)
	return "data: " + string(b)
}

// DoneFrame is the end-of-stream line.
const DoneFrame = "data: [DONE]"

// StreamResponse is an SSE completion delivering fragments then the
// sentinel, with blank lines between frames.
func StreamResponse(fragments ...string) MockResponse {
	lines := make([]string, 0, 2*len(fragments)+1)
	for _, f := range fragments {
		lines = append(lines, DeltaFrame(f), "")
	}
	lines = append(lines, DoneFrame, "")
	return MockResponse{StatusCode: http.StatusOK, StreamLines: lines}
}

// AuditResponse is an /audit response. Levels of 3 and above are sent with
// 403, as the proxy does.
func AuditResponse(level int, label string, score float64, findings ...map[string]any) MockResponse {
	if findings == nil {
		findings = []map[string]any{}
	}
	status := http.StatusOK
	if level >= 3 {
		status = http.StatusForbidden
	}
	return MockResponse{
		StatusCode: status,
		Body: map[string]any{
			"risk_level":       level,
			"risk_level_label": label,
			"compliance_score": score,
			"summary":          fmt.Sprintf("%d findings", len(findings)),
			"findings":         findings,
		},
	}
}

// HealthyResponse is the proxy's answer on /health.
func HealthyResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: map[string]any{"status": "ok"}}
}

// ErrorResponse is a JSON error body with statusCode.
func ErrorResponse(statusCode int, message string) MockResponse {
	return MockResponse{
		StatusCode: statusCode,
		Body: map[string]any{
			"error":   strings.ToLower(strings.ReplaceAll(http.StatusText(statusCode), " ", "_")),
			"message": message,
		},
	}
}

// SlowResponse delays a 200 response by delay. Clients with a shorter
// deadline see a timeout.
func SlowResponse(delay time.Duration, body any) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body, Delay: delay}
}

// Compact re-encodes b without insignificant whitespace, for comparing
// JSON bodies.
func Compact(b []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, b); err != nil {
		return string(b)
	}
	return buf.String()
}
