package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"vurakit/agentveil/pkg/config"
	"vurakit/agentveil/pkg/decode"
	veiltls "vurakit/agentveil/pkg/security/tls"
	"vurakit/agentveil/pkg/session"
	"vurakit/agentveil/pkg/telemetry/metrics"
	"vurakit/agentveil/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Proxy endpoints.
const (
	EndpointScan  = "/scan"
	EndpointAudit = "/audit"
	EndpointChat  = "/v1/chat/completions"
)

// Fixed per-operation timeouts.
const (
	ScanTimeout   = 10 * time.Second
	ChatTimeout   = 60 * time.Second
	StreamTimeout = 120 * time.Second
	AuditTimeout  = 30 * time.Second
)

// Config configures the proxy clients.
type Config struct {
	// ProxyURL is the proxy base URL. A trailing slash is ignored.
	// Defaults to http://localhost:8080.
	ProxyURL string

	// Session is attached to every request. An empty session id is
	// generated once at construction.
	Session session.Context

	// HTTPClient sends the requests. Defaults to a client with no timeout
	// of its own; the per-operation timeouts apply through the context.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics and Tracer are optional.
	Metrics *metrics.ClientMetrics
	Tracer  *tracing.Tracer

	// Defaults are the chat request defaults. The zero value means
	// DefaultChatDefaults().
	Defaults ChatDefaults
}

// ConfigFrom builds a client config from a loaded configuration file.
// Proxy TLS settings, when present, produce a dedicated HTTP client.
func ConfigFrom(cfg *config.Config) (Config, error) {
	sess, err := cfg.Session()
	if err != nil {
		return Config{}, fmt.Errorf("invalid proxy session: %w", err)
	}
	httpClient, err := veiltls.NewHTTPClient(cfg.Proxy.TLS)
	if err != nil {
		return Config{}, fmt.Errorf("invalid proxy TLS settings: %w", err)
	}
	return Config{
		ProxyURL:   cfg.Proxy.URL,
		Session:    sess,
		HTTPClient: httpClient,
		Defaults:   ChatDefaultsFromConfig(cfg.Chat),
	}, nil
}

// core is the HTTP plumbing shared by the clients.
type core struct {
	baseURL string
	session session.Context
	headers http.Header
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.ClientMetrics
	tracer  *tracing.Tracer
}

func newCore(cfg Config) (*core, error) {
	base := strings.TrimRight(cfg.ProxyURL, "/")
	if base == "" {
		base = config.DefaultProxyURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q: want http(s)://host[:port]", cfg.ProxyURL)
	}

	sess := session.Resolve(cfg.Session)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &core{
		baseURL: base,
		session: sess,
		headers: session.Headers(sess),
		http:    httpClient,
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
	}, nil
}

// begin starts the span for one proxy operation. The returned func ends
// the span and records the request metrics; call it exactly once.
func (c *core) begin(ctx context.Context, endpoint, name string) (context.Context, trace.Span, func(error)) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String(tracing.AttrEndpoint, endpoint))
	tracing.SetSessionAttributes(span, c.session.SessionID, c.session.Role.String(), c.session.Provider)

	return ctx, span, func(err error) {
		c.metrics.RecordRequest(endpoint, outcomeOf(err), time.Since(start))
		tracing.End(span, err)
	}
}

// post sends payload to endpoint and returns the response when its status
// is 2xx. The caller owns the response body. Any other status is read,
// closed and returned as a *StatusError.
func (c *core) post(ctx context.Context, endpoint string, timeout time.Duration, payload any, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	session.Apply(req, c.headers)
	if accept != "" {
		req.Header.Set(session.HeaderAccept, accept)
	}
	tracing.Inject(ctx, req.Header)

	c.logger.DebugContext(ctx, "sending request to proxy",
		"endpoint", endpoint,
		"session_id", c.session.SessionID,
		"bytes", len(body),
	)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, endpoint, timeout, err)
	}

	tracing.SetStatusCode(trace.SpanFromContext(ctx), resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()

	c.logger.DebugContext(ctx, "proxy returned error status",
		"endpoint", endpoint,
		"status", resp.StatusCode,
	)

	return nil, &StatusError{
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode,
		Body:       errorBody,
	}
}

// postRead is post followed by reading the whole body.
func (c *core) postRead(ctx context.Context, endpoint string, timeout time.Duration, payload any) ([]byte, int, error) {
	resp, err := c.post(ctx, endpoint, timeout, payload, "")
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, transportError(ctx, endpoint, timeout, fmt.Errorf("failed to read response: %w", err))
	}
	return data, resp.StatusCode, nil
}

func transportError(ctx context.Context, endpoint string, timeout time.Duration, err error) *TransportError {
	te := &TransportError{Endpoint: endpoint, Cause: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		te.Timeout = timeout
	}
	return te
}

// DecodeError is a 2xx response whose body is not the expected JSON.
type DecodeError struct {
	Endpoint string
	Cause    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("proxy %s returned an invalid body: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// outcomeOf maps an operation error to its metrics outcome label.
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var (
		se  *StatusError
		de  *DecodeError
		syn *decode.SyntaxError
	)
	switch {
	case errors.As(err, &se):
		return metrics.OutcomeHTTPError
	case errors.As(err, &de), errors.As(err, &syn):
		return metrics.OutcomeDecode
	case IsTimeout(err):
		return metrics.OutcomeTimeout
	default:
		return metrics.OutcomeTransport
	}
}

// Client bundles the three clients over one shared session.
type Client struct {
	Scanner *ScanClient
	Chat    *ChatClient
	Auditor *AuditClient

	core *core
}

// New creates the scan, chat and audit clients. They share one resolved
// session, so all of their calls carry the same session id.
func New(cfg Config) (*Client, error) {
	c, err := newCore(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		Scanner: &ScanClient{core: c},
		Chat:    newChatClient(c, cfg.Defaults),
		Auditor: &AuditClient{core: c},
		core:    c,
	}, nil
}

// Session returns the resolved session attached to every call.
func (c *Client) Session() session.Context {
	return c.core.session
}

// ProxyURL returns the normalized proxy base URL.
func (c *Client) ProxyURL() string {
	return c.core.baseURL
}
