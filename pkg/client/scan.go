package client

import (
	"context"
	"encoding/json"
	"net/http"

	"vurakit/agentveil/pkg/session"
	"vurakit/agentveil/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type scanRequest struct {
	Text string `json:"text"`
}

// ScanClient calls the advisory /scan endpoint.
type ScanClient struct {
	core *core
}

// NewScanClient creates a standalone scan client.
func NewScanClient(cfg Config) (*ScanClient, error) {
	c, err := newCore(cfg)
	if err != nil {
		return nil, err
	}
	return &ScanClient{core: c}, nil
}

// Session returns the session attached to scan calls.
func (c *ScanClient) Session() session.Context {
	return c.core.session
}

// Scan asks the proxy which PII entities text contains. It never fails:
// a timeout, a connection error, any status other than 200 or an
// undecodable body all yield an outcome with OK false.
func (c *ScanClient) Scan(ctx context.Context, text string) ScanOutcome {
	ctx, span, finish := c.core.begin(ctx, EndpointScan, "veil.scan")

	result, err := c.scan(ctx, text)
	finish(err)

	if err != nil {
		reason := outcomeOf(err)
		c.core.metrics.RecordScanFailure(reason)
		c.core.logger.DebugContext(ctx, "scan failed, continuing without result",
			"reason", reason,
			"error", err,
		)
		return ScanOutcome{}
	}

	span.SetAttributes(attribute.Int(tracing.AttrEntities, len(result.Entities)))
	return ScanOutcome{Result: result, OK: true}
}

func (c *ScanClient) scan(ctx context.Context, text string) (ScanResult, error) {
	ctx, cancel := context.WithTimeout(ctx, ScanTimeout)
	defer cancel()

	body, status, err := c.core.postRead(ctx, EndpointScan, ScanTimeout, scanRequest{Text: text})
	if err != nil {
		return ScanResult{}, err
	}
	if status != http.StatusOK {
		return ScanResult{}, &StatusError{Endpoint: EndpointScan, StatusCode: status, Body: body}
	}

	var result ScanResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ScanResult{}, &DecodeError{Endpoint: EndpointScan, Cause: err}
	}
	return result, nil
}
