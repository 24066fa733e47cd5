package client

import (
	"context"
	"encoding/json"
	"os"

	"vurakit/agentveil/pkg/session"
	"vurakit/agentveil/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type auditRequest struct {
	Content string `json:"content"`
}

// AuditClient calls the /audit endpoint.
type AuditClient struct {
	core *core
}

// NewAuditClient creates a standalone audit client.
func NewAuditClient(cfg Config) (*AuditClient, error) {
	c, err := newCore(cfg)
	if err != nil {
		return nil, err
	}
	return &AuditClient{core: c}, nil
}

// Session returns the session attached to audit calls.
func (c *AuditClient) Session() session.Context {
	return c.core.session
}

// Audit submits content for a compliance audit.
//
// High-risk content is answered with 403 and returned as a *StatusError;
// use ReportFromError to read the report it carries.
func (c *AuditClient) Audit(ctx context.Context, content string) (report *AuditReport, err error) {
	ctx, span, finish := c.core.begin(ctx, EndpointAudit, "veil.audit")
	defer func() { finish(err) }()

	ctx, cancel := context.WithTimeout(ctx, AuditTimeout)
	defer cancel()

	body, _, err := c.core.postRead(ctx, EndpointAudit, AuditTimeout, auditRequest{Content: content})
	if err != nil {
		return nil, err
	}

	var r AuditReport
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &DecodeError{Endpoint: EndpointAudit, Cause: err}
	}
	span.SetAttributes(attribute.Int(tracing.AttrRiskLevel, int(r.RiskLevel)))
	return &r, nil
}

// AuditFile reads path and audits its content. Errors from reading the
// file are returned as they are.
func (c *AuditClient) AuditFile(ctx context.Context, path string) (*AuditReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return c.Audit(ctx, string(data))
}
