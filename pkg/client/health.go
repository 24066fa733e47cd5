package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"vurakit/agentveil/pkg/session"
)

// EndpointHealth is the proxy liveness endpoint.
const EndpointHealth = "/health"

// HealthTimeout bounds one health probe.
const HealthTimeout = 5 * time.Second

// Ping checks that the proxy answers its health endpoint with 200. It
// carries the session headers like every other call.
func (c *Client) Ping(ctx context.Context) (err error) {
	ctx, _, finish := c.core.begin(ctx, EndpointHealth, "veil.health")
	defer func() { finish(err) }()

	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.core.baseURL+EndpointHealth, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	session.Apply(req, c.core.headers)

	resp, err := c.core.http.Do(req)
	if err != nil {
		return transportError(ctx, EndpointHealth, HealthTimeout, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Endpoint: EndpointHealth, StatusCode: resp.StatusCode, Body: body}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
