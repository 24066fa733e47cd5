package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// StatusError is a non-2xx response from the proxy.
type StatusError struct {
	// Endpoint is the request path, such as /v1/chat/completions.
	Endpoint string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the response body, truncated to 64 KiB.
	Body []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	msg := http.StatusText(e.StatusCode)
	if len(e.Body) > 0 {
		msg = truncate(string(e.Body), 200)
	}
	return fmt.Sprintf("proxy %s returned status %d: %s", e.Endpoint, e.StatusCode, msg)
}

// TransportError is a failure to complete the exchange with the proxy:
// connection errors, timeouts, or a body that could not be read.
type TransportError struct {
	// Endpoint is the request path.
	Endpoint string

	// Timeout is set when the failure was a deadline expiry. It holds the
	// fixed per-operation timeout.
	Timeout time.Duration

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("proxy %s timed out after %s: %v", e.Endpoint, e.Timeout, e.Cause)
	}
	return fmt.Sprintf("proxy %s request failed: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether err is a deadline expiry on a proxy call.
func IsTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) && te.Timeout > 0 {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsStatus reports whether err is a proxy response with the given status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// ReportFromError recovers the audit report carried by a rejected audit.
// The proxy answers 403 for high-risk content and still sends the report.
func ReportFromError(err error) (*AuditReport, bool) {
	var se *StatusError
	if !errors.As(err, &se) || se.Endpoint != EndpointAudit || len(se.Body) == 0 {
		return nil, false
	}
	var report AuditReport
	if jsonErr := json.Unmarshal(se.Body, &report); jsonErr != nil || report.RiskLevel == 0 {
		return nil, false
	}
	return &report, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
