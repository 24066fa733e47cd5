package cli

import (
	"fmt"
	"strings"
	"time"

	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/telemetry/health"
)

// ScanView is the printed result of `veil scan`.
type ScanView struct {
	Found    bool            `json:"found"`
	Count    int             `json:"count"`
	Entities []client.Entity `json:"entities"`
}

// NewScanView builds the view of a scan result.
func NewScanView(r client.ScanResult) ScanView {
	entities := r.Entities
	if entities == nil {
		entities = []client.Entity{}
	}
	return ScanView{Found: r.Found, Count: len(entities), Entities: entities}
}

// Text implements Texter.
func (v ScanView) Text() string {
	if !v.Found {
		return "No PII detected."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d PII entities:\n", v.Count)
	for _, e := range v.Entities {
		fmt.Fprintf(&sb, "  [%s] %q at %d-%d", e.Type, e.Value, e.Start, e.End)
		if e.Confidence > 0 {
			fmt.Fprintf(&sb, " (confidence %d%%)", e.Confidence)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// AuditView is the printed result of auditing one source.
type AuditView struct {
	Source string `json:"source"`
	*client.AuditReport
}

// Text implements Texter.
func (v AuditView) Text() string {
	var sb strings.Builder
	if v.Source != "" {
		fmt.Fprintf(&sb, "Audit: %s\n", v.Source)
	}
	label := v.RiskLevelLabel
	if label == "" {
		label = v.RiskLevel.String()
	}
	fmt.Fprintf(&sb, "Risk level: %s (%d)\n", label, int(v.RiskLevel))
	fmt.Fprintf(&sb, "Compliance score: %d/100\n", int(v.ComplianceScore))
	if v.Summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n", v.Summary)
	}
	if len(v.Findings) == 0 {
		sb.WriteString("No findings.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Findings (%d):\n", len(v.Findings))
	for _, f := range v.Findings {
		fmt.Fprintf(&sb, "  line %d [%s] %s\n", f.Line, strings.ToUpper(f.Severity), f.Description)
		if f.Snippet != "" {
			fmt.Fprintf(&sb, "    > %s\n", f.Snippet)
		}
	}
	return sb.String()
}

// EnvVar is one environment variable shown by `veil status`.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Set   bool   `json:"set"`
}

// StatusView is the printed result of `veil status`.
type StatusView struct {
	ProxyURL  string        `json:"proxy_url"`
	SessionID string        `json:"session_id"`
	Role      string        `json:"role"`
	Health    health.Report `json:"health"`
	Env       []EnvVar      `json:"env"`
}

// Text implements Texter.
func (v StatusView) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Proxy: %s (%s)\n", v.ProxyURL, v.Health.Status)
	fmt.Fprintf(&sb, "Session: %s (%s)\n", v.SessionID, v.Role)
	sb.WriteString("Checks:\n")
	for _, c := range v.Health.Checks {
		if c.Status == health.StatusOK {
			fmt.Fprintf(&sb, "  [ok]   %s (%s)\n", c.Name, c.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(&sb, "  [fail] %s: %s\n", c.Name, c.Message)
		}
	}
	sb.WriteString("Environment:\n")
	for _, e := range v.Env {
		value := e.Value
		if !e.Set {
			value = "<not set>"
		}
		fmt.Fprintf(&sb, "  %s=%s\n", e.Name, value)
	}
	return sb.String()
}
