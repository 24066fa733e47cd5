package client

import (
	"encoding/json"
	"fmt"
	"math"

	"vurakit/agentveil/pkg/config"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage returns a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AssistantMessage returns an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is the body of a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

// Validate checks the request against the ranges the proxy accepts.
func (r *ChatRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("model is required")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", r.Temperature)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", r.MaxTokens)
	}
	return nil
}

// ChatDefaults are the client-level request fields that per-call options
// override.
type ChatDefaults struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// DefaultChatDefaults returns gpt-4, temperature 0.7 and 4096 max tokens.
func DefaultChatDefaults() ChatDefaults {
	return ChatDefaults{
		Model:       config.DefaultChatModel,
		Temperature: config.DefaultChatTemperature,
		MaxTokens:   config.DefaultChatMaxTokens,
	}
}

// ChatDefaultsFromConfig converts the chat config section. Unset fields
// keep the package defaults.
func ChatDefaultsFromConfig(cfg config.ChatConfig) ChatDefaults {
	d := DefaultChatDefaults()
	if cfg.Model != "" {
		d.Model = cfg.Model
	}
	if cfg.Temperature != nil {
		d.Temperature = *cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		d.MaxTokens = cfg.MaxTokens
	}
	return d
}

// ChatOption overrides one field of a chat request.
type ChatOption func(*ChatRequest)

// WithModel overrides the model.
func WithModel(model string) ChatOption {
	return func(r *ChatRequest) { r.Model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ChatOption {
	return func(r *ChatRequest) { r.Temperature = t }
}

// WithMaxTokens overrides the completion token limit.
func WithMaxTokens(n int) ChatOption {
	return func(r *ChatRequest) { r.MaxTokens = n }
}

// Entity is one PII instance reported by a scan.
type Entity struct {
	// Type is the entity category, such as EMAIL or CCCD.
	Type string `json:"category"`

	// Value is the original text that matched.
	Value string `json:"original"`

	// Start and End are byte offsets into the scanned text.
	Start int `json:"start"`
	End   int `json:"end"`

	Confidence int `json:"confidence,omitempty"`
}

// ScanResult is the body of a /scan response.
type ScanResult struct {
	Found    bool     `json:"found"`
	Entities []Entity `json:"entities"`
}

// ScanOutcome is the result of an advisory scan: either a ScanResult or
// nothing. OK is false whenever the scan could not be completed.
type ScanOutcome struct {
	Result ScanResult
	OK     bool
}

// Get returns the result and whether there is one.
func (o ScanOutcome) Get() (ScanResult, bool) {
	return o.Result, o.OK
}

// Positive reports whether the scan completed and found PII.
func (o ScanOutcome) Positive() bool {
	return o.OK && o.Result.Found
}

// RiskLevel is the audit risk classification.
type RiskLevel int

// Risk levels, lowest first.
const (
	RiskMinimal      RiskLevel = 1
	RiskLimited      RiskLevel = 2
	RiskHigh         RiskLevel = 3
	RiskUnacceptable RiskLevel = 4
)

func (r RiskLevel) String() string {
	switch r {
	case RiskMinimal:
		return "minimal"
	case RiskLimited:
		return "limited"
	case RiskHigh:
		return "high"
	case RiskUnacceptable:
		return "unacceptable"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// AuditFinding is one issue found in audited content.
type AuditFinding struct {
	Line        int    `json:"line"`
	Severity    string `json:"severity"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description"`
	Snippet     string `json:"snippet,omitempty"`
}

// ComplianceScore is an integer score from 0 to 100. The proxy may send a
// fractional number; it is rounded and clamped when decoded.
type ComplianceScore int

// UnmarshalJSON implements json.Unmarshaler.
func (s *ComplianceScore) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("compliance_score: %w", err)
	}
	v := math.Round(f)
	switch {
	case v < 0:
		v = 0
	case v > 100:
		v = 100
	}
	*s = ComplianceScore(v)
	return nil
}

// AuditReport is the body of an /audit response.
type AuditReport struct {
	RiskLevel       RiskLevel       `json:"risk_level"`
	RiskLevelLabel  string          `json:"risk_level_label"`
	ComplianceScore ComplianceScore `json:"compliance_score"`
	Summary         string          `json:"summary,omitempty"`
	Findings        []AuditFinding  `json:"findings"`
}

// HighRisk reports whether the proxy classified the content as high risk
// or worse.
func (r *AuditReport) HighRisk() bool {
	return r.RiskLevel >= RiskHigh
}
