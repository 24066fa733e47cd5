package logging

import (
	"log/slog"
	"regexp"
	"strings"

	"vurakit/agentveil/pkg/config"
)

// Redactor scrubs credentials and PII from log attributes.
type Redactor struct {
	patterns []*redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement func(string) string
}

// Built-in pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
	PatternEmail       = "email"
	PatternSSN         = "ssn"
	PatternCreditCard  = "credit_card"
	PatternIPv4        = "ipv4"
	PatternPhone       = "phone"
	PatternPassword    = "password"
)

// Masked replaces sensitive values completely.
const Masked = "***"

// sensitiveFragments mask a key wherever they appear in it.
var sensitiveFragments = []string{"api_key", "apikey", "api-key", "private_key", "privatekey"}

// sensitiveWords mask a key when they appear as a whole word, so that
// "auth_token" is masked but "max_tokens" is not.
var sensitiveWords = map[string]bool{
	"password": true, "passwd": true, "pwd": true,
	"secret": true, "token": true, "bearer": true,
	"auth": true, "authorization": true, "credential": true, "credentials": true,
}

// NewRedactor creates a Redactor with the built-in patterns followed by
// custom ones. Custom patterns that fail to compile are skipped.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}
	r.addDefaultPatterns()

	for _, p := range custom {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		replacement := p.Replacement
		r.patterns = append(r.patterns, &redactPattern{
			name:  p.Name,
			regex: regex,
			replacement: func(string) string {
				return replacement
			},
		})
	}

	return r
}

// addDefaultPatterns registers the built-in patterns. Order matters: bearer
// tokens and keys run before the numeric patterns so their digits are gone
// by the time phone and card patterns look.
func (r *Redactor) addDefaultPatterns() {
	fixed := func(s string) func(string) string {
		return func(string) string { return s }
	}

	r.patterns = append(r.patterns,
		&redactPattern{
			name:        PatternBearerToken,
			regex:       regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`),
			replacement: fixed("Bearer " + Masked),
		},
		&redactPattern{
			name:        PatternAPIKey,
			regex:       regexp.MustCompile(`\b(?:sk|vk)-[a-zA-Z0-9_\-]+`),
			replacement: RedactAPIKey,
		},
		&redactPattern{
			name:        PatternPassword,
			regex:       regexp.MustCompile(`(?i)\b(password|passwd|pwd)\s*[:=]\s*\S+`),
			replacement: fixed("password=" + Masked),
		},
		&redactPattern{
			name:        PatternEmail,
			regex:       regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
			replacement: RedactEmail,
		},
		&redactPattern{
			name:        PatternSSN,
			regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			replacement: fixed("***-**-****"),
		},
		&redactPattern{
			name:        PatternCreditCard,
			regex:       regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`),
			replacement: RedactCreditCard,
		},
		&redactPattern{
			name:        PatternIPv4,
			regex:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			replacement: RedactIPv4,
		},
		&redactPattern{
			name:        PatternPhone,
			regex:       regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
			replacement: fixed("***-***-****"),
		},
	)
}

// Patterns returns the names of the active patterns in evaluation order.
func (r *Redactor) Patterns() []string {
	names := make([]string, len(r.patterns))
	for i, p := range r.patterns {
		names[i] = p.name
	}
	return names
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllStringFunc(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Values under
// sensitive keys are masked outright; other string values are scrubbed
// with the patterns. The built-in time, level, and source keys are left
// alone.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey, slog.LevelKey, slog.SourceKey:
			return a
		}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, Masked)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for _, w := range words {
		if sensitiveWords[w] {
			return true
		}
	}
	return false
}

// RedactEmail keeps the first character and the domain.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	if at == 0 {
		return Masked + email
	}
	return email[:1] + Masked + email[at:]
}

// RedactAPIKey keeps the key prefix up to and including the first dash.
func RedactAPIKey(key string) string {
	if dash := strings.IndexByte(key, '-'); dash > 0 && dash < 4 {
		return key[:dash+1] + Masked
	}
	return Masked
}

// RedactIPv4 keeps only the first octet.
func RedactIPv4(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return parts[0] + ".*.*.*"
}

// RedactCreditCard keeps only the last four digits.
func RedactCreditCard(cc string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(cc)
	if len(cleaned) < 13 || len(cleaned) > 16 {
		return cc
	}
	return "****-****-****-" + cleaned[len(cleaned)-4:]
}
