package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vurakit/agentveil/internal/proxytest"
	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/intercept"
	"vurakit/agentveil/pkg/session"
)

// clearEnv keeps the developer's VURA_* settings out of the tests.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VURA_PROXY_URL", "VURA_API_KEY", "VURA_PROVIDER", "VURA_ROLE",
		"VURA_SESSION_ID", "VURA_MODEL", "VURA_TEMPERATURE", "VURA_MAX_TOKENS",
		"VURA_BLOCK_ON_PII", "VURA_LOG_LEVEL", "VURA_LOG_FORMAT",
		"VURA_METRICS_ENABLED", "VURA_TRACING_ENABLED", "VURA_TRACING_ENDPOINT",
		"OPENAI_API_KEY",
	} {
		t.Setenv(key, "")
	}
}

type result struct {
	stdout string
	stderr string
	err    error
}

func runVeil(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestScanCommand(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse("EMAIL", "jane@example.com"))

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  []string
	}{
		{
			name: "text",
			args: []string{"scan", "--proxy-url", ms.URL(), "mail", "jane@example.com"},
			want: []string{"Found 1 PII entities:", `[EMAIL] "jane@example.com"`},
		},
		{
			name:  "stdin json",
			args:  []string{"scan", "--proxy-url", ms.URL(), "--json", "-"},
			stdin: "mail jane@example.com\n",
			want:  []string{`"found": true`, `"count": 1`, `"category": "EMAIL"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms.Reset()
			ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse("EMAIL", "jane@example.com"))

			res := runVeil(t, tt.stdin, tt.args...)
			if res.err != nil {
				t.Fatalf("scan error = %v, stderr = %s", res.err, res.stderr)
			}
			for _, w := range tt.want {
				if !strings.Contains(res.stdout, w) {
					t.Errorf("output missing %q:\n%s", w, res.stdout)
				}
			}

			reqs := ms.RequestsTo(proxytest.PathScan)
			if len(reqs) != 1 {
				t.Fatalf("scan requests = %d, want 1", len(reqs))
			}
			var body struct{ Text string }
			if err := reqs[0].JSON(&body); err != nil {
				t.Fatal(err)
			}
			if body.Text != "mail jane@example.com" {
				t.Errorf("scanned text = %q", body.Text)
			}
		})
	}
}

func TestScanCommand_ProxyFailure(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ErrorResponse(http.StatusBadGateway, "down"))

	res := runVeil(t, "", "scan", "--proxy-url", ms.URL(), "hello")
	if !errors.Is(res.err, errScanUnavailable) {
		t.Fatalf("error = %v, want errScanUnavailable", res.err)
	}
	if cli.ExitCode(res.err) != cli.ExitError {
		t.Errorf("exit code = %d", cli.ExitCode(res.err))
	}
}

func TestScanCommand_NoInput(t *testing.T) {
	clearEnv(t)
	res := runVeil(t, "", "scan", "  ")
	if res.err == nil {
		t.Fatal("expected an error for empty input")
	}
}

func TestChatCommand_SessionHeaders(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathChat, proxytest.ChatResponse("Paris"))

	res := runVeil(t, "", "chat",
		"--proxy-url", ms.URL(),
		"--api-key", "vk-test",
		"--role", "viewer",
		"--session-id", "sess-42",
		"--model", "gpt-4o-mini",
		"--system", "be brief",
		"capital of France?")
	if res.err != nil {
		t.Fatalf("chat error = %v, stderr = %s", res.err, res.stderr)
	}
	if strings.TrimSpace(res.stdout) != "Paris" {
		t.Errorf("output = %q, want Paris", res.stdout)
	}

	reqs := ms.RequestsTo(proxytest.PathChat)
	if len(reqs) != 1 {
		t.Fatalf("chat requests = %d, want 1", len(reqs))
	}
	h := reqs[0].Header
	if got := h.Get(session.HeaderAuthorization); got != "Bearer vk-test" {
		t.Errorf("Authorization = %q", got)
	}
	if got := h.Get(session.HeaderSessionID); got != "sess-42" {
		t.Errorf("X-Session-ID = %q", got)
	}
	if got := h.Get(session.HeaderUserRole); got != "viewer" {
		t.Errorf("X-User-Role = %q", got)
	}

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := reqs[0].JSON(&body); err != nil {
		t.Fatal(err)
	}
	if body.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", body.Model)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "capital of France?" {
		t.Errorf("messages = %+v", body.Messages)
	}
	if len(ms.RequestsTo(proxytest.PathScan)) != 0 {
		t.Error("unguarded chat should not scan")
	}
}

func TestChatCommand_Stream(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathChat, proxytest.StreamResponse("Hel", "lo", "!"))

	res := runVeil(t, "", "chat", "--proxy-url", ms.URL(), "--stream", "greet me")
	if res.err != nil {
		t.Fatalf("chat error = %v", res.err)
	}
	if res.stdout != "Hello!\n" {
		t.Errorf("output = %q, want %q", res.stdout, "Hello!\n")
	}
	if got := ms.RequestsTo(proxytest.PathChat)[0].Header.Get(session.HeaderAccept); got != session.ContentTypeEventStream {
		t.Errorf("Accept = %q", got)
	}
}

func TestChatCommand_Guarded(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse("PHONE", "0912345678"))
	ms.SetResponse(proxytest.PathChat, proxytest.ChatResponse("noted"))

	res := runVeil(t, "", "chat", "--proxy-url", ms.URL(), "--guard", "call 0912345678")
	if res.err != nil {
		t.Fatalf("chat error = %v", res.err)
	}
	if strings.TrimSpace(res.stdout) != "noted" {
		t.Errorf("output = %q", res.stdout)
	}
	// one scan for the prompt, one for the answer
	if n := len(ms.RequestsTo(proxytest.PathScan)); n != 2 {
		t.Errorf("scan requests = %d, want 2", n)
	}
	if !strings.Contains(res.stderr, `[PHONE] "0912345678"`) {
		t.Errorf("findings not reported on stderr:\n%s", res.stderr)
	}
}

func TestChatCommand_BlockOnPII(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse("EMAIL", "a@b.vn"))
	ms.SetResponse(proxytest.PathChat, proxytest.ChatResponse("never sent"))

	res := runVeil(t, "", "chat", "--proxy-url", ms.URL(), "--block-on-pii", "mail a@b.vn")
	if !intercept.IsPIIDetected(res.err) {
		t.Fatalf("error = %v, want PII detected", res.err)
	}
	if n := len(ms.RequestsTo(proxytest.PathChat)); n != 0 {
		t.Errorf("chat requests = %d, want 0", n)
	}
	if res.stdout != "" {
		t.Errorf("blocked chat printed %q", res.stdout)
	}
}

func TestChatCommand_BlockFromEnv(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse("EMAIL", "a@b.vn"))
	t.Setenv("VURA_BLOCK_ON_PII", "true")
	t.Setenv("VURA_PROXY_URL", ms.URL())

	res := runVeil(t, "", "chat", "mail a@b.vn")
	if !intercept.IsPIIDetected(res.err) {
		t.Fatalf("error = %v, want PII detected", res.err)
	}
}

func TestChatCommand_StatusError(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathChat, proxytest.ErrorResponse(http.StatusUnauthorized, "bad key"))

	res := runVeil(t, "", "chat", "--proxy-url", ms.URL(), "hi")
	if res.err == nil || !strings.Contains(res.err.Error(), "401") {
		t.Fatalf("error = %v, want a 401 status error", res.err)
	}
}

func TestAuditCommand(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		response proxytest.MockResponse
		args     []string
		wantCode int
		want     []string
	}{
		{
			name:     "limited risk",
			response: proxytest.AuditResponse(2, "Limited", 84.6),
			args:     []string{path},
			wantCode: cli.ExitOK,
			want:     []string{"Risk level: Limited (2)", "Compliance score: 85/100"},
		},
		{
			name: "high risk exits 2",
			response: proxytest.AuditResponse(3, "High", 40, map[string]any{
				"line": 1, "severity": "high", "category": "pii", "description": "hard-coded email",
			}),
			args:     []string{path},
			wantCode: cli.ExitHighRisk,
			want:     []string{"Risk level: High (3)", "line 1 [HIGH] hard-coded email"},
		},
		{
			name:     "json",
			response: proxytest.AuditResponse(1, "Minimal", 100),
			args:     []string{"--format", "json", path},
			wantCode: cli.ExitOK,
			want:     []string{`"source": "` + path + `"`, `"risk_level": 1`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms.Reset()
			ms.SetResponse(proxytest.PathAudit, tt.response)

			args := append([]string{"audit", "--proxy-url", ms.URL()}, tt.args...)
			res := runVeil(t, "", args...)
			if code := cli.ExitCode(res.err); code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (err = %v)", code, tt.wantCode, res.err)
			}
			for _, w := range tt.want {
				if !strings.Contains(res.stdout, w) {
					t.Errorf("output missing %q:\n%s", w, res.stdout)
				}
			}
		})
	}
}

func TestAuditCommand_MultipleSources(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathAudit, proxytest.AuditResponse(1, "Minimal", 100))

	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res := runVeil(t, "package stdin\n", "audit", "--proxy-url", ms.URL(), "--format", "json", path, "-")
	if res.err != nil {
		t.Fatalf("audit error = %v", res.err)
	}
	var views []map[string]any
	if err := json.Unmarshal([]byte(res.stdout), &views); err != nil {
		t.Fatalf("output is not a JSON array: %v\n%s", err, res.stdout)
	}
	if len(views) != 2 || views[1]["source"] != "-" {
		t.Errorf("views = %v", views)
	}

	reqs := ms.RequestsTo(proxytest.PathAudit)
	if len(reqs) != 2 {
		t.Fatalf("audit requests = %d, want 2", len(reqs))
	}
	var body struct{ Content string }
	if err := reqs[1].JSON(&body); err != nil {
		t.Fatal(err)
	}
	if body.Content != "package stdin\n" {
		t.Errorf("stdin content = %q", body.Content)
	}
}

func TestAuditCommand_MissingFile(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()

	res := runVeil(t, "", "audit", "--proxy-url", ms.URL(), filepath.Join(t.TempDir(), "missing.go"))
	if !errors.Is(res.err, fs.ErrNotExist) {
		t.Fatalf("error = %v, want not-exist", res.err)
	}
	if ms.RequestCount() != 0 {
		t.Error("missing file should not reach the proxy")
	}
}

func TestAuditCommand_InvalidFormat(t *testing.T) {
	clearEnv(t)
	res := runVeil(t, "", "audit", "--format", "csv", "x.go")
	if res.err == nil || !strings.Contains(res.err.Error(), "format") {
		t.Fatalf("error = %v, want a format error", res.err)
	}
}

func TestEnvCommand(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHELL", "/bin/bash")

	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{
			name: "export",
			args: []string{"env", "--proxy-url", "http://veil.local:9000/", "--session-id", "s-1"},
			want: []string{
				"export OPENAI_BASE_URL=http://veil.local:9000/v1",
				"export ANTHROPIC_BASE_URL=http://veil.local:9000",
				"export VURA_SESSION_ID=s-1",
			},
		},
		{
			name: "unset fish",
			args: []string{"env", "--unset", "--shell", "fish"},
			want: []string{"set -e OPENAI_BASE_URL", "set -e VURA_SESSION_ID"},
			not:  []string{"set -gx"},
		},
		{
			name: "single tool",
			args: []string{"env", "--tool", "claude"},
			want: []string{"export ANTHROPIC_BASE_URL=http://localhost:8080"},
			not:  []string{"OPENAI_BASE_URL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runVeil(t, "", tt.args...)
			if res.err != nil {
				t.Fatalf("env error = %v", res.err)
			}
			for _, w := range tt.want {
				if !strings.Contains(res.stdout, w) {
					t.Errorf("output missing %q:\n%s", w, res.stdout)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(res.stdout, n) {
					t.Errorf("output should not contain %q:\n%s", n, res.stdout)
				}
			}
		})
	}
}

func TestEnvCommand_InvalidRole(t *testing.T) {
	clearEnv(t)
	res := runVeil(t, "", "env", "--role", "root")
	if res.err == nil {
		t.Fatal("expected a validation error for an unknown role")
	}
}

func TestWrapEnv(t *testing.T) {
	clearEnv(t)
	cfg, err := loadConfig(newRootCmd(), &rootOptions{})
	if err != nil {
		t.Fatal(err)
	}
	cfg.Proxy.APIKey = "vk-wrap"
	cfg.Proxy.SessionID = "s-wrap"

	base := []string{"PATH=/usr/bin", "VEIL_API_KEY=stale", "ANTHROPIC_BASE_URL=https://api.anthropic.com"}
	env, err := wrapEnv(base, cfg, "/usr/local/bin/claude")
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]string{
		"PATH":               "/usr/bin",
		"VEIL_API_KEY":       "vk-wrap",
		"ANTHROPIC_BASE_URL": "http://localhost:8080",
		"VURA_SESSION_ID":    "s-wrap",
	}
	got := make(map[string]string)
	for _, kv := range env {
		k, v, _ := strings.Cut(kv, "=")
		if _, dup := got[k]; dup {
			t.Errorf("duplicate variable %s", k)
		}
		got[k] = v
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if base[1] != "VEIL_API_KEY=stale" {
		t.Error("base environment was modified")
	}
}

func TestWrapCommand_ExitStatus(t *testing.T) {
	clearEnv(t)
	res := runVeil(t, "", "wrap", "--proxy-url", "http://veil.local:9000", "--",
		"sh", "-c", `echo "$OPENAI_BASE_URL"; exit 3`)
	if code := cli.ExitCode(res.err); code != 3 {
		t.Fatalf("exit code = %d, want 3 (err = %v)", code, res.err)
	}
	if strings.TrimSpace(res.stdout) != "http://veil.local:9000/v1" {
		t.Errorf("wrapped command saw OPENAI_BASE_URL = %q", res.stdout)
	}
}

func TestWrapCommand_UnknownCommand(t *testing.T) {
	clearEnv(t)
	res := runVeil(t, "", "wrap", "--", "veil-no-such-command-xyz")
	var ce *cli.CommandError
	if !errors.As(res.err, &ce) {
		t.Fatalf("error = %v, want a CommandError", res.err)
	}
}

func TestMetricsFile(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathScan, proxytest.ScanResponse())

	path := filepath.Join(t.TempDir(), "metrics.prom")
	res := runVeil(t, "", "scan", "--proxy-url", ms.URL(), "--metrics-file", path, "hello")
	if res.err != nil {
		t.Fatalf("scan error = %v", res.err)
	}
	if !strings.Contains(res.stdout, "No PII detected.") {
		t.Errorf("output = %q", res.stdout)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `veil_client_requests_total{endpoint="/scan",outcome="success"} 1`) {
		t.Errorf("metrics file missing scan counter:\n%s", data)
	}
}

func TestVersionCommand(t *testing.T) {
	orig := Version
	Version = "9.9.9-test"
	defer func() { Version = orig }()

	res := runVeil(t, "", "version")
	if res.err != nil {
		t.Fatal(res.err)
	}
	for _, w := range []string{"Agent Veil 9.9.9-test", "Go Version:", "OS/Arch:"} {
		if !strings.Contains(res.stdout, w) {
			t.Errorf("output missing %q:\n%s", w, res.stdout)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			res := runVeil(t, "", "completion", shell)
			if res.err != nil {
				t.Fatal(res.err)
			}
			if !strings.Contains(res.stdout, "veil") {
				t.Error("completion script does not mention veil")
			}
		})
	}

	if res := runVeil(t, "", "completion", "tcsh"); res.err == nil {
		t.Error("expected an error for an unsupported shell")
	}
}

func TestStatusCommand(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_BASE_URL", "http://veil.local")
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathHealth, proxytest.HealthyResponse())

	res := runVeil(t, "", "status", "--proxy-url", ms.URL(), "--session-id", "s-status")
	if res.err != nil {
		t.Fatalf("status error = %v", res.err)
	}
	for _, w := range []string{
		"(ready)",
		"Session: s-status (admin)",
		"[ok]   proxy",
		"ANTHROPIC_BASE_URL=http://veil.local",
	} {
		if !strings.Contains(res.stdout, w) {
			t.Errorf("output missing %q:\n%s", w, res.stdout)
		}
	}
}

func TestStatusCommand_Unhealthy(t *testing.T) {
	clearEnv(t)
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathHealth, proxytest.ErrorResponse(http.StatusServiceUnavailable, "starting"))

	res := runVeil(t, "", "status", "--proxy-url", ms.URL(), "--json")
	if code := cli.ExitCode(res.err); code != cli.ExitError {
		t.Fatalf("exit code = %d, want 1 (err = %v)", code, res.err)
	}
	var view struct {
		Health struct {
			Status string `json:"status"`
			Checks []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"checks"`
		} `json:"health"`
	}
	if err := json.Unmarshal([]byte(res.stdout), &view); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, res.stdout)
	}
	if view.Health.Status != "degraded" || len(view.Health.Checks) != 1 || view.Health.Checks[0].Status != "unhealthy" {
		t.Errorf("health = %+v", view.Health)
	}
}

func TestChatCommand_SecretReference(t *testing.T) {
	clearEnv(t)
	t.Setenv("VURA_SECRET_PROXY_KEY", "vk-secret")
	ms := proxytest.NewMockServer()
	defer ms.Close()
	ms.SetResponse(proxytest.PathChat, proxytest.ChatResponse("ok"))

	res := runVeil(t, "", "chat", "--proxy-url", ms.URL(), "--api-key", "${secret:proxy-key}", "hi")
	if res.err != nil {
		t.Fatalf("chat error = %v", res.err)
	}
	if got := ms.RequestsTo(proxytest.PathChat)[0].Header.Get(session.HeaderAuthorization); got != "Bearer vk-secret" {
		t.Errorf("Authorization = %q", got)
	}
}
