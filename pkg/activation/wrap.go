package activation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Base URL variables read by the common AI tools.
const (
	EnvOpenAIAPIBase    = "OPENAI_API_BASE"
	EnvAnthropicBaseURL = "ANTHROPIC_BASE_URL"
	EnvGeminiAPIBase    = "GEMINI_API_BASE"
	EnvVeilAPIKey       = "VEIL_API_KEY"
)

// Var is one environment assignment.
type Var struct {
	Name  string
	Value string
}

// Tool is a recognised AI tool.
type Tool string

// Known tools. ToolGeneric gets every base URL.
const (
	ToolClaude  Tool = "claude"
	ToolCursor  Tool = "cursor"
	ToolAider   Tool = "aider"
	ToolGemini  Tool = "gemini"
	ToolGeneric Tool = "generic"
)

// DetectTool classifies a command by its base name.
func DetectTool(command string) Tool {
	name := strings.ToLower(filepath.Base(command))
	for _, t := range []Tool{ToolClaude, ToolCursor, ToolAider, ToolGemini} {
		if strings.Contains(name, string(t)) {
			return t
		}
	}
	return ToolGeneric
}

// ToolVars returns the variables that route tool through proxyURL.
// The OpenAI SDKs want the /v1 root, the Anthropic SDK appends /v1 itself,
// and Gemini traffic goes under /gemini.
func ToolVars(proxyURL string, tool Tool) []Var {
	proxyURL = strings.TrimRight(proxyURL, "/")
	openai := proxyURL + "/v1"
	anthropic := proxyURL
	gemini := proxyURL + "/gemini"

	switch tool {
	case ToolClaude:
		return []Var{{EnvAnthropicBaseURL, anthropic}}
	case ToolCursor:
		return []Var{{EnvBaseURL, openai}, {EnvAnthropicBaseURL, anthropic}}
	case ToolAider:
		return []Var{{EnvOpenAIAPIBase, openai}}
	case ToolGemini:
		return []Var{{EnvGeminiAPIBase, gemini}}
	default:
		return []Var{
			{EnvBaseURL, openai},
			{EnvOpenAIAPIBase, openai},
			{EnvAnthropicBaseURL, anthropic},
			{EnvGeminiAPIBase, gemini},
		}
	}
}

// WrapEnv returns env, in os.Environ form, with the base URLs for the tool
// that command names set to proxyURL. Existing assignments are replaced in
// place; the input slice is not modified.
func WrapEnv(env []string, proxyURL, command string) []string {
	out := append([]string(nil), env...)
	for _, v := range ToolVars(proxyURL, DetectTool(command)) {
		out = setVar(out, v.Name, v.Value)
	}
	return out
}

func setVar(env []string, name, value string) []string {
	prefix := name + "="
	for i, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}

// Shell is a shell dialect for export lines.
type Shell string

// Supported shells.
const (
	ShellPOSIX Shell = "sh"
	ShellFish  Shell = "fish"
)

// ShellFor picks the dialect for a $SHELL path.
func ShellFor(path string) Shell {
	if filepath.Base(path) == "fish" {
		return ShellFish
	}
	return ShellPOSIX
}

// ExportLines renders vars as shell assignments.
func ExportLines(shell Shell, vars []Var) []string {
	lines := make([]string, 0, len(vars))
	for _, v := range vars {
		if shell == ShellFish {
			lines = append(lines, fmt.Sprintf("set -gx %s %s", v.Name, shellQuote(v.Value)))
		} else {
			lines = append(lines, fmt.Sprintf("export %s=%s", v.Name, shellQuote(v.Value)))
		}
	}
	return lines
}

// UnsetLines renders the removal of vars.
func UnsetLines(shell Shell, vars []Var) []string {
	lines := make([]string, 0, len(vars))
	for _, v := range vars {
		if shell == ShellFish {
			lines = append(lines, "set -e "+v.Name)
		} else {
			lines = append(lines, "unset "+v.Name)
		}
	}
	return lines
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\$`;&|<>()*?[]#~!{}") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
