// Veil is the command-line client for the Agent Veil PII proxy.
//
// It scans text for PII, sends chat completions through the proxy with
// optional pre and post call scanning, audits source files, and routes AI
// tools through the proxy by setting their base URL variables.
//
// Usage:
//
//	# Scan text for PII
//	veil scan "my email is jane@example.com"
//
//	# Chat through the proxy, refusing prompts that carry PII
//	veil chat --block-on-pii "summarise this ticket"
//
//	# Audit files; exits 2 when any file is high risk
//	veil audit main.go handlers.go
//
//	# Route the current shell through the proxy
//	eval "$(veil env)"
//
//	# Run a tool with the proxy base URLs in its environment
//	veil wrap -- claude
//
//	# Wait up to a minute for the proxy to come up
//	veil status --wait 60s
package main

import "os"

func main() {
	os.Exit(Execute())
}
