// Package session carries the caller identity that Agent Veil attaches to
// every proxied call.
//
// A Context bundles the session id, role, credentials and provider hint.
// It is built once per client (or at activation) and never changes after
// that. The proxy uses the session id to group PII token mappings, so every
// call in one logical conversation must share it.
//
// # Headers
//
// Headers derives the outbound header set from a Context:
//
//	ctx := session.Resolve(session.Context{Role: session.RoleViewer, APIKey: key})
//	h := session.Headers(ctx)
//	// Content-Type, Authorization, X-Session-ID, X-User-Role
//
// # Transport
//
// Code that already uses an OpenAI-compatible HTTP client can route through
// the proxy by swapping in an http.Client from NewHTTPClient. Its Transport
// stamps the session headers onto each request and leaves everything else
// alone:
//
//	httpClient := session.NewHTTPClient(ctx)
//	resp, err := httpClient.Post(proxyURL+"/v1/chat/completions", "application/json", body)
package session
