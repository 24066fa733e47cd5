// Package activation points unmodified model clients at the Agent Veil
// proxy.
//
// Activating a State resolves a session and sets OPENAI_BASE_URL to the
// proxy's /v1 root, which OpenAI-compatible SDKs read at construction.
// Deactivating clears both. State is an ordinary value owned by the
// caller:
//
//	st := activation.NewState(nil)
//	cfg, err := st.Activate(activation.Options{ProxyURL: "http://localhost:8080"})
//	defer st.Deactivate()
//
// A process-wide State is available through the package functions
// Activate, Deactivate, IsActive and Current. Like the environment it
// writes, it has no synchronization: concurrent activations race and the
// last write wins.
package activation
