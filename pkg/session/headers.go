package session

import "net/http"

// Header names used on the proxy wire.
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderSessionID     = "X-Session-ID"
	HeaderUserRole      = "X-User-Role"
	HeaderProvider      = "X-Vura-Provider"
	HeaderAccept        = "Accept"
)

// Content types.
const (
	ContentTypeJSON        = "application/json"
	ContentTypeEventStream = "text/event-stream"
)

// Headers builds the outbound header set for c.
//
// Content-Type is always present. Authorization is present iff c has a
// bearer key, and the session, role and provider headers iff their field
// is non-empty.
func Headers(c Context) http.Header {
	h := make(http.Header, 5)
	h.Set(HeaderContentType, ContentTypeJSON)

	if key := c.BearerKey(); key != "" {
		h.Set(HeaderAuthorization, "Bearer "+key)
	}
	if c.SessionID != "" {
		h.Set(HeaderSessionID, c.SessionID)
	}
	if c.Role != "" {
		h.Set(HeaderUserRole, string(c.Role))
	}
	if c.Provider != "" {
		h.Set(HeaderProvider, c.Provider)
	}

	return h
}

// Apply sets every header from h on req, replacing existing values.
func Apply(req *http.Request, h http.Header) {
	for key, values := range h {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}
