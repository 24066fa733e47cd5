package session

import "net/http"

// Transport is an http.RoundTripper that stamps session headers onto every
// request before handing it to the base transport.
type Transport struct {
	ctx  Context
	base http.RoundTripper
}

// NewTransport wraps base (or http.DefaultTransport when nil).
// The session id is resolved and an empty role becomes DefaultRole.
func NewTransport(c Context, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	c = Resolve(c)
	if c.Role == "" {
		c.Role = DefaultRole
	}
	return &Transport{ctx: c, base: base}
}

// Session returns the resolved session context used by the transport.
func (t *Transport) Session() Context {
	return t.ctx
}

// RoundTrip clones req, adds the session headers and sends the clone.
// An Authorization header already on the request is kept.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	r.Header.Set(HeaderSessionID, t.ctx.SessionID)
	r.Header.Set(HeaderUserRole, string(t.ctx.Role))
	if t.ctx.Provider != "" {
		r.Header.Set(HeaderProvider, t.ctx.Provider)
	}

	if key := t.ctx.BearerKey(); key != "" && r.Header.Get(HeaderAuthorization) == "" {
		r.Header.Set(HeaderAuthorization, "Bearer "+key)
	}

	return t.base.RoundTrip(r)
}

// NewHTTPClient returns an *http.Client that routes through Transport.
func NewHTTPClient(c Context) *http.Client {
	return &http.Client{
		Transport: NewTransport(c, nil),
	}
}
