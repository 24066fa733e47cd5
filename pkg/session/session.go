package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role controls how much of the restored data the proxy reveals to the caller.
type Role string

// Known roles.
const (
	// RoleAdmin sees fully restored values.
	RoleAdmin Role = "admin"

	// RoleViewer sees partially masked values.
	RoleViewer Role = "viewer"

	// RoleOperator sees values as permitted by operator policy.
	RoleOperator Role = "operator"
)

// DefaultRole is used when no role is configured.
const DefaultRole = RoleAdmin

// ParseRole parses a role name case-insensitively.
// The empty string parses to the empty role, which sends no role header.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" || r.Valid() {
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q (want admin, viewer or operator)", s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleViewer, RoleOperator:
		return true
	}
	return false
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// Context is the identity and credential bundle attached to proxied calls.
type Context struct {
	// SessionID groups PII mappings for one logical conversation.
	SessionID string

	// Role is sent as X-User-Role when non-empty.
	Role Role

	// APIKey is the Agent Veil proxy key. It wins over ProviderAPIKey.
	APIKey string

	// ProviderAPIKey is the upstream provider key, used for the bearer
	// credential when APIKey is empty.
	ProviderAPIKey string

	// Provider is an optional routing hint sent as X-Vura-Provider.
	Provider string
}

// Resolve returns a copy of c with a generated session id when none is set.
func Resolve(c Context) Context {
	if c.SessionID == "" {
		c.SessionID = uuid.NewString()
	}
	return c
}

// BearerKey returns the credential to send, or "" if none resolved.
func (c Context) BearerKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return c.ProviderAPIKey
}
