// Package secrets resolves ${secret:name} references in credential fields
// of the configuration.
package secrets

import "context"

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret retrieves a secret by name. It returns an error if the
	// secret is not found.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the provider name ("env", "file").
	Provider() string
}
