package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix namespaces secrets read from the environment.
const DefaultEnvPrefix = "VURA_SECRET_"

// EnvProvider loads secrets from environment variables.
//
// Secret names are converted to uppercase environment variable names
// with hyphens replaced by underscores, after the prefix:
//   - Secret name: "proxy-key"
//   - Env var name: "VURA_SECRET_PROXY_KEY"
type EnvProvider struct {
	Prefix string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// NewEnvProvider creates an environment provider with prefix.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{Prefix: prefix}
}

// GetSecret reads the variable for name. An empty variable counts as
// missing.
func (p *EnvProvider) GetSecret(_ context.Context, name string) (string, error) {
	envVar := p.envVar(name)

	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	value := getenv(envVar)
	if value == "" {
		return "", fmt.Errorf("secret not found in environment: %s (env var: %s)", name, envVar)
	}
	return value, nil
}

// Provider returns the provider name.
func (p *EnvProvider) Provider() string {
	return "env"
}

func (p *EnvProvider) envVar(name string) string {
	return p.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
