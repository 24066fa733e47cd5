package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"vurakit/agentveil/pkg/config"
)

// secretRefRegex matches ${secret:name} references.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver tries its providers in order; the first that has a secret wins.
type Resolver struct {
	providers []Provider
	logger    *slog.Logger
}

// NewResolver returns a resolver over providers. A nil logger means
// slog.Default().
func NewResolver(logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{providers: providers, logger: logger}
}

// FromConfig returns the resolver for the proxy section: the
// VURA_SECRET_* environment first, then secrets_dir when set.
func FromConfig(cfg *config.ProxyConfig, logger *slog.Logger) (*Resolver, error) {
	providers := []Provider{NewEnvProvider(DefaultEnvPrefix)}
	if cfg.SecretsDir != "" {
		fp, err := NewFileProvider(cfg.SecretsDir)
		if err != nil {
			return nil, err
		}
		providers = append(providers, fp)
	}
	return NewResolver(logger, providers...), nil
}

// GetSecret returns the first value any provider has for name.
func (r *Resolver) GetSecret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range r.providers {
		value, err := p.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.logger.Debug("secret resolved", "provider", p.Provider(), "name", redactSecretName(name))
		return value, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("secret not found: %q (no providers configured)", redactSecretName(name))
	}
	return "", fmt.Errorf("failed to get secret %q: %w", redactSecretName(name), errors.Join(errs...))
}

// ResolveReferences replaces every ${secret:name} in input. References
// that cannot be resolved are kept and reported together.
func (r *Resolver) ResolveReferences(ctx context.Context, input string) (string, error) {
	var failed []string

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRefRegex.FindStringSubmatch(match)[1]
		value, err := r.GetSecret(ctx, name)
		if err != nil {
			failed = append(failed, err.Error())
			return match
		}
		return value
	})

	if len(failed) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(failed, "; "))
	}
	return output, nil
}

// ResolveProxy resolves references in the credential fields of cfg in
// place. A section without references is left alone.
func ResolveProxy(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	fields := []struct {
		name string
		ptr  *string
	}{
		{"proxy.api_key", &cfg.Proxy.APIKey},
		{"proxy.provider_api_key", &cfg.Proxy.ProviderAPIKey},
	}

	var r *Resolver
	for _, f := range fields {
		if !HasReference(*f.ptr) {
			continue
		}
		if r == nil {
			var err error
			if r, err = FromConfig(&cfg.Proxy, logger); err != nil {
				return err
			}
		}
		value, err := r.ResolveReferences(ctx, *f.ptr)
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.ptr = value
	}
	return nil
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return secretRefRegex.MatchString(s)
}

// redactSecretName shortens name for logs.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
