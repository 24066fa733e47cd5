package activation

import (
	"fmt"
	"net/http"
	"strings"

	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/config"
	"vurakit/agentveil/pkg/session"
)

// Ambient variables.
const (
	// EnvBaseURL is read by OpenAI-compatible SDKs to find their endpoint.
	EnvBaseURL = "OPENAI_BASE_URL"

	// EnvProviderKey is the fallback bearer credential.
	EnvProviderKey = "OPENAI_API_KEY"
)

// Options are the inputs to Activate. Zero fields take defaults.
type Options struct {
	// ProxyURL defaults to http://localhost:8080.
	ProxyURL string

	// APIKey defaults to $OPENAI_API_KEY.
	APIKey string

	// Role defaults to admin.
	Role string

	// SessionID is generated when empty.
	SessionID string

	// Provider is an optional routing hint.
	Provider string
}

// OptionsFromConfig maps the proxy section of a configuration file.
// VURA_API_KEY lands in APIKey and the provider key is used only when no
// proxy key is set.
func OptionsFromConfig(cfg *config.Config) Options {
	key := cfg.Proxy.APIKey
	if key == "" {
		key = cfg.Proxy.ProviderAPIKey
	}
	return Options{
		ProxyURL:  cfg.Proxy.URL,
		APIKey:    key,
		Role:      cfg.Proxy.Role,
		SessionID: cfg.Proxy.SessionID,
		Provider:  cfg.Proxy.Provider,
	}
}

// Config is the active configuration.
type Config struct {
	ProxyURL string
	Session  session.Context
}

// BaseURL is the OpenAI-compatible root under the proxy.
func (c Config) BaseURL() string {
	return c.ProxyURL + "/v1"
}

// ClientConfig returns a proxy client configuration for c.
func (c Config) ClientConfig() client.Config {
	return client.Config{ProxyURL: c.ProxyURL, Session: c.Session}
}

// HTTPClient returns an HTTP client that attaches the session headers to
// every request, for use with third-party SDKs.
func (c Config) HTTPClient() *http.Client {
	return session.NewHTTPClient(c.Session)
}

// State records whether routing through the proxy is engaged.
// It is not safe for concurrent use.
type State struct {
	env    Env
	active bool
	config Config
}

// NewState returns an inactive State writing to env. A nil env is the
// process environment.
func NewState(env Env) *State {
	if env == nil {
		env = OSEnv{}
	}
	return &State{env: env}
}

// Activate replaces the active configuration and sets OPENAI_BASE_URL.
// Calling it again replaces the previous activation.
func (s *State) Activate(opts Options) (Config, error) {
	role := session.DefaultRole
	if opts.Role != "" {
		r, err := session.ParseRole(opts.Role)
		if err != nil {
			return Config{}, err
		}
		role = r
	}

	proxyURL := strings.TrimRight(opts.ProxyURL, "/")
	if proxyURL == "" {
		proxyURL = config.DefaultProxyURL
	}

	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = s.env.Getenv(EnvProviderKey)
	}

	cfg := Config{
		ProxyURL: proxyURL,
		Session: session.Resolve(session.Context{
			SessionID: opts.SessionID,
			Role:      role,
			APIKey:    apiKey,
			Provider:  opts.Provider,
		}),
	}

	if err := s.env.Setenv(EnvBaseURL, cfg.BaseURL()); err != nil {
		return Config{}, fmt.Errorf("failed to set %s: %w", EnvBaseURL, err)
	}

	s.config = cfg
	s.active = true
	return cfg, nil
}

// Deactivate clears the active configuration and unsets OPENAI_BASE_URL.
func (s *State) Deactivate() error {
	s.active = false
	s.config = Config{}
	if err := s.env.Unsetenv(EnvBaseURL); err != nil {
		return fmt.Errorf("failed to unset %s: %w", EnvBaseURL, err)
	}
	return nil
}

// IsActive reports whether the state is active.
func (s *State) IsActive() bool {
	return s.active
}

// Config returns the active configuration, and false when inactive.
func (s *State) Config() (Config, bool) {
	return s.config, s.active
}
