package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"

	"vurakit/agentveil/pkg/config"
)

// ClientConfig converts cfg to a crypto/tls client configuration. It
// returns nil, nil when cfg is the zero value, meaning Go's defaults.
func ClientConfig(cfg config.TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	minVersion, err := parseTLSVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	// #nosec G402 - InsecureSkipVerify is an explicit opt-in for local proxies
	tlsConfig := &tls.Config{
		MinVersion:         minVersion,
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	}

	if cfg.CAFile != "" {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, fmt.Errorf("cert_file and key_file must be set together")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		if err := ValidateCertificate(&cert); err != nil {
			return nil, fmt.Errorf("client certificate validation failed: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// NewHTTPClient returns an HTTP client using cfg, or nil when cfg is the
// zero value so callers keep their default client.
func NewHTTPClient(cfg config.TLSConfig) (*http.Client, error) {
	tlsConfig, err := ClientConfig(cfg)
	if err != nil || tlsConfig == nil {
		return nil, err
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig
	return &http.Client{Transport: transport}, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in CA file %s", path)
	}
	return pool, nil
}

// parseTLSVersion maps a min_version value to a tls version constant.
// The empty string means TLS 1.2.
func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "1.2", "":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q (valid: 1.2, 1.3)", v)
	}
}
