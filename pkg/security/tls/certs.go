package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// expiryWarningDays is how close to expiry a certificate draws a warning.
const expiryWarningDays = 30

// ValidateCertificate checks that the leaf of cert is currently valid.
func ValidateCertificate(cert *tls.Certificate) error {
	if cert == nil {
		return fmt.Errorf("certificate is nil")
	}

	if len(cert.Certificate) == 0 {
		return fmt.Errorf("certificate chain is empty")
	}

	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}

	return ValidateX509Certificate(x509Cert, time.Now())
}

// ValidateX509Certificate checks cert's validity window against now.
func ValidateX509Certificate(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", cert.NotBefore.Format(time.RFC3339))
	}

	if now.After(cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", cert.NotAfter.Format(time.RFC3339))
	}

	return nil
}

// ExpiryWarning returns a warning when the client certificate in
// tlsConfig expires within 30 days, and "" otherwise.
func ExpiryWarning(tlsConfig *tls.Config, now time.Time) string {
	if tlsConfig == nil || len(tlsConfig.Certificates) == 0 {
		return ""
	}
	leaf, err := x509.ParseCertificate(tlsConfig.Certificates[0].Certificate[0])
	if err != nil {
		return ""
	}
	days := int(leaf.NotAfter.Sub(now).Hours() / 24)
	if days >= expiryWarningDays {
		return ""
	}
	return fmt.Sprintf("client certificate expires in %d days (on %s)",
		days, leaf.NotAfter.Format("2006-01-02"))
}
