// Package security holds the client-side transport and credential helpers:
// tls builds the TLS configuration for an https proxy, and secrets resolves
// ${secret:name} references in credential fields.
package security
