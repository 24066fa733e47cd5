/*
Package tls builds the client TLS configuration for talking to an https
Agent Veil proxy.

A proxy signed by a private CA needs its CA bundle:

	proxy:
	  url: https://veil.internal:8443
	  tls:
	    ca_file: /etc/veil/ca.pem

A proxy that authenticates clients by certificate also needs a client pair:

	  tls:
	    ca_file: /etc/veil/ca.pem
	    cert_file: /etc/veil/client.pem
	    key_file: /etc/veil/client-key.pem

ClientConfig loads the files and returns a *tls.Config; NewHTTPClient wraps
it in an *http.Client for the proxy clients. TLS 1.0 and 1.1 are never
offered.
*/
package tls
