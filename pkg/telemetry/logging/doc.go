// Package logging provides structured logging with PII redaction.
//
// # Overview
//
// The logging package wraps log/slog to provide:
//   - JSON, text, and console output
//   - Redaction of credentials and PII patterns on every record
//   - Context fields for request, session, role, provider, and model
//   - Configurable and runtime-adjustable levels
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:     "info",
//	    Format:    "json",
//	    RedactPII: true,
//	})
//
//	logger.Info("scan finished",
//	    "session_id", sess.SessionID,
//	    "api_key", key,        // masked as ***
//	    "entities", n,
//	)
//
//	// Library components take a *slog.Logger.
//	client := client.New(client.Config{Logger: logger.Slog()})
//
// # Redaction
//
// Redaction runs as the handler's ReplaceAttr hook, so it also covers
// records logged through Slog() and attributes added with With:
//
//   - keys containing token, secret, auth, api_key or password: ***
//   - bearer tokens: Bearer ***
//   - sk- and vk- keys: sk-***
//   - emails: user@example.com becomes u***@example.com
//   - SSN: 123-45-6789 becomes ***-**-****
//   - IPv4 addresses: 192.168.1.100 becomes 192.*.*.*
//   - card numbers: 4111-1111-1111-1111 becomes ****-****-****-1111
package logging
