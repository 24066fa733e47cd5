// Package config provides configuration loading for Agent Veil clients.
//
// Configuration is read from a YAML file, or from JSON with comments when
// the file ends in .json or .jsonc, and then overlaid with environment
// variables. Every field has a default, so a client can run from the
// environment alone:
//
//	cfg, err := config.LoadFromEnv()
//
// or from a file with environment overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("veil.yaml")
//
// # Environment Variables
//
//   - VURA_PROXY_URL overrides proxy.url
//   - VURA_API_KEY overrides proxy.api_key
//   - OPENAI_API_KEY overrides proxy.provider_api_key
//   - VURA_PROVIDER overrides proxy.provider
//   - VURA_ROLE overrides proxy.role
//   - VURA_SESSION_ID overrides proxy.session_id
//   - VURA_MODEL, VURA_TEMPERATURE and VURA_MAX_TOKENS override the chat section
//   - VURA_BLOCK_ON_PII overrides interception.block_on_pii
//   - VURA_LOG_LEVEL and VURA_LOG_FORMAT override telemetry.logging
//   - VURA_METRICS_ENABLED, VURA_TRACING_ENABLED and VURA_TRACING_ENDPOINT
//     override telemetry.metrics and telemetry.tracing
//
// Environment variables always take precedence over file values.
//
// # Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from the file
//  3. Environment variable overrides
//  4. Validation (all field errors are collected and returned together)
//
// # Watching
//
// Watcher follows a configuration file with fsnotify and invokes a callback
// after a quiet period, so editors that write a file in several steps only
// trigger one reload.
package config
