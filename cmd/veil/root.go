package main

import (
	"errors"
	"fmt"
	"os"

	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile  string
	proxyURL    string
	apiKey      string
	role        string
	sessionID   string
	provider    string
	logLevel    string
	logFormat   string
	verbose     bool
	metricsFile string
}

func (o *rootOptions) register(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configFile, "config", "c", "", "config file path (YAML or JSON); environment only when empty")
	fs.StringVar(&o.proxyURL, "proxy-url", "", "proxy base URL (overrides $VURA_PROXY_URL)")
	fs.StringVar(&o.apiKey, "api-key", "", "proxy API key (overrides $VURA_API_KEY)")
	fs.StringVar(&o.role, "role", "", "caller role: admin, viewer or operator")
	fs.StringVar(&o.sessionID, "session-id", "", "session id; generated when empty")
	fs.StringVar(&o.provider, "provider", "", "upstream provider hint")
	fs.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&o.logFormat, "log-format", "", "log format: json, text or console")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output (debug logging)")
	fs.StringVar(&o.metricsFile, "metrics-file", "", "write client metrics in Prometheus text format to this file on exit")
}

// apply copies the flags the user set onto cfg. Flags win over the file
// and the environment.
func (o *rootOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, dst *string, val string) {
		if fs.Changed(name) {
			*dst = val
		}
	}
	set("proxy-url", &cfg.Proxy.URL, o.proxyURL)
	set("api-key", &cfg.Proxy.APIKey, o.apiKey)
	set("role", &cfg.Proxy.Role, o.role)
	set("session-id", &cfg.Proxy.SessionID, o.sessionID)
	set("provider", &cfg.Proxy.Provider, o.provider)
	set("log-level", &cfg.Telemetry.Logging.Level, o.logLevel)
	set("log-format", &cfg.Telemetry.Logging.Format, o.logFormat)
	if o.verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if o.metricsFile != "" {
		cfg.Telemetry.Metrics.Enabled = true
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "veil",
		Short: "Agent Veil - PII-aware proxy client for LLM calls",
		Long: `Veil talks to an Agent Veil proxy, which detects and masks personally
identifiable information in traffic to LLM providers.

It can:
  - Scan text for PII entities
  - Send chat completions through the proxy, scanning prompts and answers
  - Audit source files for compliance risk
  - Route AI tools through the proxy via their base URL variables

Configuration comes from --config, then VURA_* environment variables,
then flags.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.register(cmd.PersistentFlags())

	cmd.AddCommand(
		newChatCmd(opts),
		newScanCmd(opts),
		newAuditCmd(opts),
		newEnvCmd(opts),
		newWrapCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
		newCompletionCmd(cmd),
	)
	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	var ee *cli.ExitCodeError
	if err != nil && !(errors.As(err, &ee) && ee.Err == nil) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}
