package main

import (
	"context"
	"errors"
	"os"
	"time"

	"vurakit/agentveil/pkg/activation"
	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/client"
	"vurakit/agentveil/pkg/config"
	veiltls "vurakit/agentveil/pkg/security/tls"
	"vurakit/agentveil/pkg/telemetry/health"

	"github.com/spf13/cobra"
)

const waitInterval = 2 * time.Second

// statusEnv lists the variables routing decisions depend on.
var statusEnv = []string{
	activation.EnvBaseURL,
	activation.EnvOpenAIAPIBase,
	activation.EnvAnthropicBaseURL,
	activation.EnvGeminiAPIBase,
	config.EnvSessionID,
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	var (
		wait   time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "status [flags]",
		Short: "Check that the proxy is reachable",
		Long: `Probe the health endpoint of the proxy, check the client TLS material, and
show the routing variables of the current environment.

With --wait the checks are repeated until they pass or the duration runs
out, which suits scripts that start the proxy first. The command exits 1
when any check fails.`,
		Example: `  veil status
  veil status --wait 60s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, root, func(a *app) error {
				return runStatus(cmd, a, wait, asJSON)
			})
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "keep checking until healthy or this long has passed")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, a *app, wait time.Duration, asJSON bool) error {
	checker := health.New(client.HealthTimeout)
	checker.Register("proxy", a.client.Ping)
	if a.cfg.Proxy.TLS.Enabled() {
		tlsCfg := a.cfg.Proxy.TLS
		checker.Register("tls", func(context.Context) error {
			tlsConfig, err := veiltls.ClientConfig(tlsCfg)
			if err != nil {
				return err
			}
			if warning := veiltls.ExpiryWarning(tlsConfig, time.Now()); warning != "" {
				return errors.New(warning)
			}
			return nil
		})
	}

	var report health.Report
	if wait > 0 {
		ctx, cancel := context.WithTimeout(commandContext(cmd), wait)
		defer cancel()
		report, _ = checker.WaitReady(ctx, waitInterval)
	} else {
		report = checker.Run(commandContext(cmd))
	}

	sess := a.client.Session()
	view := cli.StatusView{
		ProxyURL:  a.client.ProxyURL(),
		SessionID: sess.SessionID,
		Role:      sess.Role.String(),
		Health:    report,
	}
	for _, name := range statusEnv {
		value, ok := os.LookupEnv(name)
		view.Env = append(view.Env, cli.EnvVar{Name: name, Value: value, Set: ok})
	}

	format := cli.FormatText
	if asJSON {
		format = cli.FormatJSON
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), view); err != nil {
		return err
	}

	if !report.Ready() {
		return cli.WithExitCode(cli.ExitError, nil)
	}
	return nil
}
