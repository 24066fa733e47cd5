package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"vurakit/agentveil/pkg/activation"
	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/config"

	"github.com/spf13/cobra"
)

func newWrapCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wrap [flags] -- <command> [args...]",
		Short: "Run an AI tool with its traffic routed through the proxy",
		Long: `Run a command with the base URL variables of its SDK pointed at the proxy.
The tool is recognised by the command name (claude, cursor, aider, gemini);
other commands get every known variable.

The session id and the proxy key are passed as VURA_SESSION_ID and
VEIL_API_KEY. Signals are forwarded to the command and its exit status
becomes the exit status of veil.`,
		Example: `  veil wrap -- claude
  veil wrap -- aider --model gpt-4o`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			return runWrap(cmd, logger.Slog(), cfg, args)
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func runWrap(cmd *cobra.Command, logger *slog.Logger, cfg *config.Config, args []string) error {
	env, err := wrapEnv(os.Environ(), cfg, args[0])
	if err != nil {
		return err
	}

	logger.Debug("wrapping command",
		"command", args[0],
		"tool", string(activation.DetectTool(args[0])),
	)

	proc := exec.Command(args[0], args[1:]...)
	proc.Env = env
	proc.Stdin = cmd.InOrStdin()
	proc.Stdout = cmd.OutOrStdout()
	proc.Stderr = cmd.ErrOrStderr()

	if err := proc.Start(); err != nil {
		return cli.NewCommandError("wrap", err)
	}
	stop := cli.ForwardSignals(proc.Process)
	defer stop()

	err = proc.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// killed by a signal
			code = cli.ExitError
		}
		return cli.WithExitCode(code, nil)
	}
	if err != nil {
		return cli.NewCommandError("wrap", err)
	}
	return nil
}

// wrapEnv returns base with the proxy variables for command applied.
func wrapEnv(base []string, cfg *config.Config, command string) ([]string, error) {
	state := activation.NewState(activation.MapEnv{})
	active, err := state.Activate(activation.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	env := activation.WrapEnv(base, active.ProxyURL, command)
	env = replaceVar(env, config.EnvSessionID, active.Session.SessionID)
	if key := active.Session.APIKey; key != "" {
		env = replaceVar(env, activation.EnvVeilAPIKey, key)
	}
	return env, nil
}

func replaceVar(env []string, name, value string) []string {
	prefix := name + "="
	out := env[:0]
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, fmt.Sprintf("%s=%s", name, value))
}
