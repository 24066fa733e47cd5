package main

import (
	"fmt"
	"os"
	"strings"

	"vurakit/agentveil/pkg/activation"
	"vurakit/agentveil/pkg/config"

	"github.com/spf13/cobra"
)

type envOptions struct {
	unset bool
	shell string
	tool  string
}

func newEnvCmd(root *rootOptions) *cobra.Command {
	opts := &envOptions{}

	cmd := &cobra.Command{
		Use:   "env [flags]",
		Short: "Print shell commands that route AI SDKs through the proxy",
		Long: `Print the export lines that point the base URL variables of AI SDKs at the
proxy, along with the session id. Evaluate the output in your shell to
activate routing, and the output of --unset to deactivate it.

The shell dialect follows $SHELL unless --shell is given.`,
		Example: `  eval "$(veil env)"
  eval "$(veil env --unset)"
  veil env --shell fish --tool claude | source`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			if _, err := newLogger(cmd, cfg); err != nil {
				return err
			}
			lines, err := envLines(cfg, opts)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(lines, "\n"))
			return err
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&opts.unset, "unset", false, "print the commands that undo activation")
	fs.StringVar(&opts.shell, "shell", "", "shell dialect: sh or fish (default from $SHELL)")
	fs.StringVar(&opts.tool, "tool", "", "only the variables for this tool: claude, cursor, aider or gemini")

	return cmd
}

// envLines activates a private state so the resolved session and base URL
// are exactly what an in-process activation would use.
func envLines(cfg *config.Config, opts *envOptions) ([]string, error) {
	shell := activation.ShellFor(os.Getenv("SHELL"))
	if opts.shell != "" {
		shell = activation.ShellFor(opts.shell)
	}
	tool := activation.ToolGeneric
	if opts.tool != "" {
		tool = activation.DetectTool(opts.tool)
	}

	state := activation.NewState(activation.MapEnv{})
	active, err := state.Activate(activation.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	vars := append(activation.ToolVars(active.ProxyURL, tool),
		activation.Var{Name: config.EnvSessionID, Value: active.Session.SessionID})

	if opts.unset {
		return activation.UnsetLines(shell, vars), nil
	}
	return activation.ExportLines(shell, vars), nil
}
