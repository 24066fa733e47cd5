package main

import (
	"errors"

	"vurakit/agentveil/pkg/cli"

	"github.com/spf13/cobra"
)

var errScanUnavailable = errors.New("scan failed: the proxy did not return a result (run with --verbose for details)")

func newScanCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "scan [flags] <text|->",
		Short: "Scan text for PII",
		Long: `Ask the proxy which PII entities the text contains. Use "-" to read the
text from stdin. The text is neither stored nor forwarded to a provider.`,
		Example: `  veil scan "Call me at 555-0100"
  cat notes.txt | veil scan --json -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			return withApp(cmd, root, func(a *app) error {
				result, ok := a.client.Scanner.Scan(cmd.Context(), text).Get()
				if !ok {
					return errScanUnavailable
				}
				format := cli.FormatText
				if asJSON {
					format = cli.FormatJSON
				}
				return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), cli.NewScanView(result))
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
