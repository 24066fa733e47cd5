package main

import (
	"fmt"
	"io"

	"vurakit/agentveil/pkg/cli"
	"vurakit/agentveil/pkg/client"

	"github.com/spf13/cobra"
)

const stdinSource = "-"

func newAuditCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "audit [flags] <file|->...",
		Short: "Audit source files for compliance risk",
		Long: `Send each file to the audit endpoint of the proxy and print its risk level,
compliance score and findings. Use "-" to audit stdin.

The command exits with status 2 when any report is high risk or
unacceptable, so it can gate a CI job.`,
		Example: `  veil audit main.go
  veil audit --format json $(git ls-files '*.go')`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseFormat(format)
			if err != nil {
				return cli.NewConfigError("format", err.Error())
			}
			return withApp(cmd, root, func(a *app) error {
				return runAudit(cmd, a, outFormat, args)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")
	return cmd
}

func runAudit(cmd *cobra.Command, a *app, format cli.OutputFormat, sources []string) error {
	var progress *cli.AuditProgress
	if format == cli.FormatText {
		progress = cli.NewAuditProgress(cmd.ErrOrStderr(), len(sources))
	}

	views := make([]cli.AuditView, 0, len(sources))
	highRisk := false
	for _, src := range sources {
		report, err := auditSource(cmd, a.client.Auditor, src)
		if err != nil {
			if progress != nil {
				progress.Fail(src, err)
			}
			return fmt.Errorf("audit %s: %w", src, err)
		}
		if report.HighRisk() {
			highRisk = true
		}
		views = append(views, cli.AuditView{Source: src, AuditReport: report})
		if progress != nil {
			progress.Advance(src, report.HighRisk())
		}
	}
	if progress != nil {
		progress.Finish()
	}

	out := cli.NewFormatter(format)
	var err error
	switch {
	case format == cli.FormatJSON && len(views) == 1:
		err = out.FormatTo(cmd.OutOrStdout(), views[0])
	case format == cli.FormatJSON:
		err = out.FormatTo(cmd.OutOrStdout(), views)
	default:
		for _, v := range views {
			if err = out.FormatTo(cmd.OutOrStdout(), v); err != nil {
				break
			}
		}
	}
	if err != nil {
		return err
	}

	if highRisk {
		return cli.WithExitCode(cli.ExitHighRisk, nil)
	}
	return nil
}

// auditSource audits one file or stdin. A high-risk report sent with a
// 403 status is returned as a report, not an error.
func auditSource(cmd *cobra.Command, auditor *client.AuditClient, src string) (*client.AuditReport, error) {
	var report *client.AuditReport
	var err error
	if src == stdinSource {
		var data []byte
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		report, err = auditor.Audit(cmd.Context(), string(data))
	} else {
		report, err = auditor.AuditFile(cmd.Context(), src)
	}
	if err != nil {
		if r, ok := client.ReportFromError(err); ok {
			return r, nil
		}
		return nil, err
	}
	return report, nil
}
