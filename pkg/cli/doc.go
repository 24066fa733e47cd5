/*
Package cli provides command-line utilities for the veil command.

Output Formatting:

Command results are written as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, cli.NewScanView(result)); err != nil {
		return err
	}

Values implementing Texter render themselves in text mode. ScanView and
AuditView do, and carry the JSON shapes the veil command prints.

Progress Reporting:

Auditing several files reports progress on stderr:

	progress := cli.NewAuditProgress(os.Stderr, len(files))
	for _, f := range files {
		report, err := auditor.AuditFile(ctx, f)
		// handle err
		progress.Advance(f, report.HighRisk())
	}
	progress.Finish()

A single source draws nothing.

Signal Handling:

Commands run under a context that is cancelled on SIGINT or SIGTERM, which
also aborts an in-flight stream:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Exit Codes:

WithExitCode attaches a process exit code to an error, such as 2 for a
high-risk audit, and ExitCode recovers it. A nil cause exits without a
message.
*/
package cli
