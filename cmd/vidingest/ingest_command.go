package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"vidingest/internal/config"
	"vidingest/internal/ingest"
	"vidingest/internal/registry"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var opts ingest.Options
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ingest [targets...]",
		Short: "Scan targets, stage new videos and register them",
		Long: `Scan the named targets (all configured targets when none are given),
deduplicate across hosts, copy videos not yet in managed storage, verify each
copy and register it as unassigned.

With --dry-run nothing is copied or registered; --emit-in-managed and
--emit-needs-staging write the preview as JSON lines.

Exit status: 0 success, 2 partial success, 3 configuration error, 1 otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Targets = args
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withRegistry(func(cfg *config.Config, store *registry.Store) error {
				runner := ingest.NewRunner(cfg, store, logger)
				report, runErr := runner.Run(cmd.Context(), opts)
				if report == nil {
					return runErr
				}
				if jsonOutput {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					printIngestReport(cmd.OutOrStdout(), report)
				}
				if runErr != nil {
					return runErr
				}
				if code := report.ExitCode(); code != ingest.ExitSuccess {
					return &exitError{code: code}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Preview without copying or registering")
	cmd.Flags().StringVar(&opts.EmitInManaged, "emit-in-managed", "", "Write entries already in managed storage to FILE as JSON lines")
	cmd.Flags().StringVar(&opts.EmitNeedsStaging, "emit-needs-staging", "", "Write entries that need copying to FILE as JSON lines")
	cmd.Flags().IntVar(&opts.MaxWorkers, "max-workers", 0, "Concurrent staging copies (default staging.workers)")
	cmd.Flags().BoolVar(&opts.SkipStaging, "skip-staging", false, "Register videos in place without copying")
	cmd.Flags().BoolVar(&opts.FullHash, "full-hash", false, "Compute full-content hashes during the scan")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")

	return cmd
}

func printIngestReport(out io.Writer, report *ingest.Report) {
	colorize := shouldColorize(out)
	mode := "commit"
	switch {
	case report.DryRun:
		mode = "dry run"
	case report.SkipStaging:
		mode = "commit (no staging)"
	}

	for _, line := range renderSectionHeader("Targets", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTargetReports(report.Targets))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Summary", colorize) {
		fmt.Fprintln(out, line)
	}
	rows := [][]string{
		{"Run", report.RunID},
		{"Mode", mode},
		{"Discovered", strconv.Itoa(report.Discovered)},
		{"Unique", strconv.Itoa(report.Unique)},
		{"Duplicates discarded", strconv.Itoa(report.Discarded)},
		{"Conflicts", strconv.Itoa(len(report.Conflicts))},
		{"Held by conflicts", strconv.Itoa(report.Held)},
		{"Already managed", strconv.Itoa(report.InManaged)},
		{"Needs staging", strconv.Itoa(report.NeedsStaging)},
		{"Staged", strconv.Itoa(report.Staged())},
		{"Registered", strconv.Itoa(report.Registered)},
		{"Duration", formatDuration(report.FinishedAt.Sub(report.StartedAt))},
	}
	if report.ManifestPath != "" {
		rows = append(rows, []string{"Manifest", report.ManifestPath})
	}
	fmt.Fprint(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(report.Failures) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Failures", colorize) {
			fmt.Fprintln(out, line)
		}
		failures := make([][]string, 0, len(report.Failures))
		for _, f := range report.Failures {
			failures = append(failures, []string{f.Scope, f.Subject, orDash(f.Kind), f.Error})
		}
		fmt.Fprint(out, renderTable([]string{"Scope", "Subject", "Kind", "Error"}, failures, nil))
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, renderStatusLine("Outcome", outcomeStatusKind(report.Outcome), string(report.Outcome), colorize))
}
