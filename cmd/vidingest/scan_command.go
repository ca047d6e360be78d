package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vidingest/internal/aggregate"
	"vidingest/internal/config"
	"vidingest/internal/dedup"
	"vidingest/internal/faults"
	"vidingest/internal/hasher"
	"vidingest/internal/ingest"
	"vidingest/internal/logging"
	"vidingest/internal/media"
	"vidingest/internal/recordtime"
	"vidingest/internal/remote"
	"vidingest/internal/scanner"
)

type scanOptions struct {
	local        bool
	jsonl        bool
	all          bool
	fullHash     bool
	platform     string
	hashWorkers  int
	sampleBytes  int64
	excludeGlobs []string
	extensions   []string
	ffprobe      string

	skipZeroByte     bool
	skipHidden       bool
	skipPlaceholders bool
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [targets...]",
		Short: "Discover and hash videos, printing unique records",
		Long: `Discover and hash videos.

Positional arguments name configured targets; with none, every target is
scanned. With --local, arguments are directories on this machine and no
configuration file is needed. The --local --jsonl form is what ingest runs on
remote hosts.`,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.local {
				return runLocalScan(cmd, ctx, args, opts)
			}
			return runTargetScan(cmd, ctx, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.local, "local", false, "Treat arguments as local directories instead of target names")
	cmd.Flags().BoolVar(&opts.jsonl, "jsonl", false, "Write records as JSON lines instead of a table")
	cmd.Flags().BoolVar(&opts.fullHash, "full-hash", false, "Also compute the full-content hash of every file")
	cmd.Flags().StringVar(&opts.platform, "platform", runtime.GOOS, "Platform whose system directories are excluded (local mode)")
	cmd.Flags().IntVar(&opts.hashWorkers, "hash-workers", 0, "Concurrent file hashes")
	cmd.Flags().Int64Var(&opts.sampleBytes, "sample-bytes", 0, "Bytes hashed from each end of a file (local mode)")
	cmd.Flags().StringArrayVar(&opts.excludeGlobs, "exclude-glob", nil, "Glob of files or directories to skip (repeatable, local mode)")
	cmd.Flags().StringSliceVar(&opts.extensions, "extensions", nil, "Comma-separated video extensions (local mode)")
	cmd.Flags().StringVar(&opts.ffprobe, "ffprobe", "", "ffprobe binary used for capture times (local mode)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "With --jsonl, write every record plus skip and exclusion notices (local mode)")
	cmd.Flags().BoolVar(&opts.skipZeroByte, "skip-zero-byte", true, "Exclude empty files (local mode)")
	cmd.Flags().BoolVar(&opts.skipHidden, "skip-hidden", true, "Exclude hidden files and directories (local mode)")
	cmd.Flags().BoolVar(&opts.skipPlaceholders, "skip-placeholders", true, "Exclude cloud-sync placeholder files (local mode)")

	return cmd
}

// runLocalScan walks directories on this machine. Records are deduplicated
// as they arrive and streamed so a remote controller sees progress. With
// --all every record is streamed and the walk's skips and exclusions follow
// as notices, leaving deduplication to the reader.
func runLocalScan(cmd *cobra.Command, ctx *commandContext, roots []string, opts scanOptions) error {
	if len(roots) == 0 {
		return errors.New("scan --local needs at least one directory")
	}
	defaults := config.Default()

	rules := scanner.DefaultRules(opts.platform)
	rules.Extensions = normalizeExtensionFlag(opts.extensions)
	if len(rules.Extensions) == 0 {
		rules.Extensions = defaults.Scan.Extensions
	}
	rules.ExcludeGlobs = opts.excludeGlobs
	rules.SkipZeroByte = opts.skipZeroByte
	rules.SkipHidden = opts.skipHidden
	rules.SkipCloudPlaceholders = opts.skipPlaceholders

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	sampleBytes := opts.sampleBytes
	if sampleBytes <= 0 {
		sampleBytes = defaults.Scan.SampleBytes
	}

	logger, err := logging.New(logging.Options{
		Level:  orDefault(ctx.logLevel(), "warn"),
		Format: "console",
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	src := &scanner.LocalSource{
		Target: scanner.ScanTarget{
			Name:     host,
			Kind:     scanner.KindLocal,
			Roots:    roots,
			Platform: opts.platform,
			Rules:    rules,
		},
		Hasher:   hasher.New(hasher.Options{SampleBytes: sampleBytes, Retries: defaults.Scan.HashRetries}),
		Resolver: recordtime.NewResolver(recordtime.WithFFprobe(opts.ffprobe)),
		Workers:  opts.hashWorkers,
		FullHash: opts.fullHash,
		Logger:   logger,
	}

	stream := scanner.NewStream(cmd.Context(), src)
	deduper := dedup.New()
	out := cmd.OutOrStdout()
	var writeErr error
	for rec := range stream.Records() {
		outcome := deduper.Add(rec)
		if !opts.jsonl {
			continue
		}
		if !opts.all && outcome != dedup.Added && outcome != dedup.Conflict {
			continue
		}
		if writeErr = media.EncodeRecord(out, rec); writeErr != nil {
			break
		}
	}
	if writeErr != nil {
		return fmt.Errorf("write records: %w", writeErr)
	}
	summary := stream.Summary()
	if opts.jsonl && opts.all {
		if err := writeNotices(out, summary); err != nil {
			return fmt.Errorf("write notices: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}

	if !opts.jsonl {
		fmt.Fprint(out, renderEntries(deduper.Entries()))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "scanned %d files: %d unique, %d duplicates, %d excluded, %d skipped\n",
		summary.Records, deduper.Len(), deduper.Discarded(), summary.Excluded, summary.Skipped)
	return nil
}

// writeNotices reports each skipped path and the exclusion count. Root-level
// failures carry no path and are left to the exit status.
func writeNotices(w io.Writer, summary scanner.Summary) error {
	for _, diag := range summary.Diagnostics {
		notice := media.ScanNotice{Notice: media.NoticeSkipped, ErrorKind: faults.Kind(diag)}
		var scanErr *faults.ScanError
		var hashErr *faults.HashError
		switch {
		case errors.As(diag, &hashErr):
			notice.Path, notice.Error = hashErr.Path, errorText(hashErr.Err)
		case errors.As(diag, &scanErr):
			notice.Path, notice.Error = scanErr.Path, errorText(scanErr.Err)
		default:
			continue
		}
		if err := media.EncodeNotice(w, notice); err != nil {
			return err
		}
	}
	if summary.Excluded > 0 {
		return media.EncodeNotice(w, media.ScanNotice{Notice: media.NoticeExcluded, Count: summary.Excluded})
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// runTargetScan scans configured targets concurrently and prints the merged
// unique set. Nothing is staged or registered.
func runTargetScan(cmd *cobra.Command, ctx *commandContext, names []string, opts scanOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	targets, err := scanner.FromConfig(cfg, names)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return faults.Configf("targets", "no targets configured")
	}
	hashWorkers := cfg.Scan.HashWorkers
	if opts.hashWorkers > 0 {
		hashWorkers = opts.hashWorkers
	}

	agg := aggregate.New(aggregate.Options{
		MaxTargets: cfg.Scan.MaxTargets,
		Logger:     logger,
		Deps: scanner.Deps{
			Hasher:      hasher.New(hasher.Options{SampleBytes: cfg.Scan.SampleBytes, Retries: cfg.Scan.HashRetries}),
			Resolver:    recordtime.NewResolver(recordtime.WithFFprobe(cfg.Scan.FFprobeBinary)),
			Dialer:      remote.SSHDialer{},
			HashWorkers: hashWorkers,
			FullHash:    opts.fullHash || cfg.Scan.FullHash,
			Logger:      logger,
		},
	})
	result, err := agg.Run(cmd.Context(), targets)
	if result == nil {
		return err
	}

	if opts.jsonl {
		if werr := writeRecords(cmd, result.Entries); werr != nil {
			return fmt.Errorf("write records: %w", werr)
		}
	} else {
		out := cmd.OutOrStdout()
		fmt.Fprint(out, renderTargetReports(result.Reports))
		fmt.Fprint(out, renderEntries(result.Entries))
	}
	printTargetProblems(cmd.ErrOrStderr(), result.Reports)
	fmt.Fprintf(cmd.ErrOrStderr(), "%d unique videos, %d duplicates discarded, %d conflicts\n",
		len(result.Entries), result.Discarded, len(result.Conflicts))
	if err != nil {
		return err
	}

	switch failed := result.Count(aggregate.StatusFailed); {
	case failed == len(result.Reports):
		return &exitError{code: ingest.ExitFailure}
	case failed > 0 || result.Count(aggregate.StatusPartial) > 0:
		return &exitError{code: ingest.ExitPartial}
	}
	return nil
}

func renderTargetReports(reports []aggregate.TargetReport) string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.Target,
			string(r.Kind),
			orDash(r.Host),
			string(r.Status),
			strconv.Itoa(r.Records),
			strconv.Itoa(r.Unique),
			strconv.Itoa(r.Excluded),
			strconv.Itoa(r.Skipped),
			formatDuration(r.Duration),
		})
	}
	return renderTable(
		[]string{"Target", "Kind", "Host", "Status", "Records", "Unique", "Excluded", "Skipped", "Duration"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
	)
}

func renderEntries(entries []media.UniqueVideoEntry) string {
	if len(entries) == 0 {
		return "No videos found\n"
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rec := e.Record
		rows = append(rows, []string{
			shortHash(rec.SampleHash),
			rec.Location(),
			formatBytes(rec.SizeBytes),
			formatTimestamp(rec.CaptureTime()),
			strconv.Itoa(e.DuplicateCount()),
		})
	}
	return renderTable(
		[]string{"Hash", "Location", "Size", "Captured", "Duplicates"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}

func printTargetProblems(w io.Writer, reports []aggregate.TargetReport) {
	colorize := shouldColorize(w)
	for _, r := range reports {
		if r.Status == aggregate.StatusSuccess {
			continue
		}
		message := r.Reason
		if message == "" && r.Err != nil {
			message = r.Err.Error()
		}
		if message == "" {
			message = fmt.Sprintf("%d files skipped", r.Skipped)
		}
		fmt.Fprintln(w, renderStatusLine(r.Target, targetStatusKind(r.Status), message, colorize))
	}
}

func normalizeExtensionFlag(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if !strings.HasPrefix(v, ".") {
			v = "." + v
		}
		out = append(out, v)
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
