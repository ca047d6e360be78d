package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vidingest/internal/dedup"
	"vidingest/internal/faults"
	"vidingest/internal/logging"
	"vidingest/internal/media"
	"vidingest/internal/scanner"
)

// DefaultMaxTargets bounds concurrent targets when unset.
const DefaultMaxTargets = 4

// Status summarizes how one target's scan went.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// TargetReport describes the scan of one target.
type TargetReport struct {
	Target      string
	Kind        scanner.Kind
	Host        string
	Status      Status
	Records     int
	Unique      int
	Excluded    int
	Skipped     int
	Reason      string
	Diagnostics []error
	Err         error
	Duration    time.Duration
}

// Result is the merged outcome of a run.
type Result struct {
	Entries   []media.UniqueVideoEntry
	Discarded int
	Conflicts []faults.DuplicateConflict
	Reports   []TargetReport
}

// Count returns how many targets ended with status.
func (r *Result) Count(status Status) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, report := range r.Reports {
		if report.Status == status {
			n++
		}
	}
	return n
}

// SourceFunc builds the Source for a target.
type SourceFunc func(target scanner.ScanTarget, deps scanner.Deps) (scanner.Source, error)

// Aggregator runs scans across targets.
type Aggregator struct {
	maxTargets int
	deps       scanner.Deps
	sourceFor  SourceFunc
	logger     *slog.Logger
}

// Options configures an Aggregator.
type Options struct {
	MaxTargets int
	Deps       scanner.Deps
	// SourceFor defaults to scanner.SourceFor.
	SourceFor SourceFunc
	Logger    *slog.Logger
}

// New builds an Aggregator.
func New(opts Options) *Aggregator {
	a := &Aggregator{
		maxTargets: opts.MaxTargets,
		deps:       opts.Deps,
		sourceFor:  opts.SourceFor,
		logger:     logging.NewComponentLogger(opts.Logger, "aggregate"),
	}
	if a.maxTargets <= 0 {
		a.maxTargets = DefaultMaxTargets
	}
	if a.sourceFor == nil {
		a.sourceFor = scanner.SourceFor
	}
	return a
}

// Run scans every target and merges the results. Targets not started before
// ctx is cancelled are reported as failed; everything merged so far is
// returned together with ctx's error.
func (a *Aggregator) Run(ctx context.Context, targets []scanner.ScanTarget) (*Result, error) {
	if len(targets) == 0 {
		return nil, faults.Configf("targets", "no scan targets selected")
	}

	var (
		mu     sync.Mutex
		merged = dedup.New()
	)
	reports := make([]TargetReport, len(targets))

	var g errgroup.Group
	g.SetLimit(a.maxTargets)
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			reports[i] = TargetReport{
				Target: target.Name, Kind: target.Kind, Host: target.Host,
				Status: StatusFailed, Reason: "not started", Err: err,
			}
			continue
		}
		g.Go(func() error {
			report, local := a.scanTarget(ctx, target)
			mu.Lock()
			for _, entry := range local.Entries() {
				merged.MergeEntry(entry)
			}
			reports[i] = report
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Entries:   merged.Entries(),
		Discarded: merged.Discarded(),
		Conflicts: merged.Conflicts(),
		Reports:   reports,
	}
	for _, conflict := range result.Conflicts {
		logging.WarnWithContext(a.logger, "sample hash collision with differing content", "duplicate_conflict",
			logging.String(logging.FieldHash, conflict.SampleHash),
			logging.String("first", conflict.FirstHost+":"+conflict.FirstPath),
			logging.String("other", conflict.OtherHost+":"+conflict.OtherPath),
			logging.String(logging.FieldErrorHint, "both files are kept; inspect them manually"),
			logging.String(logging.FieldImpact, "two entries share a sample hash"),
		)
	}
	a.logger.Info("aggregation finished",
		logging.Int("targets", len(targets)),
		logging.Int("unique", len(result.Entries)),
		logging.Int("discarded", result.Discarded),
		logging.Int("failed_targets", result.Count(StatusFailed)),
		logging.String(logging.FieldEventType, "aggregate_complete"),
	)
	return result, ctx.Err()
}

func (a *Aggregator) scanTarget(ctx context.Context, target scanner.ScanTarget) (TargetReport, *dedup.Deduplicator) {
	start := time.Now()
	ctx = logging.WithTarget(ctx, target.Name)
	logger := logging.WithContext(ctx, a.logger)
	report := TargetReport{Target: target.Name, Kind: target.Kind, Host: target.Host}
	local := dedup.New()

	deps := a.deps
	deps.Logger = logging.WithContext(ctx, deps.Logger)
	src, err := a.sourceFor(target, deps)
	if err != nil {
		report.Err = err
	} else {
		stream := scanner.NewStream(ctx, src)
		for rec := range stream.Records() {
			local.Add(rec)
		}
		summary := stream.Summary()
		report.Records = summary.Records
		report.Excluded = summary.Excluded
		report.Skipped = summary.Skipped
		report.Diagnostics = summary.Diagnostics
		report.Err = stream.Err()
	}
	report.Unique = local.Len()
	report.Duration = time.Since(start)
	report.Status = classify(report)
	if report.Err != nil {
		report.Reason = reasonFor(report.Err)
	}

	switch report.Status {
	case StatusFailed:
		logging.WarnWithContext(logger, "target failed", "target_failed",
			logging.String("reason", report.Reason),
			logging.Error(report.Err),
			logging.String(logging.FieldErrorHint, "check connectivity, credentials and target roots"),
			logging.String(logging.FieldImpact, "no recordings ingested from this target"),
		)
	case StatusPartial:
		logging.WarnWithContext(logger, "target scanned with problems", "target_partial",
			logging.Int("records", report.Records),
			logging.Int("skipped", report.Skipped),
			logging.String("reason", report.Reason),
			logging.String(logging.FieldImpact, "some files were not ingested"),
		)
	default:
		logger.Info("target scanned",
			logging.Int("records", report.Records),
			logging.Int("unique", report.Unique),
			logging.Int("excluded", report.Excluded),
			logging.Duration("duration", report.Duration),
			logging.String(logging.FieldEventType, "target_scanned"),
		)
	}
	return report, local
}

// classify applies the status rules: failed when the target errored without
// producing records, partial when anything was lost, success otherwise.
func classify(r TargetReport) Status {
	switch {
	case r.Err != nil && r.Records == 0:
		return StatusFailed
	case r.Err != nil || r.Skipped > 0:
		return StatusPartial
	default:
		return StatusSuccess
	}
}

func reasonFor(err error) string {
	var remoteErr *faults.RemoteTargetError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &remoteErr):
		if remoteErr.Reason != "" {
			return fmt.Sprintf("remote: %s", remoteErr.Reason)
		}
		return "remote"
	default:
		if kind := faults.Kind(err); kind != "" {
			return kind
		}
		return "error"
	}
}
