package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"vidingest/internal/aggregate"
	"vidingest/internal/config"
	"vidingest/internal/faults"
	"vidingest/internal/hasher"
	"vidingest/internal/logging"
	"vidingest/internal/media"
	"vidingest/internal/preflight"
	"vidingest/internal/recordtime"
	"vidingest/internal/registry"
	"vidingest/internal/remote"
	"vidingest/internal/scanner"
	"vidingest/internal/staging"
)

// Options selects what one run does.
type Options struct {
	// Targets names configured targets; empty selects all of them.
	Targets          []string
	DryRun           bool
	EmitInManaged    string
	EmitNeedsStaging string
	// MaxWorkers overrides the staging copy pool size when positive.
	MaxWorkers  int
	SkipStaging bool
	FullHash    bool
}

// Runner executes ingest runs against one config and registry.
type Runner struct {
	cfg        *config.Config
	store      *registry.Store
	logger     *slog.Logger
	dialer     remote.Dialer
	sourceFor  aggregate.SourceFunc
	wrapWriter func(io.Writer) io.Writer
	newRunID   func() string
}

// Option customizes a Runner.
type Option func(*Runner)

// WithDialer replaces the ssh dialer used for scans and remote reads.
func WithDialer(d remote.Dialer) Option {
	return func(r *Runner) { r.dialer = d }
}

// WithSourceFunc replaces how targets are turned into scan sources.
func WithSourceFunc(fn aggregate.SourceFunc) Option {
	return func(r *Runner) { r.sourceFor = fn }
}

// WithWrapWriter wraps every staging destination writer.
func WithWrapWriter(fn func(io.Writer) io.Writer) Option {
	return func(r *Runner) { r.wrapWriter = fn }
}

// WithRunID fixes the run ID generator.
func WithRunID(fn func() string) Option {
	return func(r *Runner) { r.newRunID = fn }
}

// NewRunner builds a Runner.
func NewRunner(cfg *config.Config, store *registry.Store, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "ingest"),
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dialer == nil {
		r.dialer = remote.SSHDialer{}
	}
	return r
}

// Run executes one ingest. Configuration problems are returned before any
// target is touched. Otherwise a Report is always returned; the error is
// non-nil only when ctx was cancelled or the registry failed.
func (r *Runner) Run(ctx context.Context, opts Options) (*Report, error) {
	cfg := r.cfg
	selected, err := cfg.SelectTargets(opts.Targets)
	if err != nil {
		return nil, err
	}
	if err := preflight.Err(preflight.RunAll(ctx, cfg, selected)); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       r.newRunID(),
		StartedAt:   time.Now().UTC(),
		DryRun:      opts.DryRun,
		SkipStaging: opts.SkipStaging,
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	logger, closeLog, err := logging.OpenRunLog(r.logger, cfg.Paths.LogDir, report.RunID, cfg.Logging.Level)
	if err != nil {
		logging.WarnWithContext(r.logger, "run log unavailable", "run_log_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check log_dir permissions"),
			logging.String(logging.FieldImpact, "this run is only logged to the main log"),
		)
		logger = r.logger
	}
	defer func() { _ = closeLog() }()
	logger = logging.WithContext(ctx, logger)

	names := make([]string, 0, len(selected))
	targets := make([]scanner.ScanTarget, 0, len(selected))
	var endpoints []remote.Endpoint
	var localHosts []string
	for _, t := range selected {
		st := scanner.TargetFromConfig(cfg, t)
		names = append(names, st.Name)
		targets = append(targets, st)
		if st.Remote() {
			endpoints = append(endpoints, st.Endpoint())
		} else {
			localHosts = append(localHosts, st.Name)
		}
	}
	logger.Info("ingest started",
		logging.Any("targets", names),
		logging.Bool("dry_run", opts.DryRun),
		logging.String(logging.FieldEventType, "ingest_start"),
	)

	h := hasher.New(hasher.Options{SampleBytes: cfg.Scan.SampleBytes, Retries: cfg.Scan.HashRetries})
	agg := aggregate.New(aggregate.Options{
		MaxTargets: cfg.Scan.MaxTargets,
		SourceFor:  r.sourceFor,
		Logger:     logger,
		Deps: scanner.Deps{
			Hasher:      h,
			Resolver:    recordtime.NewResolver(recordtime.WithFFprobe(cfg.Scan.FFprobeBinary)),
			Dialer:      r.dialer,
			HashWorkers: cfg.Scan.HashWorkers,
			FullHash:    opts.FullHash || cfg.Scan.FullHash,
			Logger:      logger,
		},
	})
	result, runErr := agg.Run(ctx, targets)
	if result == nil {
		return nil, runErr
	}
	r.absorbScan(report, result)
	if runErr != nil {
		return r.finish(ctx, report, names, logger), runErr
	}

	registered, err := r.store.Hashes(ctx)
	if err != nil {
		return r.finish(ctx, report, names, logger), err
	}
	candidates := r.holdConflicts(report, result, logger)
	preview := aggregate.Split(candidates, aggregate.SplitOptions{
		ManagedRoot: cfg.Paths.ManagedRoot,
		LocalHosts:  localHosts,
		Registered: func(hash string) bool {
			_, ok := registered[hash]
			return ok
		},
	})
	report.InManaged = len(preview.InManaged)
	report.NeedsStaging = len(preview.NeedsStaging)
	r.emit(report, opts.EmitInManaged, preview.InManaged, logger)
	r.emit(report, opts.EmitNeedsStaging, preview.NeedsStaging, logger)

	if opts.DryRun {
		return r.finish(ctx, report, names, logger), nil
	}

	regs := make([]registry.Registration, 0, len(preview.InManaged)+len(preview.NeedsStaging))
	for _, entry := range preview.InManaged {
		regs = append(regs, registry.FromEntry(entry, entry.Record.Path))
	}
	switch {
	case opts.SkipStaging:
		for _, entry := range preview.NeedsStaging {
			regs = append(regs, registry.FromEntry(entry, ""))
		}
	case len(preview.NeedsStaging) > 0:
		manifest, err := r.stage(ctx, report, preview.NeedsStaging, endpoints, opts.MaxWorkers, logger)
		if err != nil {
			return r.finish(ctx, report, names, logger), err
		}
		for _, m := range manifest {
			if m.Verified() {
				regs = append(regs, registry.FromManifest(m))
			}
		}
	}

	n, err := r.store.RegisterUnassigned(context.WithoutCancel(ctx), report.RunID, regs...)
	report.Registered = n
	if err != nil {
		return r.finish(ctx, report, names, logger), err
	}
	return r.finish(ctx, report, names, logger), ctx.Err()
}

func (r *Runner) absorbScan(report *Report, result *aggregate.Result) {
	report.Targets = result.Reports
	report.Unique = len(result.Entries)
	report.Discarded = result.Discarded
	report.Conflicts = result.Conflicts
	for _, t := range result.Reports {
		report.Discovered += t.Records
		if t.Err != nil {
			report.Failures = append(report.Failures, Failure{
				Scope:   "target",
				Subject: t.Target,
				Kind:    faults.Kind(t.Err),
				Error:   t.Err.Error(),
			})
		}
	}
}

// holdConflicts removes every entry whose sample hash is in conflict and
// records it as a failure. Such entries share a registry key, so neither is
// staged or registered until someone resolves the collision by hand.
func (r *Runner) holdConflicts(report *Report, result *aggregate.Result, logger *slog.Logger) []media.UniqueVideoEntry {
	if len(result.Conflicts) == 0 {
		return result.Entries
	}
	held := make(map[string]*faults.DuplicateConflict, len(result.Conflicts))
	for i := range result.Conflicts {
		if _, ok := held[result.Conflicts[i].SampleHash]; !ok {
			held[result.Conflicts[i].SampleHash] = &result.Conflicts[i]
		}
	}
	kept := make([]media.UniqueVideoEntry, 0, len(result.Entries))
	for _, entry := range result.Entries {
		conflict, ok := held[entry.Hash()]
		if !ok {
			kept = append(kept, entry)
			continue
		}
		report.Held++
		report.Failures = append(report.Failures, Failure{
			Scope:   "entry",
			Subject: entry.Record.Location(),
			Kind:    faults.KindDuplicate,
			Error:   conflict.Error(),
		})
		logging.WarnWithContext(logger, "entry held back by sample hash conflict", "duplicate_conflict_held",
			logging.String(logging.FieldHost, entry.Record.Host),
			logging.String(logging.FieldPath, entry.Record.Path),
			logging.String(logging.FieldHash, entry.Hash()),
		)
	}
	return kept
}

func (r *Runner) stage(ctx context.Context, report *Report, entries []media.UniqueVideoEntry, endpoints []remote.Endpoint, maxWorkers int, logger *slog.Logger) ([]media.StagingManifestEntry, error) {
	cfg := r.cfg
	layout, err := staging.NewLayout(cfg.Paths.ManagedRoot, cfg.Staging.SubjectPattern, cfg.Staging.UnknownSubject)
	if err != nil {
		return nil, faults.Configf("staging.subject_pattern", "%v", err)
	}
	workers := cfg.Staging.Workers
	if maxWorkers > 0 {
		workers = maxWorkers
	}

	pool := remote.NewPool(r.dialer, endpoints...)
	defer pool.Close()

	stager := staging.New(staging.Options{
		Layout:      layout,
		Opener:      staging.HostOpener{Remote: pool},
		Hasher:      hasher.New(hasher.Options{SampleBytes: cfg.Scan.SampleBytes, Retries: cfg.Scan.HashRetries}),
		Workers:     workers,
		LockTimeout: time.Duration(cfg.Staging.LockTimeoutSeconds) * time.Second,
		Logger:      logger,
		WrapWriter:  r.wrapWriter,
	})
	manifest := stager.StageAll(ctx, entries)
	report.Manifest = manifest
	for _, m := range manifest {
		if m.Verified() {
			continue
		}
		report.Failures = append(report.Failures, Failure{
			Scope:   "entry",
			Subject: m.Entry.Record.Location(),
			Kind:    faults.Kind(m.Err),
			Error:   m.Error,
		})
	}

	path, err := staging.WriteManifest(cfg.Paths.ManagedRoot, report.RunID, manifest)
	if err != nil {
		logging.WarnWithContext(logger, "failed to write staging manifest", "manifest_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check managed_root permissions"),
			logging.String(logging.FieldImpact, "the run report still lists every entry"),
		)
	} else {
		report.ManifestPath = path
	}
	return manifest, nil
}

// emit writes entries as JSONL to path. Failures are logged and recorded.
func (r *Runner) emit(report *Report, path string, entries []media.UniqueVideoEntry, logger *slog.Logger) {
	if path == "" {
		return
	}
	if err := writeJSONL(path, entries); err != nil {
		report.Failures = append(report.Failures, Failure{Scope: "emit", Subject: path, Error: err.Error()})
		logging.WarnWithContext(logger, "failed to write preview file", "preview_write_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the destination directory"),
		)
		return
	}
	logger.Info("preview written",
		logging.String(logging.FieldPath, path),
		logging.Int("entries", len(entries)),
		logging.String(logging.FieldEventType, "preview_written"),
	)
}

func writeJSONL(path string, entries []media.UniqueVideoEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := media.WriteRecords(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// finish classifies the run, records it and logs the summary. Recording uses
// a context detached from cancellation so interrupted runs are still listed.
func (r *Runner) finish(ctx context.Context, report *Report, targets []string, logger *slog.Logger) *Report {
	report.FinishedAt = time.Now().UTC()
	report.Outcome = classify(report)
	if ctx.Err() != nil {
		report.Outcome = OutcomeFailed
	}
	if err := r.store.RecordRun(context.WithoutCancel(ctx), report.runRecord(targets)); err != nil {
		logging.WarnWithContext(logger, "failed to record run", "run_record_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the registry database"),
			logging.String(logging.FieldImpact, "run missing from 'registry runs'"),
		)
	}
	logger.Info("ingest finished",
		logging.String("outcome", string(report.Outcome)),
		logging.Int("discovered", report.Discovered),
		logging.Int("unique", report.Unique),
		logging.Int("discarded", report.Discarded),
		logging.Int("in_managed", report.InManaged),
		logging.Int("needs_staging", report.NeedsStaging),
		logging.Int("staged", report.Staged()),
		logging.Int("registered", report.Registered),
		logging.Int("failures", len(report.Failures)),
		logging.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
		logging.String(logging.FieldEventType, "ingest_complete"),
	)
	return report
}
