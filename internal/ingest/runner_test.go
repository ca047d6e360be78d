package ingest_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidingest/internal/aggregate"
	"vidingest/internal/config"
	"vidingest/internal/faults"
	"vidingest/internal/ingest"
	"vidingest/internal/logging"
	"vidingest/internal/media"
	"vidingest/internal/registry"
	"vidingest/internal/remote"
	"vidingest/internal/testsupport"
)

type refusingDialer struct{}

func (refusingDialer) Dial(context.Context, remote.Endpoint) (remote.Conn, error) {
	return nil, errors.New("connection refused")
}

// seedFiles writes five files, one of which duplicates another.
func seedFiles(t *testing.T, cfg *config.Config) {
	t.Helper()
	src := testsupport.SourceDir(cfg)
	testsupport.WriteSeeded(t, filepath.Join(src, "mouse1", "a.mp4"), 40_000, 1)
	testsupport.WriteSeeded(t, filepath.Join(src, "mouse1", "b.mp4"), 41_000, 2)
	testsupport.WriteSeeded(t, filepath.Join(src, "mouse2", "c.mp4"), 42_000, 3)
	testsupport.WriteSeeded(t, filepath.Join(src, "mouse2", "d.mov"), 43_000, 4)
	testsupport.WriteSeeded(t, filepath.Join(src, "backup", "a-copy.mp4"), 40_000, 1)
}

func newRunner(t *testing.T, cfg *config.Config, opts ...ingest.Option) (*ingest.Runner, *registry.Store) {
	t.Helper()
	store := testsupport.MustOpenRegistry(t, cfg)
	opts = append([]ingest.Option{ingest.WithDialer(refusingDialer{})}, opts...)
	return ingest.NewRunner(cfg, store, logging.NewNop(), opts...), store
}

func remoteTarget(t *testing.T) config.Target {
	return config.Target{
		Name:           "rig-b",
		Kind:           config.KindSSH,
		Host:           "rig-b.lab",
		Port:           22,
		User:           "lab",
		Roots:          []string{"/srv/rec"},
		Platform:       "linux",
		PasswordEnv:    "VIDINGEST_TEST_RIG_PASSWORD",
		KnownHostsFile: filepath.Join(t.TempDir(), "known_hosts"),
	}
}

func TestDryRunPreviewsWithoutSideEffects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedFiles(t, cfg)
	runner, store := newRunner(t, cfg)

	emit := filepath.Join(testsupport.BaseDir(cfg), "preview", "needs.jsonl")
	report, err := runner.Run(context.Background(), ingest.Options{DryRun: true, EmitNeedsStaging: emit})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Discovered != 5 || report.Unique != 4 || report.Discarded != 1 {
		t.Fatalf("discovered=%d unique=%d discarded=%d", report.Discovered, report.Unique, report.Discarded)
	}
	if report.NeedsStaging != 4 || report.InManaged != 0 || report.Registered != 0 {
		t.Fatalf("unexpected preview: %+v", report)
	}
	if report.Outcome != ingest.OutcomeSuccess || report.ExitCode() != ingest.ExitSuccess {
		t.Fatalf("outcome = %s", report.Outcome)
	}

	f, err := os.Open(emit)
	if err != nil {
		t.Fatalf("open emitted file: %v", err)
	}
	defer f.Close()
	lines := 0
	if err := media.ReadRecords(f, func(media.VideoRecord) error { lines++; return nil }); err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if lines != 4 {
		t.Fatalf("emitted %d records, want 4", lines)
	}

	videos, err := store.Videos(context.Background())
	if err != nil || len(videos) != 0 {
		t.Fatalf("dry run registered videos: %v, %v", videos, err)
	}
	runs, err := store.Runs(context.Background(), 0)
	if err != nil || len(runs) != 1 || !runs[0].DryRun {
		t.Fatalf("runs = %+v, %v", runs, err)
	}
}

func TestCommitStagesAndRegisters(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSubjectPattern(`(?P<subject>mouse\d+)`))
	seedFiles(t, cfg)
	runner, store := newRunner(t, cfg, ingest.WithRunID(func() string { return "run-commit" }))
	ctx := context.Background()

	report, err := runner.Run(ctx, ingest.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Registered != 4 || report.Staged() != 4 {
		t.Fatalf("registered=%d staged=%d failures=%v", report.Registered, report.Staged(), report.Failures)
	}
	if report.Outcome != ingest.OutcomeSuccess {
		t.Fatalf("outcome = %s (%v)", report.Outcome, report.Failures)
	}
	for _, m := range report.Manifest {
		if !strings.HasPrefix(m.Destination, cfg.Paths.ManagedRoot) {
			t.Fatalf("destination %s outside managed root", m.Destination)
		}
		if _, err := os.Stat(m.Destination); err != nil {
			t.Fatalf("staged file missing: %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.ManagedRoot, ".vidingest", "manifests", "run-commit.json")); err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, logging.RunLogDir, "run-commit.log")); err != nil {
		t.Fatalf("run log not written: %v", err)
	}

	unassigned, err := store.Unassigned(ctx)
	if err != nil || len(unassigned) != 4 {
		t.Fatalf("unassigned = %d, %v", len(unassigned), err)
	}
	for _, v := range unassigned {
		if v.StagedPath == "" || v.FullHash == "" {
			t.Fatalf("registered video missing staging data: %+v", v)
		}
	}

	again, err := runner.Run(ctx, ingest.Options{})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.InManaged != 4 || again.NeedsStaging != 0 || again.Registered != 0 {
		t.Fatalf("second run should find everything registered: %+v", again)
	}
	videos, err := store.Videos(ctx)
	if err != nil || len(videos) != 4 {
		t.Fatalf("videos after rerun = %d, %v", len(videos), err)
	}
}

func TestSkipStagingRegistersInPlace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedFiles(t, cfg)
	runner, store := newRunner(t, cfg)

	report, err := runner.Run(context.Background(), ingest.Options{SkipStaging: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Registered != 4 || len(report.Manifest) != 0 {
		t.Fatalf("registered=%d manifest=%d", report.Registered, len(report.Manifest))
	}
	videos, err := store.Videos(context.Background())
	if err != nil {
		t.Fatalf("Videos: %v", err)
	}
	for _, v := range videos {
		if v.StagedPath != "" {
			t.Fatalf("expected no staged path, got %s", v.StagedPath)
		}
	}
}

type corruptWriter struct{ w io.Writer }

func (c corruptWriter) Write(p []byte) (int, error) {
	buf := append([]byte(nil), p...)
	buf[len(buf)-1] ^= 0x01
	return c.w.Write(buf)
}

func TestCorruptedCopiesAreNotRegistered(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	seedFiles(t, cfg)
	runner, store := newRunner(t, cfg, ingest.WithWrapWriter(func(w io.Writer) io.Writer { return corruptWriter{w: w} }))

	report, err := runner.Run(context.Background(), ingest.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Registered != 0 || report.Staged() != 0 {
		t.Fatalf("registered=%d staged=%d", report.Registered, report.Staged())
	}
	if len(report.Failures) != 4 || report.Failures[0].Kind != faults.KindStaging {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if report.Outcome != ingest.OutcomePartial || report.ExitCode() != ingest.ExitPartial {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	videos, err := store.Videos(context.Background())
	if err != nil || len(videos) != 0 {
		t.Fatalf("videos = %d, %v", len(videos), err)
	}
}

func TestUnreachableTargetIsPartial(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Targets = append(cfg.Targets, remoteTarget(t))
	seedFiles(t, cfg)
	runner, _ := newRunner(t, cfg)

	report, err := runner.Run(context.Background(), ingest.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != ingest.OutcomePartial || report.ExitCode() != ingest.ExitPartial {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	if report.Registered != 4 {
		t.Fatalf("local target entries should still register, got %d", report.Registered)
	}
	var remoteFailure *ingest.Failure
	for i := range report.Failures {
		if report.Failures[i].Subject == "rig-b" {
			remoteFailure = &report.Failures[i]
		}
	}
	if remoteFailure == nil || remoteFailure.Kind != faults.KindRemoteTarget {
		t.Fatalf("expected remote target failure, got %+v", report.Failures)
	}
	for _, tr := range report.Targets {
		if tr.Target == "rig-b" && tr.Status != aggregate.StatusFailed {
			t.Fatalf("rig-b status = %s", tr.Status)
		}
	}
}

func TestAllTargetsFailedIsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTargets(remoteTarget(t)))
	runner, _ := newRunner(t, cfg)

	report, err := runner.Run(context.Background(), ingest.Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcome != ingest.OutcomeFailed || report.ExitCode() != ingest.ExitFailure {
		t.Fatalf("outcome = %s", report.Outcome)
	}
}

func TestConfigurationErrorsAbortBeforeScanning(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTargets())
	runner, store := newRunner(t, cfg)

	_, err := runner.Run(context.Background(), ingest.Options{})
	if !faults.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := runner.Run(context.Background(), ingest.Options{Targets: []string{"nope"}}); !faults.IsFatal(err) {
		t.Fatalf("expected configuration error for unknown target, got %v", err)
	}
	runs, err := store.Runs(context.Background(), 0)
	if err != nil || len(runs) != 0 {
		t.Fatalf("config failures must not record runs: %v, %v", runs, err)
	}
}

func TestSampleHashConflictsAreHeldBack(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSampleBytes(4))
	src := testsupport.SourceDir(cfg)
	first := []byte(strings.Repeat("a", 65))
	second := append([]byte(nil), first...)
	second[32] = 'b'
	testsupport.WriteBytes(t, filepath.Join(src, "mouse1", "trial.mp4"), first)
	testsupport.WriteBytes(t, filepath.Join(src, "mouse2", "trial.mp4"), second)
	testsupport.WriteSeeded(t, filepath.Join(src, "mouse3", "other.mp4"), 40_000, 5)
	runner, store := newRunner(t, cfg)
	ctx := context.Background()

	report, err := runner.Run(ctx, ingest.Options{FullHash: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Conflicts) != 1 || report.Unique != 3 || report.Held != 2 {
		t.Fatalf("conflicts=%d unique=%d held=%d", len(report.Conflicts), report.Unique, report.Held)
	}
	if report.NeedsStaging != 1 || report.Staged() != 1 || report.Registered != 1 {
		t.Fatalf("needs=%d staged=%d registered=%d", report.NeedsStaging, report.Staged(), report.Registered)
	}
	conflictFailures := 0
	for _, f := range report.Failures {
		if f.Kind == faults.KindDuplicate {
			conflictFailures++
		}
	}
	if conflictFailures != 2 {
		t.Fatalf("failures = %+v", report.Failures)
	}
	if report.Outcome != ingest.OutcomePartial || report.ExitCode() != ingest.ExitPartial {
		t.Fatalf("outcome = %s", report.Outcome)
	}
	for _, m := range report.Manifest {
		if strings.Contains(m.Entry.Record.Path, "trial.mp4") {
			t.Fatalf("conflicting entry was staged: %s", m.Destination)
		}
	}
	videos, err := store.Videos(ctx)
	if err != nil || len(videos) != 1 {
		t.Fatalf("videos = %d, %v", len(videos), err)
	}

	preview, err := runner.Run(ctx, ingest.Options{FullHash: true, DryRun: true})
	if err != nil {
		t.Fatalf("dry Run: %v", err)
	}
	if preview.NeedsStaging != 0 || preview.InManaged != 1 || preview.Held != 2 {
		t.Fatalf("dry run should keep holding conflicts: %+v", preview)
	}
}
