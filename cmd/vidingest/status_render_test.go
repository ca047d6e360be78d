package main

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"vidingest/internal/aggregate"
	"vidingest/internal/ingest"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("rig-a", statusError, "connection refused", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "rig-a:", "[ERROR] connection refused")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Outcome", statusOK, "success", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestStatusKindsForOutcomes(t *testing.T) {
	if targetStatusKind(aggregate.StatusPartial) != statusWarn {
		t.Fatal("partial target should warn")
	}
	if targetStatusKind(aggregate.StatusFailed) != statusError {
		t.Fatal("failed target should error")
	}
	if outcomeStatusKind(ingest.OutcomeSuccess) != statusOK {
		t.Fatal("success outcome should be OK")
	}
	if outcomeStatusKind(ingest.OutcomeFailed) != statusError {
		t.Fatal("failed outcome should error")
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatalf("expected non-file writer to disable color")
	}
}

func TestTargetsCommandWithPreflight(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"targets", "--check"}, env.configPath)
	if err != nil {
		t.Fatalf("targets --check: %v", err)
	}
	requireContains(t, out, "workstation")
	requireContains(t, out, "Preflight")
	requireContains(t, out, "[OK]")
}

func TestStagingCleanReportsNothingToDo(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"staging", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("staging clean: %v", err)
	}
	requireContains(t, out, "No partial copies to clean")
}
