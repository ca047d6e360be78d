package ingest

import (
	"time"

	"vidingest/internal/aggregate"
	"vidingest/internal/faults"
	"vidingest/internal/media"
	"vidingest/internal/registry"
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// Exit codes reported by the CLI.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitPartial = 2
	ExitConfig  = 3
)

// Failure is one per-target or per-entry problem recorded in the report.
type Failure struct {
	Scope   string `json:"scope"`
	Subject string `json:"subject"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error"`
}

// Report summarizes one ingest run.
type Report struct {
	RunID        string                       `json:"runId"`
	StartedAt    time.Time                    `json:"startedAt"`
	FinishedAt   time.Time                    `json:"finishedAt"`
	DryRun       bool                         `json:"dryRun"`
	SkipStaging  bool                         `json:"skipStaging,omitempty"`
	Targets      []aggregate.TargetReport     `json:"-"`
	Discovered   int                          `json:"discovered"`
	Unique       int                          `json:"unique"`
	Discarded    int                          `json:"discarded"`
	Conflicts    []faults.DuplicateConflict   `json:"conflicts,omitempty"`
	// Held counts entries kept out of staging and registration because their
	// sample hash is in conflict.
	Held         int                          `json:"held,omitempty"`
	InManaged    int                          `json:"inManaged"`
	NeedsStaging int                          `json:"needsStaging"`
	Manifest     []media.StagingManifestEntry `json:"manifest,omitempty"`
	ManifestPath string                       `json:"manifestPath,omitempty"`
	Registered   int                          `json:"registered"`
	Failures     []Failure                    `json:"failures,omitempty"`
	Outcome      Outcome                      `json:"outcome"`
}

// Staged counts manifest entries that were verified.
func (r *Report) Staged() int {
	n := 0
	for _, m := range r.Manifest {
		if m.Verified() {
			n++
		}
	}
	return n
}

// ExitCode maps the outcome to the CLI exit status.
func (r *Report) ExitCode() int {
	if r == nil {
		return ExitFailure
	}
	switch r.Outcome {
	case OutcomeSuccess:
		return ExitSuccess
	case OutcomePartial:
		return ExitPartial
	default:
		return ExitFailure
	}
}

func (r *Report) runRecord(targets []string) registry.RunRecord {
	status := registry.RunSucceeded
	switch r.Outcome {
	case OutcomePartial:
		status = registry.RunPartial
	case OutcomeFailed:
		status = registry.RunFailed
	}
	return registry.RunRecord{
		RunID:        r.RunID,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
		Targets:      targets,
		DryRun:       r.DryRun,
		Status:       status,
		Discovered:   r.Discovered,
		Unique:       r.Unique,
		Discarded:    r.Discarded,
		Staged:       r.Staged(),
		Registered:   r.Registered,
		Failures:     len(r.Failures),
		ManifestPath: r.ManifestPath,
	}
}

// classify derives the outcome. A run fails outright when no target produced
// anything usable; any failed target or entry makes it partial.
func classify(r *Report) Outcome {
	if len(r.Targets) > 0 {
		failed := 0
		for _, t := range r.Targets {
			if t.Status == aggregate.StatusFailed {
				failed++
			}
		}
		if failed == len(r.Targets) {
			return OutcomeFailed
		}
	}
	if len(r.Failures) > 0 {
		return OutcomePartial
	}
	for _, t := range r.Targets {
		if t.Status != aggregate.StatusSuccess {
			return OutcomePartial
		}
	}
	return OutcomeSuccess
}
