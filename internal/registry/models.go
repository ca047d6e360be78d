package registry

import (
	"time"

	"vidingest/internal/media"
)

// UnassignedVideo is a registered video. The name reflects how every video
// enters the registry; LinkCount tells whether it has since been assigned.
type UnassignedVideo struct {
	Hash               string                   `json:"hash"`
	FullHash           string                   `json:"fullHash,omitempty"`
	Host               string                   `json:"host"`
	SourcePath         string                   `json:"sourcePath"`
	StagedPath         string                   `json:"stagedPath,omitempty"`
	SizeBytes          int64                    `json:"sizeBytes"`
	LastModified       time.Time                `json:"lastModified"`
	RecordedTime       *time.Time               `json:"recordedTime,omitempty"`
	RecordedTimeSource media.RecordedTimeSource `json:"recordedTimeSource,omitempty"`
	RegisteredAt       time.Time                `json:"registeredAt"`
	RunID              string                   `json:"runId,omitempty"`
	LinkCount          int                      `json:"linkCount"`
}

// Assigned reports whether at least one experiment references the video.
func (v UnassignedVideo) Assigned() bool { return v.LinkCount > 0 }

// CaptureTime returns the recorded time when known, else the modification time.
func (v UnassignedVideo) CaptureTime() time.Time {
	if v.RecordedTime != nil && !v.RecordedTime.IsZero() {
		return *v.RecordedTime
	}
	return v.LastModified
}

// ExperimentVideoLink assigns one video to one experiment.
type ExperimentVideoLink struct {
	Hash         string    `json:"hash"`
	ExperimentID string    `json:"experimentId"`
	LinkedAt     time.Time `json:"linkedAt"`
}

// Registration is the input to RegisterUnassigned.
type Registration struct {
	Record     media.VideoRecord
	StagedPath string
	FullHash   string
}

// FromManifest builds a registration from a verified staging manifest entry.
func FromManifest(m media.StagingManifestEntry) Registration {
	full := m.FullHash
	if full == "" {
		full = m.Entry.Record.FullHash
	}
	return Registration{Record: m.Entry.Record, StagedPath: m.Destination, FullHash: full}
}

// FromEntry builds a registration for an entry that is not copied. stagedPath
// is empty when the file stays where it was discovered.
func FromEntry(e media.UniqueVideoEntry, stagedPath string) Registration {
	return Registration{Record: e.Record, StagedPath: stagedPath, FullHash: e.Record.FullHash}
}

// RunStatus summarizes how an ingest run ended.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the persisted summary of one ingest run.
type RunRecord struct {
	RunID        string    `json:"runId"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Targets      []string  `json:"targets"`
	DryRun       bool      `json:"dryRun"`
	Status       RunStatus `json:"status"`
	Discovered   int       `json:"discovered"`
	Unique       int       `json:"unique"`
	Discarded    int       `json:"discarded"`
	Staged       int       `json:"staged"`
	Registered   int       `json:"registered"`
	Failures     int       `json:"failures"`
	ManifestPath string    `json:"manifestPath,omitempty"`
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
