package media

import (
	"strings"
	"time"
)

// RecordedTimeSource identifies where a record's capture time came from.
type RecordedTimeSource string

const (
	SourceSidecar   RecordedTimeSource = "sidecar-data"
	SourceFileMtime RecordedTimeSource = "file-mtime"
	SourceContainer RecordedTimeSource = "container-metadata"
	SourceManual    RecordedTimeSource = "manual"
)

// Valid reports whether s is one of the known sources.
func (s RecordedTimeSource) Valid() bool {
	switch s {
	case SourceSidecar, SourceFileMtime, SourceContainer, SourceManual:
		return true
	}
	return false
}

// VideoRecord is one discovered video file as seen by the host that owns it.
// Identity is the sample hash; a record is never mutated after hashing.
type VideoRecord struct {
	Path               string             `json:"path"`
	Host               string             `json:"host"`
	SampleHash         string             `json:"sampleHash"`
	FullHash           string             `json:"fullHash,omitempty"`
	SizeBytes          int64              `json:"sizeBytes"`
	LastModified       time.Time          `json:"lastModified"`
	RecordedTime       *time.Time         `json:"recordedTime,omitempty"`
	RecordedTimeSource RecordedTimeSource `json:"recordedTimeSource,omitempty"`
}

// Location renders host:path for logs and tables.
func (r VideoRecord) Location() string {
	if r.Host == "" {
		return r.Path
	}
	return r.Host + ":" + r.Path
}

// Name returns the final path element regardless of the owning host's separator.
func (r VideoRecord) Name() string {
	p := strings.TrimRight(r.Path, `/\`)
	if idx := strings.LastIndexAny(p, `/\`); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// CaptureTime returns the recorded time when known, else the modification time.
func (r VideoRecord) CaptureTime() time.Time {
	if r.RecordedTime != nil && !r.RecordedTime.IsZero() {
		return *r.RecordedTime
	}
	return r.LastModified
}

// UniqueVideoEntry is the canonical record for one sample hash plus the
// duplicates that collapsed into it, kept for audit.
type UniqueVideoEntry struct {
	Record     VideoRecord   `json:"record"`
	Duplicates []VideoRecord `json:"duplicates,omitempty"`
}

// Hash returns the entry's identity key.
func (e UniqueVideoEntry) Hash() string { return e.Record.SampleHash }

// DuplicateCount reports how many records collapsed into this entry.
func (e UniqueVideoEntry) DuplicateCount() int { return len(e.Duplicates) }

// StagingStatus tracks a manifest entry through copy and verification.
type StagingStatus string

const (
	StagingPending  StagingStatus = "pending"
	StagingVerified StagingStatus = "verified"
	StagingFailed   StagingStatus = "failed"
)

// StagingManifestEntry pairs a unique entry with its staged destination.
type StagingManifestEntry struct {
	Entry       UniqueVideoEntry `json:"entry"`
	Destination string           `json:"destination"`
	Status      StagingStatus    `json:"status"`
	Copied      bool             `json:"copied"`
	FullHash    string           `json:"fullHash,omitempty"`
	Error       string           `json:"error,omitempty"`
	Err         error            `json:"-"`
}

// Verified reports whether the entry may be registered.
func (m StagingManifestEntry) Verified() bool { return m.Status == StagingVerified }
