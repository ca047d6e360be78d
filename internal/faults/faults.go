package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds reported by Classifier implementations.
const (
	KindScan          = "scan"
	KindHash          = "hash"
	KindRemoteTarget  = "remote_target"
	KindStaging       = "staging_verification"
	KindDuplicate     = "duplicate_conflict"
	KindConfiguration = "configuration"
	KindNotFound      = "not_found"
)

// Classifier allows errors to declare their classification so callers can
// decide between skipping a file, abandoning a target, or aborting the run.
type Classifier interface {
	ErrorKind() string
}

// Kind returns the classification of err, or "" when err carries none.
func Kind(err error) string {
	var classifier Classifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return ""
}

// IsFatal reports whether err must abort an ingestion run before any work.
func IsFatal(err error) bool {
	return Kind(err) == KindConfiguration
}

// ScanError reports a per-path I/O failure during discovery. The walk continues.
type ScanError struct {
	Host string
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", joinHostPath(e.Host, e.Path), e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

func (e *ScanError) ErrorKind() string { return KindScan }

// HashError reports a read failure while hashing a file.
type HashError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *HashError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("hash %s (after %d attempts): %v", e.Path, e.Attempts, e.Err)
	}
	return fmt.Sprintf("hash %s: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

func (e *HashError) ErrorKind() string { return KindHash }

// RemoteTargetError reports that a remote target could not be reached or
// returned an unusable stream. The target is abandoned.
type RemoteTargetError struct {
	Target string
	Host   string
	Reason string
	Err    error
}

func (e *RemoteTargetError) Error() string {
	parts := []string{"remote target " + e.Target}
	if e.Host != "" && e.Host != e.Target {
		parts[0] += " (" + e.Host + ")"
	}
	if reason := strings.TrimSpace(e.Reason); reason != "" {
		parts = append(parts, reason)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *RemoteTargetError) Unwrap() error { return e.Err }

func (e *RemoteTargetError) ErrorKind() string { return KindRemoteTarget }

// StagingVerificationError reports that a staged copy does not match its source.
type StagingVerificationError struct {
	Source      string
	Destination string
	Expected    string
	Actual      string
}

func (e *StagingVerificationError) Error() string {
	return fmt.Sprintf("staging verification failed for %s -> %s: expected %s, got %s",
		e.Source, e.Destination, shortHash(e.Expected), shortHash(e.Actual))
}

func (e *StagingVerificationError) ErrorKind() string { return KindStaging }

// DuplicateConflict flags two records sharing a sample hash whose full hashes
// differ. Both records are kept.
type DuplicateConflict struct {
	SampleHash    string
	FirstPath     string
	FirstHost     string
	FirstFullHash string
	OtherPath     string
	OtherHost     string
	OtherFullHash string
}

func (e *DuplicateConflict) Error() string {
	return fmt.Sprintf("sample hash %s collides: %s and %s have different content",
		shortHash(e.SampleHash), joinHostPath(e.FirstHost, e.FirstPath), joinHostPath(e.OtherHost, e.OtherPath))
}

func (e *DuplicateConflict) ErrorKind() string { return KindDuplicate }

// ConfigurationError aborts a run before any scanning starts.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration"
	if e.Field != "" {
		msg = e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) ErrorKind() string { return KindConfiguration }

// Configf builds a ConfigurationError for field with a formatted reason.
func Configf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a registry lookup for an unknown hash or link.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) ErrorKind() string { return KindNotFound }

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func joinHostPath(host, path string) string {
	if host == "" {
		return path
	}
	return host + ":" + path
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	if h == "" {
		return "<none>"
	}
	return h
}
