// Package logging assembles the slog loggers used by vidingest.
//
// The CLI writes a human-readable console stream to stderr and, when a log
// directory is configured, a JSON copy to vidingest.log plus one file per
// ingest run. Context helpers tag records with the run identifier and scan
// target so concurrent per-target work stays attributable.
package logging
