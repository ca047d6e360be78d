// Package ingest runs one end-to-end ingestion: preflight, multi-host scan
// and dedup, preview split, staging into managed storage, and registration.
//
// A dry run stops after the preview and optionally writes the in-managed and
// needs-staging sets as JSONL. A commit registers in-managed entries
// directly, stages the rest, and registers only copies whose hashes were
// verified. Every run, dry or not, is recorded in the registry under a UUID
// run ID and gets its own JSON log file.
package ingest
