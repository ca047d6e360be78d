// Package aggregate scans several targets concurrently and merges their
// records into one deduplicated set.
//
// Each target runs on a bounded pool with its own deduplicator; results are
// folded into a shared deduplicator under a mutex. A target that fails is
// reported and never stops the others. Split turns the merged set into the
// ingest preview: entries already inside managed storage and entries that
// still need staging.
package aggregate
