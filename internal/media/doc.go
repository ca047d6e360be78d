// Package media holds the records that flow through ingestion: discovered
// VideoRecords, deduplicated UniqueVideoEntries, and staging manifest entries,
// plus the line-delimited JSON codec remote hosts use to stream records back.
package media
