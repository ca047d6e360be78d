// Package scanner discovers video files on scan targets and hashes them.
//
// A Source walks one target. LocalSource walks the local filesystem with a
// bounded hashing pool; RemoteSource runs the scanner on another host over SSH
// and decodes the JSONL it streams back. SourceFor picks the variant from the
// target kind. Stream wraps a Source as a single-use iterator.
package scanner
