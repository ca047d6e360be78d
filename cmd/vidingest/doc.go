// Package main hosts the vidingest CLI entrypoint and command graph.
//
// The Cobra command tree covers scanning (locally, or as the command run on
// remote hosts), deduplicating captured JSONL streams, full ingest runs,
// registry maintenance and configuration scaffolding. Configuration and
// logger setup live in commandContext so subcommands stay declarative.
//
// Add functionality to the internal packages first, then surface it here.
package main
