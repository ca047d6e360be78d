package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"vidingest/internal/media"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRecords streams the canonical record of each entry as JSONL to stdout.
func writeRecords(cmd *cobra.Command, entries []media.UniqueVideoEntry) error {
	return media.WriteRecords(cmd.OutOrStdout(), entries)
}
