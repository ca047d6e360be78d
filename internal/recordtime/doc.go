// Package recordtime resolves when a recording was captured.
//
// Sources are tried in priority order: a JSON sidecar next to the video
// (recorded_at), container metadata (ffprobe when configured, otherwise the
// MP4/QuickTime movie header), and finally the file modification time. Manual
// corrections are applied later through the registry.
package recordtime
