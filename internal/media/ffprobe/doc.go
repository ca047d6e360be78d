// Package ffprobe provides a typed wrapper around the ffprobe JSON output
// needed to recover a recording's capture time.
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns the parsed Result
//
// Result.CreationTime reads the container creation_time tag, falling back to
// the video stream tags.
package ffprobe
