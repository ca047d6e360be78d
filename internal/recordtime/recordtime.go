package recordtime

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidingest/internal/media"
	"vidingest/internal/media/ffprobe"
)

// Result is a resolved capture time and where it came from.
type Result struct {
	Time   time.Time
	Source media.RecordedTimeSource
}

// ProbeFunc inspects container metadata for path.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Resolver determines a recording's capture time from, in order: a JSON
// sidecar, container metadata, then the file modification time.
type Resolver struct {
	ffprobeBinary string
	probe         ProbeFunc
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithFFprobe enables ffprobe-based container inspection using binary.
func WithFFprobe(binary string) Option {
	return func(r *Resolver) {
		r.ffprobeBinary = strings.TrimSpace(binary)
	}
}

// WithProbe overrides how ffprobe is invoked.
func WithProbe(fn ProbeFunc) Option {
	return func(r *Resolver) {
		if fn != nil {
			r.probe = fn
		}
	}
}

// NewResolver builds a Resolver. Without WithFFprobe, container metadata is
// read directly from MP4/QuickTime headers.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{probe: ffprobe.Inspect}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the capture time for the file at path.
func (r *Resolver) Resolve(ctx context.Context, path string, info fs.FileInfo) Result {
	if t, ok := readSidecar(path); ok {
		return Result{Time: t, Source: media.SourceSidecar}
	}
	if t, ok := r.containerTime(ctx, path); ok {
		return Result{Time: t, Source: media.SourceContainer}
	}
	var mtime time.Time
	if info != nil {
		mtime = info.ModTime()
	} else if st, err := os.Stat(path); err == nil {
		mtime = st.ModTime()
	}
	return Result{Time: mtime.UTC(), Source: media.SourceFileMtime}
}

// Apply stores res on rec.
func Apply(rec *media.VideoRecord, res Result) {
	if res.Time.IsZero() {
		return
	}
	t := res.Time.UTC()
	rec.RecordedTime = &t
	rec.RecordedTimeSource = res.Source
}

func (r *Resolver) containerTime(ctx context.Context, path string) (time.Time, bool) {
	if r.ffprobeBinary != "" && r.probe != nil {
		if result, err := r.probe(ctx, r.ffprobeBinary, path); err == nil {
			if t, ok := result.CreationTime(); ok {
				return t, true
			}
		}
	}
	if !isISOBMFF(path) {
		return time.Time{}, false
	}
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, false
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return time.Time{}, false
	}
	t, err := MovieCreationTime(file, info.Size())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type sidecar struct {
	RecordedAt    string `json:"recorded_at"`
	RecordedTime  string `json:"recordedTime"`
	RecordedSnake string `json:"recorded_time"`
}

func sidecarCandidates(path string) []string {
	ext := filepath.Ext(path)
	candidates := []string{path + ".json"}
	if ext != "" {
		candidates = append(candidates, strings.TrimSuffix(path, ext)+".json")
	}
	return candidates
}

func readSidecar(path string) (time.Time, bool) {
	for _, candidate := range sidecarCandidates(path) {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		t, err := parseSidecar(data)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseSidecar(data []byte) (time.Time, error) {
	var payload sidecar
	if err := json.Unmarshal(data, &payload); err != nil {
		return time.Time{}, err
	}
	for _, value := range []string{payload.RecordedAt, payload.RecordedTime, payload.RecordedSnake} {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, err
		}
		return t.UTC(), nil
	}
	return time.Time{}, errors.New("sidecar has no recorded time")
}

func isISOBMFF(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".m4v", ".mov", ".3gp", ".3g2":
		return true
	}
	return false
}
