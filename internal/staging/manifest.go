package staging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vidingest/internal/fileutil"
	"vidingest/internal/media"
)

// Manifest is the persisted record of one run's staging work.
type Manifest struct {
	RunID     string                       `json:"runId"`
	WrittenAt time.Time                    `json:"writtenAt"`
	Entries   []media.StagingManifestEntry `json:"entries"`
}

// ManifestPath returns where the manifest of runID is stored.
func ManifestPath(root, runID string) string {
	return filepath.Join(root, StateDir, "manifests", runID+".json")
}

// WriteManifest stores entries as <root>/.vidingest/manifests/<runID>.json.
func WriteManifest(root, runID string, entries []media.StagingManifestEntry) (string, error) {
	path := ManifestPath(root, runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create manifest directory: %w", err)
	}
	payload, err := json.MarshalIndent(Manifest{
		RunID:     runID,
		WrittenAt: time.Now().UTC().Truncate(time.Second),
		Entries:   entries,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	if _, err := fileutil.CopyAtomic(path, bytes.NewReader(payload), 0o644, nil); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return m, nil
}
