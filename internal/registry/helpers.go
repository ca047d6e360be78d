package registry

import (
	"database/sql"
	"errors"
	"time"

	"vidingest/internal/media"
)

const videoColumns = `v.hash, v.full_hash, v.host, v.source_path, v.staged_path, v.size_bytes,
    v.last_modified, v.recorded_time, v.recorded_time_source, v.registered_at, v.run_id,
    (SELECT COUNT(1) FROM experiment_links l WHERE l.hash = v.hash)`

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*UnassignedVideo, error) {
	var (
		hash            string
		fullHash        sql.NullString
		host            string
		sourcePath      string
		stagedPath      sql.NullString
		sizeBytes       int64
		lastModifiedRaw sql.NullString
		recordedRaw     sql.NullString
		recordedSource  sql.NullString
		registeredRaw   string
		runID           sql.NullString
		linkCount       int
	)
	if err := scanner.Scan(
		&hash,
		&fullHash,
		&host,
		&sourcePath,
		&stagedPath,
		&sizeBytes,
		&lastModifiedRaw,
		&recordedRaw,
		&recordedSource,
		&registeredRaw,
		&runID,
		&linkCount,
	); err != nil {
		return nil, err
	}

	video := &UnassignedVideo{
		Hash:               hash,
		FullHash:           fullHash.String,
		Host:               host,
		SourcePath:         sourcePath,
		StagedPath:         stagedPath.String,
		SizeBytes:          sizeBytes,
		RecordedTimeSource: media.RecordedTimeSource(recordedSource.String),
		RunID:              runID.String,
		LinkCount:          linkCount,
	}
	if ts, err := parseTimeString(lastModifiedRaw.String); err == nil {
		video.LastModified = ts
	}
	if recordedRaw.Valid {
		if ts, err := parseTimeString(recordedRaw.String); err == nil {
			video.RecordedTime = &ts
		}
	}
	if ts, err := parseTimeString(registeredRaw); err == nil {
		video.RegisteredAt = ts
	}
	return video, nil
}

func scanLink(scanner interface{ Scan(dest ...any) error }) (ExperimentVideoLink, error) {
	var (
		link      ExperimentVideoLink
		linkedRaw string
	)
	if err := scanner.Scan(&link.Hash, &link.ExperimentID, &linkedRaw); err != nil {
		return ExperimentVideoLink{}, err
	}
	if ts, err := parseTimeString(linkedRaw); err == nil {
		link.LinkedAt = ts
	}
	return link, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
