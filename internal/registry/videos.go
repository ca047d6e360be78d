package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"vidingest/internal/faults"
	"vidingest/internal/media"
)

// RegisterUnassigned inserts regs keyed by sample hash and returns how many
// rows were new. Hashes already registered are left untouched.
func (s *Store) RegisterUnassigned(ctx context.Context, runID string, regs ...Registration) (int, error) {
	inserted := 0
	now := formatTime(time.Now())
	for _, reg := range regs {
		rec := reg.Record
		hash := strings.TrimSpace(rec.SampleHash)
		if hash == "" {
			return inserted, fmt.Errorf("register %s: record has no hash", rec.Location())
		}
		unlock := s.locks.Lock(hash)
		res, err := s.execWithRetry(ctx,
			`INSERT OR IGNORE INTO videos (
                hash, full_hash, host, source_path, staged_path, size_bytes,
                last_modified, recorded_time, recorded_time_source, registered_at, run_id
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			hash,
			nullableString(reg.FullHash),
			rec.Host,
			rec.Path,
			nullableString(reg.StagedPath),
			rec.SizeBytes,
			nullableTime(&rec.LastModified),
			nullableTime(rec.RecordedTime),
			nullableString(string(rec.RecordedTimeSource)),
			now,
			nullableString(runID),
		)
		unlock()
		if err != nil {
			return inserted, fmt.Errorf("register %s: %w", hash, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// Get returns the video registered under hash.
func (s *Store) Get(ctx context.Context, hash string) (*UnassignedVideo, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos v WHERE v.hash = ?`, hash)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &faults.NotFoundError{Resource: "video", Key: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// Registered reports whether hash is in the registry.
func (s *Store) Registered(ctx context.Context, hash string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM videos WHERE hash = ?`, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("lookup video: %w", err)
	}
	return count > 0, nil
}

// Hashes returns the set of registered hashes.
func (s *Store) Hashes(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT hash FROM videos`)
	if err != nil {
		return nil, fmt.Errorf("list hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		out[hash] = struct{}{}
	}
	return out, rows.Err()
}

// Videos returns every registered video ordered by registration time.
func (s *Store) Videos(ctx context.Context) ([]*UnassignedVideo, error) {
	return s.listVideos(ctx, "")
}

// Unassigned returns registered videos that no experiment references.
func (s *Store) Unassigned(ctx context.Context) ([]*UnassignedVideo, error) {
	return s.listVideos(ctx, `WHERE NOT EXISTS (SELECT 1 FROM experiment_links l WHERE l.hash = v.hash)`)
}

func (s *Store) listVideos(ctx context.Context, where string) ([]*UnassignedVideo, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+videoColumns+` FROM videos v `+where+` ORDER BY v.registered_at, v.hash`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*UnassignedVideo
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// SetRecordedTime stores a manually supplied capture time for hash.
func (s *Store) SetRecordedTime(ctx context.Context, hash string, recorded time.Time) error {
	if recorded.IsZero() {
		return errors.New("recorded time is zero")
	}
	unlock := s.locks.Lock(hash)
	defer unlock()

	res, err := s.execWithRetry(ctx,
		`UPDATE videos SET recorded_time = ?, recorded_time_source = ? WHERE hash = ?`,
		formatTime(recorded), string(media.SourceManual), hash)
	if err != nil {
		return fmt.Errorf("set recorded time: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &faults.NotFoundError{Resource: "video", Key: hash}
	}
	return nil
}
