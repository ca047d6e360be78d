package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// RecordRun inserts or replaces the summary of one ingest run.
func (s *Store) RecordRun(ctx context.Context, run RunRecord) error {
	if strings.TrimSpace(run.RunID) == "" {
		return fmt.Errorf("record run: run id is empty")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO ingest_runs (
            run_id, started_at, finished_at, targets, dry_run, status,
            discovered, unique_count, discarded, staged, registered, failures, manifest_path
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		formatTime(run.StartedAt),
		nullableTime(&run.FinishedAt),
		strings.Join(run.Targets, ","),
		boolToInt(run.DryRun),
		string(run.Status),
		run.Discovered,
		run.Unique,
		run.Discarded,
		run.Staged,
		run.Registered,
		run.Failures,
		nullableString(run.ManifestPath),
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Runs returns the most recent runs first. limit <= 0 returns all.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `SELECT run_id, started_at, finished_at, targets, dry_run, status,
        discovered, unique_count, discarded, staged, registered, failures, manifest_path
        FROM ingest_runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run         RunRecord
			startedRaw  string
			finishedRaw sql.NullString
			targets     sql.NullString
			dryRun      int
			status      string
			manifest    sql.NullString
		)
		if err := rows.Scan(&run.RunID, &startedRaw, &finishedRaw, &targets, &dryRun, &status,
			&run.Discovered, &run.Unique, &run.Discarded, &run.Staged, &run.Registered, &run.Failures,
			&manifest); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if ts, err := parseTimeString(startedRaw); err == nil {
			run.StartedAt = ts
		}
		if ts, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = ts
		}
		if targets.String != "" {
			run.Targets = strings.Split(targets.String, ",")
		}
		run.DryRun = dryRun != 0
		run.Status = RunStatus(status)
		run.ManifestPath = manifest.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
