package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vidingest/internal/faults"
)

// LinkToExperiment assigns hash to experimentID. The video must be
// registered. Linking an existing pair again is a no-op.
func (s *Store) LinkToExperiment(ctx context.Context, hash, experimentID string) (ExperimentVideoLink, error) {
	experimentID = strings.TrimSpace(experimentID)
	if experimentID == "" {
		return ExperimentVideoLink{}, fmt.Errorf("link %s: experiment id is empty", hash)
	}
	ctx = ensureContext(ctx)
	unlock := s.locks.Lock(hash)
	defer unlock()

	var link ExperimentVideoLink
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM videos WHERE hash = ?`, hash).Scan(&count); err != nil {
			return fmt.Errorf("lookup video: %w", err)
		}
		if count == 0 {
			return &faults.NotFoundError{Resource: "video", Key: hash}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO experiment_links (hash, experiment_id, linked_at) VALUES (?, ?, ?)`,
			hash, experimentID, formatTime(time.Now()),
		); err != nil {
			return fmt.Errorf("insert link: %w", err)
		}
		row := tx.QueryRowContext(ctx,
			`SELECT hash, experiment_id, linked_at FROM experiment_links WHERE hash = ? AND experiment_id = ?`,
			hash, experimentID)
		var scanErr error
		link, scanErr = scanLink(row)
		return scanErr
	})
	if err != nil {
		return ExperimentVideoLink{}, err
	}
	return link, nil
}

// Unlink removes the assignment of hash to experimentID.
func (s *Store) Unlink(ctx context.Context, hash, experimentID string) error {
	unlock := s.locks.Lock(hash)
	defer unlock()

	res, err := s.execWithRetry(ctx,
		`DELETE FROM experiment_links WHERE hash = ? AND experiment_id = ?`, hash, experimentID)
	if err != nil {
		return fmt.Errorf("unlink: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &faults.NotFoundError{Resource: "link", Key: hash + "->" + experimentID}
	}
	return nil
}

// ExperimentsFor returns the experiments hash is assigned to.
func (s *Store) ExperimentsFor(ctx context.Context, hash string) ([]string, error) {
	return s.column(ctx,
		`SELECT experiment_id FROM experiment_links WHERE hash = ? ORDER BY experiment_id`, hash)
}

// HashesFor returns the videos assigned to experimentID.
func (s *Store) HashesFor(ctx context.Context, experimentID string) ([]string, error) {
	return s.column(ctx,
		`SELECT hash FROM experiment_links WHERE experiment_id = ? ORDER BY linked_at, hash`, experimentID)
}

// LinkFilter narrows Links. Empty fields match everything.
type LinkFilter struct {
	Hash         string
	ExperimentID string
}

// Links returns assignments matching filter.
func (s *Store) Links(ctx context.Context, filter LinkFilter) ([]ExperimentVideoLink, error) {
	query := `SELECT hash, experiment_id, linked_at FROM experiment_links`
	var (
		clauses []string
		args    []any
	)
	if filter.Hash != "" {
		clauses = append(clauses, "hash = ?")
		args = append(args, filter.Hash)
	}
	if filter.ExperimentID != "" {
		clauses = append(clauses, "experiment_id = ?")
		args = append(args, filter.ExperimentID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY experiment_id, linked_at, hash"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []ExperimentVideoLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *Store) column(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, value)
	}
	return out, rows.Err()
}
