package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion must change whenever schema.sql does.
const schemaVersion = 1

// ErrSchemaMismatch is returned when an existing registry was written by a
// different schema version.
var ErrSchemaMismatch = errors.New("registry schema version mismatch")

// initSchema creates the tables on an empty database and refuses to open a
// registry stamped with another version. Registries are never migrated in
// place; the operator re-creates them.
func (s *Store) initSchema(ctx context.Context) error {
	version, found, err := readSchemaVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if !found {
		return s.createSchema(ctx)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s is version %d, this build expects %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func readSchemaVersion(ctx context.Context, db *sql.DB) (int, bool, error) {
	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&tables); err != nil {
		return 0, false, fmt.Errorf("probe registry schema: %w", err)
	}
	if tables == 0 {
		return 0, false, nil
	}
	var version int
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A crash between table creation and the version stamp leaves an
		// empty table. The DDL is idempotent so the stamp is simply retried.
		return 0, false, nil
	case err != nil:
		return 0, false, fmt.Errorf("read registry schema version: %w", err)
	}
	return version, true, nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	steps := []struct {
		what  string
		query string
		args  []any
	}{
		{"create registry tables", schemaSQL, nil},
		{"stamp schema version", "INSERT INTO schema_version (version) VALUES (?)", []any{schemaVersion}},
	}
	for _, step := range steps {
		if _, err := tx.ExecContext(ctx, step.query, step.args...); err != nil {
			return fmt.Errorf("%s: %w", step.what, err)
		}
	}
	return tx.Commit()
}
