package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidingest/internal/fileutil"
	"vidingest/internal/logging"
)

// CleanResult contains the outcome of a partial-copy cleanup.
type CleanResult struct {
	Removed []string
	// Locks lists destination lock files that were no longer in use.
	Locks  []string
	Errors []CleanupError
}

// CleanupError pairs a path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanPartials removes temporary copies older than maxAge left under root by
// interrupted runs, then prunes destination locks not taken within maxAge.
// Completed files are never touched.
func CleanPartials(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	root = strings.TrimSpace(root)
	if root == "" {
		return result
	}
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: root, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return fs.SkipAll
		}
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			return nil
		}
		if d.IsDir() {
			if path != root && d.Name() == StateDir {
				return fs.SkipDir
			}
			return nil
		}
		if !fileutil.IsPartial(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove partial copy", "staging_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check managed_root permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			return nil
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed partial copy",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
		return nil
	})

	if ctx.Err() != nil {
		return result
	}
	locks, lockErrs := pruneLocks(ctx, root, cutoff)
	result.Locks = locks
	result.Errors = append(result.Errors, lockErrs...)
	if len(locks) > 0 && logger != nil {
		logger.Info("pruned destination locks",
			logging.Int("count", len(locks)),
			logging.String(logging.FieldEventType, "staging_lock_prune"),
		)
	}
	return result
}
