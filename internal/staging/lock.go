package staging

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// StateDir is the bookkeeping directory inside the managed root.
const StateDir = ".vidingest"

const lockRetryDelay = 50 * time.Millisecond

// ErrLockTimeout reports that another process kept a destination locked.
var ErrLockTimeout = errors.New("staging: destination lock timed out")

func lockPath(root, destination string) string {
	sum := sha256.Sum256([]byte(destination))
	return filepath.Join(root, StateDir, "locks", hex.EncodeToString(sum[:])+".lock")
}

// lockDestination takes the advisory lock for destination, waiting at most
// timeout. The returned func releases it.
func lockDestination(ctx context.Context, root, destination string, timeout time.Duration) (func(), error) {
	path := lockPath(root, destination)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)

	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ok, err := lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, destination)
		}
		return nil, fmt.Errorf("lock %s: %w", destination, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, destination)
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return func() { _ = lock.Unlock() }, nil
}

// pruneLocks deletes lock files last taken before cutoff. A lock is removed
// only while held here, so a file some process still holds survives.
func pruneLocks(ctx context.Context, root string, cutoff time.Time) ([]string, []CleanupError) {
	dir := filepath.Join(root, StateDir, "locks")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []CleanupError{{Path: dir, Error: err}}
	}

	var removed []string
	var errs []CleanupError
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lock" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, CleanupError{Path: path, Error: err})
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		lock := flock.New(path)
		ok, err := lock.TryLock()
		if err != nil {
			errs = append(errs, CleanupError{Path: path, Error: err})
			continue
		}
		if !ok {
			continue
		}
		err = os.Remove(path)
		_ = lock.Unlock()
		if err != nil {
			errs = append(errs, CleanupError{Path: path, Error: err})
			continue
		}
		removed = append(removed, path)
	}
	return removed, errs
}
