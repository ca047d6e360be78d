package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vidingest/internal/faults"
	"vidingest/internal/fileutil"
	"vidingest/internal/hasher"
	"vidingest/internal/logging"
	"vidingest/internal/media"
)

// DefaultWorkers bounds concurrent copies when Workers is unset.
const DefaultWorkers = 2

// Options configures a Stager.
type Options struct {
	Layout      Layout
	Opener      SourceOpener
	Hasher      *hasher.Hasher
	Workers     int
	LockTimeout time.Duration
	Logger      *slog.Logger
	// WrapWriter wraps the destination writer of every copy. Tests use it to
	// inject corruption.
	WrapWriter func(io.Writer) io.Writer
}

// Stager copies entries into managed storage.
type Stager struct {
	layout      Layout
	opener      SourceOpener
	hasher      *hasher.Hasher
	workers     int
	lockTimeout time.Duration
	logger      *slog.Logger
	wrap        func(io.Writer) io.Writer
}

// New builds a Stager.
func New(opts Options) *Stager {
	s := &Stager{
		layout:      opts.Layout,
		opener:      opts.Opener,
		hasher:      opts.Hasher,
		workers:     opts.Workers,
		lockTimeout: opts.LockTimeout,
		logger:      logging.NewComponentLogger(opts.Logger, "staging"),
		wrap:        opts.WrapWriter,
	}
	if s.opener == nil {
		s.opener = LocalOpener{}
	}
	if s.hasher == nil {
		s.hasher = hasher.Default()
	}
	if s.workers <= 0 {
		s.workers = DefaultWorkers
	}
	return s
}

// Layout returns the destination layout.
func (s *Stager) Layout() Layout { return s.layout }

// Stage copies one entry and verifies the copy. It never returns an error:
// failures are recorded on the manifest entry.
func (s *Stager) Stage(ctx context.Context, entry media.UniqueVideoEntry) media.StagingManifestEntry {
	rec := entry.Record
	dest := s.layout.Destination(rec)
	result := media.StagingManifestEntry{Entry: entry, Destination: dest, Status: media.StagingPending}
	logger := logging.WithContext(ctx, s.logger).
		With(logging.Location(rec.Host, rec.Path)...).
		With(logging.String(logging.FieldHash, rec.SampleHash))

	copied, full, err := s.stage(ctx, rec, dest, logger)
	if err != nil {
		result.Status = media.StagingFailed
		result.Err = err
		result.Error = err.Error()
		logging.ErrorWithContext(logger, "staging failed", "staging_failed",
			logging.String("destination", dest),
			logging.String("error_kind", faults.Kind(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "source is untouched; rerun ingest to retry"),
		)
		return result
	}
	result.Status = media.StagingVerified
	result.Copied = copied
	result.FullHash = full
	logger.Info("staged",
		logging.String("destination", dest),
		logging.Bool("copied", copied),
		logging.String(logging.FieldEventType, "staging_verified"),
	)
	return result
}

func (s *Stager) stage(ctx context.Context, rec media.VideoRecord, dest string, logger *slog.Logger) (bool, string, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, "", fmt.Errorf("create destination directory: %w", err)
	}
	unlock, err := lockDestination(ctx, s.layout.Root, dest, s.lockTimeout)
	if err != nil {
		return false, "", err
	}
	defer unlock()

	if full, ok := s.alreadyStaged(rec, dest, logger); ok {
		return false, full, nil
	}

	src, err := s.opener.Open(ctx, rec)
	if err != nil {
		return false, "", fmt.Errorf("open source %s: %w", rec.Location(), err)
	}
	defer src.Close()

	res, err := fileutil.CopyAtomic(dest, src, 0o644, s.wrap)
	if err != nil {
		return false, "", fmt.Errorf("copy %s: %w", rec.Location(), err)
	}
	if err := s.verify(rec, dest, res.SourceSum); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logging.WarnWithContext(logger, "could not remove unverified copy", "staging_cleanup_failed",
				logging.String("destination", dest),
				logging.Error(rmErr),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "a corrupt copy remains in managed storage"),
			)
		}
		return false, "", err
	}
	if !rec.LastModified.IsZero() {
		_ = os.Chtimes(dest, rec.LastModified, rec.LastModified)
	}
	return true, res.SourceSum, nil
}

// alreadyStaged reports whether dest already holds the record's content.
func (s *Stager) alreadyStaged(rec media.VideoRecord, dest string, logger *slog.Logger) (string, bool) {
	exists, err := fileutil.Exists(dest)
	if err != nil || !exists {
		return "", false
	}
	digest, err := s.hasher.Compute(dest, true)
	if err != nil {
		return "", false
	}
	if digest.Sample == rec.SampleHash && (rec.FullHash == "" || digest.Full == rec.FullHash) {
		return digest.Full, true
	}
	logging.WarnWithContext(logger, "destination exists with different content; replacing", "staging_replace",
		logging.String("destination", dest),
		logging.String(logging.FieldImpact, "previous copy will be overwritten"),
	)
	return "", false
}

// verify re-hashes dest and compares it with the scanned record and with the
// bytes read from the source during the copy.
func (s *Stager) verify(rec media.VideoRecord, dest, sourceSum string) error {
	digest, err := s.hasher.Compute(dest, true)
	if err != nil {
		return err
	}
	mismatch := func(expected, actual string) error {
		return &faults.StagingVerificationError{
			Source:      rec.Location(),
			Destination: dest,
			Expected:    expected,
			Actual:      actual,
		}
	}
	switch {
	case digest.Sample != rec.SampleHash:
		return mismatch(rec.SampleHash, digest.Sample)
	case digest.Full != sourceSum:
		return mismatch(sourceSum, digest.Full)
	case rec.FullHash != "" && rec.FullHash != sourceSum:
		return mismatch(rec.FullHash, sourceSum)
	}
	return nil
}

// StageAll stages entries on a bounded pool. The manifest preserves the input
// order. Entries not started before ctx is cancelled are marked failed.
func (s *Stager) StageAll(ctx context.Context, entries []media.UniqueVideoEntry) []media.StagingManifestEntry {
	out := make([]media.StagingManifestEntry, len(entries))
	sem := semaphore.NewWeighted(int64(s.workers))
	sampler := logging.NewProgressSampler(10)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)

	for i, entry := range entries {
		if err := sem.Acquire(ctx, 1); err != nil {
			out[i] = media.StagingManifestEntry{
				Entry:       entry,
				Destination: s.layout.Destination(entry.Record),
				Status:      media.StagingFailed,
				Err:         err,
				Error:       err.Error(),
			}
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			out[i] = s.Stage(ctx, entry)

			mu.Lock()
			done++
			if sampler.ShouldLog(done, len(entries)) {
				s.logger.Info("staging progress",
					logging.Int("done", done),
					logging.Int("total", len(entries)),
					logging.String(logging.FieldEventType, "staging_progress"),
				)
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
