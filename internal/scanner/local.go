package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"vidingest/internal/faults"
	"vidingest/internal/hasher"
	"vidingest/internal/logging"
	"vidingest/internal/media"
	"vidingest/internal/recordtime"
)

// DefaultHashWorkers bounds concurrent hashes when Workers is unset.
const DefaultHashWorkers = 4

// LocalSource walks the roots of a target on this machine.
type LocalSource struct {
	Target   ScanTarget
	Hasher   *hasher.Hasher
	Resolver *recordtime.Resolver
	// Workers bounds concurrent file hashes.
	Workers int
	// FullHash also computes the full-content hash of every file.
	FullHash bool
	// Progress, when set, observes every record before it is yielded.
	Progress func(media.VideoRecord)
	Logger   *slog.Logger
}

type walkResult struct {
	record   media.VideoRecord
	err      error
	excluded bool
}

// Walk discovers, filters and hashes files. Hashing runs on a bounded pool;
// yield is always called on the caller's goroutine. Cancellation stops the
// walk between files; hashes already running complete and are yielded.
func (s *LocalSource) Walk(ctx context.Context, yield func(media.VideoRecord) bool) (Summary, error) {
	summary := Summary{Target: s.Target.Name}
	logger := logging.NewComponentLogger(s.Logger, "scanner")
	if len(s.Target.Roots) == 0 {
		return summary, faults.Configf("targets.roots", "target %s has no roots", s.Target.Name)
	}

	h := s.Hasher
	if h == nil {
		h = hasher.Default()
	}
	resolver := s.Resolver
	if resolver == nil {
		resolver = recordtime.NewResolver()
	}
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultHashWorkers
	}

	walkCtx, stopWalk := context.WithCancel(ctx)
	defer stopWalk()
	// Hashes started before cancellation finish with their own context.
	hashCtx := context.WithoutCancel(ctx)

	results := make(chan walkResult, workers)
	var rootErrs []error
	go func() {
		defer close(results)
		var g errgroup.Group
		g.SetLimit(workers)
		for _, root := range s.Target.Roots {
			if walkCtx.Err() != nil {
				break
			}
			if err := s.walkRoot(walkCtx, hashCtx, root, h, resolver, &g, results); err != nil {
				rootErrs = append(rootErrs, err)
				results <- walkResult{err: err}
			}
		}
		_ = g.Wait()
	}()

	stopped := false
	for res := range results {
		switch {
		case res.excluded:
			summary.Excluded++
		case res.err != nil:
			summary.skip(res.err)
			logging.WarnWithContext(logger, "path skipped", "scan_path_skipped",
				logging.String(logging.FieldTarget, s.Target.Name),
				logging.String("error_kind", faults.Kind(res.err)),
				logging.Error(res.err),
				logging.String(logging.FieldErrorHint, "check permissions and that the file still exists"),
				logging.String(logging.FieldImpact, "file not ingested this run"),
			)
		case stopped:
		default:
			summary.Records++
			if s.Progress != nil {
				s.Progress(res.record)
			}
			if !yield(res.record) {
				stopped = true
				stopWalk()
			}
		}
	}

	// rootErrs is only written by the walker goroutine, which has exited.
	if len(rootErrs) == len(s.Target.Roots) && summary.Records == 0 {
		return summary, errors.Join(rootErrs...)
	}
	if err := ctx.Err(); err != nil && !stopped {
		return summary, err
	}
	return summary, nil
}

func (s *LocalSource) walkRoot(
	walkCtx, hashCtx context.Context,
	root string,
	h *hasher.Hasher,
	resolver *recordtime.Resolver,
	g *errgroup.Group,
	results chan<- walkResult,
) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return &faults.ScanError{Host: s.Target.Name, Path: root, Err: err}
	}
	if lst, err := os.Lstat(absRoot); err == nil && lst.Mode()&fs.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
			absRoot = resolved
		}
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return &faults.ScanError{Host: s.Target.Name, Path: absRoot, Err: err}
	}
	if !info.IsDir() {
		return &faults.ScanError{Host: s.Target.Name, Path: absRoot, Err: fmt.Errorf("root is not a directory")}
	}

	rules := s.Target.Rules
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkCtx.Err() != nil {
			return fs.SkipAll
		}
		if walkErr != nil {
			results <- walkResult{err: &faults.ScanError{Host: s.Target.Name, Path: path, Err: walkErr}}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(absRoot, path)
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if path != absRoot && rules.SkipDir(d.Name(), rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !rules.AllowsExtension(d.Name()) {
			return nil
		}

		var fi fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			// Symlinked files are followed; symlinked directories are not.
			fi, err = os.Stat(path)
			if err != nil {
				results <- walkResult{err: &faults.ScanError{Host: s.Target.Name, Path: path, Err: fmt.Errorf("broken symlink: %w", err)}}
				return nil
			}
		} else {
			fi, err = d.Info()
			if err != nil {
				results <- walkResult{err: &faults.ScanError{Host: s.Target.Name, Path: path, Err: err}}
				return nil
			}
		}
		size, ok := regularSize(fi)
		if !ok {
			return nil
		}
		if skip, _ := rules.SkipFile(d.Name(), rel, size); skip {
			results <- walkResult{excluded: true}
			return nil
		}
		if rules.SkipCloudPlaceholders && isAllocationPlaceholder(path, size) {
			results <- walkResult{excluded: true}
			return nil
		}

		g.Go(func() error {
			results <- s.hashFile(hashCtx, h, resolver, path, fi)
			return nil
		})
		return nil
	})
}

func (s *LocalSource) hashFile(ctx context.Context, h *hasher.Hasher, resolver *recordtime.Resolver, path string, info fs.FileInfo) walkResult {
	digest, err := h.Compute(path, s.FullHash)
	if err != nil {
		return walkResult{err: err}
	}
	rec := media.VideoRecord{
		Path:         path,
		Host:         s.Target.Name,
		SampleHash:   digest.Sample,
		FullHash:     digest.Full,
		SizeBytes:    digest.Size,
		LastModified: info.ModTime().UTC(),
	}
	recordtime.Apply(&rec, resolver.Resolve(ctx, path, info))
	return walkResult{record: rec}
}
