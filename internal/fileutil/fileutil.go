package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PartialPrefix marks temporary files written next to their destination
// while a copy is in flight.
const PartialPrefix = ".vidingest-partial-"

// CopyResult describes a completed atomic copy.
type CopyResult struct {
	Written int64
	// SourceSum is the SHA-256 of every byte read from the source.
	SourceSum string
}

// CopyAtomic streams src into a temporary sibling of dst, fsyncs it and
// renames it into place, so dst is either absent or complete. wrap, when set,
// wraps the destination writer. The temporary file is removed on failure.
func CopyAtomic(dst string, src io.Reader, mode os.FileMode, wrap func(io.Writer) io.Writer) (CopyResult, error) {
	dir := filepath.Dir(dst)
	tmp, err := os.CreateTemp(dir, PartialPrefix+"*")
	if err != nil {
		return CopyResult{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	srcHasher := sha256.New()
	var out io.Writer = tmp
	if wrap != nil {
		out = wrap(out)
	}

	written, err := io.Copy(out, io.TeeReader(src, srcHasher))
	if err != nil {
		return CopyResult{}, fmt.Errorf("copy: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return CopyResult{}, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return CopyResult{}, fmt.Errorf("chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return CopyResult{}, fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return CopyResult{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	syncDir(dir)

	return CopyResult{Written: written, SourceSum: hex.EncodeToString(srcHasher.Sum(nil))}, nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// IsPartial reports whether name is a temporary file left by CopyAtomic.
func IsPartial(name string) bool {
	return strings.HasPrefix(filepath.Base(name), PartialPrefix)
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}
