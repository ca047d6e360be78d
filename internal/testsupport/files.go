package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WriteFile writes size bytes of the seed-0 pattern to path. Equal sizes give
// identical content, which is how tests fabricate duplicates.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	WriteSeeded(t, path, size, 0)
}

// WriteSeeded writes size bytes (at least one) of a repeating pattern derived
// from seed. Distinct seeds never produce the same content.
func WriteSeeded(t testing.TB, path string, size int64, seed byte) {
	t.Helper()
	period := make([]byte, 7)
	for i := range period {
		period[i] = 0x42 + seed + byte(i)*seed
	}
	size = max(size, 1)
	data := bytes.Repeat(period, int(size/int64(len(period)))+1)
	WriteBytes(t, path, data[:size])
}

// WriteBytes writes data to path, creating parent directories.
func WriteBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// SetModTime sets both access and modification time of path to ts.
func SetModTime(t testing.TB, path string, ts time.Time) {
	t.Helper()
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("set times on %s: %v", path, err)
	}
}
