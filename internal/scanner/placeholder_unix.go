//go:build unix

package scanner

import "golang.org/x/sys/unix"

// minPlaceholderSize keeps small files out of the allocation check;
// inline-data filesystems report zero blocks for them.
const minPlaceholderSize = 64 << 10

// isAllocationPlaceholder reports a file that claims a size but has no
// allocated blocks, which is how dehydrated cloud-sync files appear.
func isAllocationPlaceholder(path string, size int64) bool {
	if size < minPlaceholderSize {
		return false
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return st.Blocks == 0
}
