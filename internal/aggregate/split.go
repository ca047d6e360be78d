package aggregate

import (
	"path/filepath"
	"strings"

	"vidingest/internal/media"
)

// Preview divides entries into what is already in managed storage and what
// still needs to be staged.
type Preview struct {
	InManaged    []media.UniqueVideoEntry
	NeedsStaging []media.UniqueVideoEntry
}

// SplitOptions controls Split.
type SplitOptions struct {
	ManagedRoot string
	// LocalHosts names the hosts whose paths share this machine's filesystem.
	// Only their records can be inside ManagedRoot.
	LocalHosts []string
	// Registered reports hashes already in the registry. Those entries count
	// as in managed storage.
	Registered func(hash string) bool
}

// Split classifies entries. An entry whose canonical record or any duplicate
// lives under the managed root is in managed storage; that record becomes
// the entry's canonical record so it is registered at its managed path.
func Split(entries []media.UniqueVideoEntry, opts SplitOptions) Preview {
	root := cleanRoot(opts.ManagedRoot)
	local := make(map[string]struct{}, len(opts.LocalHosts))
	for _, host := range opts.LocalHosts {
		local[host] = struct{}{}
	}
	inManaged := func(rec media.VideoRecord) bool {
		if root == "" {
			return false
		}
		if _, ok := local[rec.Host]; !ok {
			return false
		}
		return within(root, rec.Path)
	}

	var preview Preview
	for _, entry := range entries {
		switch {
		case inManaged(entry.Record):
			preview.InManaged = append(preview.InManaged, entry)
		case promoteManaged(&entry, inManaged):
			preview.InManaged = append(preview.InManaged, entry)
		case opts.Registered != nil && opts.Registered(entry.Hash()):
			preview.InManaged = append(preview.InManaged, entry)
		default:
			preview.NeedsStaging = append(preview.NeedsStaging, entry)
		}
	}
	return preview
}

func promoteManaged(entry *media.UniqueVideoEntry, inManaged func(media.VideoRecord) bool) bool {
	for i, dup := range entry.Duplicates {
		if !inManaged(dup) {
			continue
		}
		dups := make([]media.VideoRecord, 0, len(entry.Duplicates))
		dups = append(dups, entry.Record)
		dups = append(dups, entry.Duplicates[:i]...)
		dups = append(dups, entry.Duplicates[i+1:]...)
		entry.Record = dup
		entry.Duplicates = dups
		return true
	}
	return false
}

func cleanRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Clean(root)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
