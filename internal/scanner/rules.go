package scanner

import (
	"io/fs"
	"path"
	"strings"

	"vidingest/internal/config"
)

// Rules decide which directories and files are considered. Extensions is an
// allow-list of lowercase suffixes including the dot; empty allows every file.
type Rules struct {
	Extensions            []string
	SkipZeroByte          bool
	SkipHidden            bool
	SkipCloudPlaceholders bool
	ExcludeGlobs          []string
	SystemDirs            []string
	PlaceholderPrefixes   []string
	PlaceholderSuffixes   []string
}

var systemDirs = []string{
	"$RECYCLE.BIN",
	"System Volume Information",
	".Spotlight-V100",
	".Trashes",
	".fseventsd",
	".DocumentRevisions-V100",
	".TemporaryItems",
	"@eaDir",
	"lost+found",
	".dropbox.cache",
}

// DefaultRules returns the exclusions every target starts from.
func DefaultRules(platform string) Rules {
	r := Rules{
		SkipZeroByte:          true,
		SkipHidden:            true,
		SkipCloudPlaceholders: true,
		SystemDirs:            append([]string(nil), systemDirs...),
		PlaceholderPrefixes:   []string{"._", "~$", ".~"},
		PlaceholderSuffixes:   []string{".icloud", ".partial", ".crdownload", ".download"},
	}
	if strings.EqualFold(platform, "windows") {
		r.SystemDirs = append(r.SystemDirs, "Windows", "$WinREAgent")
	}
	return r
}

// RulesFromConfig applies [scan] settings over DefaultRules.
func RulesFromConfig(scan config.Scan, platform string) Rules {
	r := DefaultRules(platform)
	r.Extensions = append([]string(nil), scan.Extensions...)
	r.SkipZeroByte = scan.SkipZeroByte
	r.SkipHidden = scan.SkipHidden
	r.SkipCloudPlaceholders = scan.SkipCloudPlaceholders
	r.ExcludeGlobs = append([]string(nil), scan.ExcludeGlobs...)
	return r
}

// AllowsExtension reports whether name carries an allowed extension.
func (r Rules) AllowsExtension(name string) bool {
	if len(r.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(name))
	for _, allowed := range r.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory (by base name and slash-separated path
// relative to the scan root) is excluded.
func (r Rules) SkipDir(name, rel string) bool {
	if r.SkipHidden && isHidden(name) {
		return true
	}
	for _, dir := range r.SystemDirs {
		if strings.EqualFold(name, dir) {
			return true
		}
	}
	return r.matchesGlob(name, rel)
}

// SkipFile reports whether a file is excluded and a short reason.
func (r Rules) SkipFile(name, rel string, size int64) (bool, string) {
	if r.SkipHidden && isHidden(name) && !r.isPlaceholderName(name) {
		return true, "hidden"
	}
	if r.SkipCloudPlaceholders && r.isPlaceholderName(name) {
		return true, "cloud placeholder"
	}
	if r.SkipZeroByte && size == 0 {
		return true, "zero-byte"
	}
	if r.matchesGlob(name, rel) {
		return true, "excluded by glob"
	}
	return false, ""
}

func (r Rules) isPlaceholderName(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range r.PlaceholderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, suffix := range r.PlaceholderSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// matchesGlob tests both the base name and the relative path so "*.tmp"
// and "drafts/*" both work.
func (r Rules) matchesGlob(name, rel string) bool {
	for _, pattern := range r.ExcludeGlobs {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
		if rel != "" {
			if ok, _ := path.Match(pattern, rel); ok {
				return true
			}
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// regularSize returns the size of a regular file entry.
func regularSize(info fs.FileInfo) (int64, bool) {
	if info == nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}
