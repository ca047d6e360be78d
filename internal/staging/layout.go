package staging

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"vidingest/internal/media"
	"vidingest/internal/textutil"
)

// DefaultUnknownSubject names the subject directory for unmatched paths.
const DefaultUnknownSubject = "unsorted"

// hashPrefixLen is how many hash characters prefix a staged file name.
const hashPrefixLen = 12

// Layout maps records to destination paths under Root.
type Layout struct {
	Root    string
	subject *regexp.Regexp
	group   int
	unknown string
}

// NewLayout compiles pattern. The named group "subject" is used when present,
// otherwise the first capture group. An empty pattern files everything under
// unknown.
func NewLayout(root, pattern, unknown string) (Layout, error) {
	layout := Layout{Root: filepath.Clean(root), unknown: textutil.SanitizeToken(unknown)}
	if strings.TrimSpace(unknown) == "" {
		layout.unknown = DefaultUnknownSubject
	}
	if strings.TrimSpace(pattern) == "" {
		return layout, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Layout{}, fmt.Errorf("compile subject pattern: %w", err)
	}
	if re.NumSubexp() == 0 {
		return Layout{}, fmt.Errorf("subject pattern %q has no capture group", pattern)
	}
	layout.subject = re
	layout.group = 1
	if idx := re.SubexpIndex("subject"); idx > 0 {
		layout.group = idx
	}
	return layout, nil
}

// Subject extracts the subject token from a source path.
func (l Layout) Subject(sourcePath string) string {
	if l.subject == nil {
		return l.unknown
	}
	match := l.subject.FindStringSubmatch(strings.ReplaceAll(sourcePath, `\`, "/"))
	if match == nil || strings.TrimSpace(match[l.group]) == "" {
		return l.unknown
	}
	return textutil.SanitizeToken(match[l.group])
}

// Destination returns the staged path for rec.
func (l Layout) Destination(rec media.VideoRecord) string {
	day := rec.CaptureTime().UTC().Format("2006-01-02")
	hash := rec.SampleHash
	if len(hash) > hashPrefixLen {
		hash = hash[:hashPrefixLen]
	}
	name := textutil.SanitizeFileName(rec.Name())
	if name == "" {
		name = "video"
	}
	return filepath.Join(l.Root, l.Subject(rec.Path), day, hash+"_"+name)
}
