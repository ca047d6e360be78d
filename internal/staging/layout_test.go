package staging_test

import (
	"path/filepath"
	"testing"
	"time"

	"vidingest/internal/media"
	"vidingest/internal/staging"
)

func TestLayoutSubject(t *testing.T) {
	layout, err := staging.NewLayout("/managed", `(?P<subject>mouse\d+)`, "")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	tests := []struct {
		path string
		want string
	}{
		{"/data/mouse42/day1/a.mp4", "mouse42"},
		{`C:\rigs\mouse7\a.mp4`, "mouse7"},
		{"/data/rat1/a.mp4", staging.DefaultUnknownSubject},
	}
	for _, tt := range tests {
		if got := layout.Subject(tt.path); got != tt.want {
			t.Fatalf("Subject(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestLayoutUsesFirstGroupWithoutName(t *testing.T) {
	layout, err := staging.NewLayout("/managed", `/subjects/([^/]+)/`, "misc")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	if got := layout.Subject("/subjects/m9/a.mp4"); got != "m9" {
		t.Fatalf("Subject = %q", got)
	}
	if got := layout.Subject("/other/a.mp4"); got != "misc" {
		t.Fatalf("unknown subject = %q", got)
	}
}

func TestNewLayoutRejectsPatternWithoutGroup(t *testing.T) {
	if _, err := staging.NewLayout("/managed", `mouse\d+`, ""); err == nil {
		t.Fatal("expected error for pattern without capture group")
	}
	if _, err := staging.NewLayout("/managed", `(`, ""); err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestLayoutDestinationUsesRecordedTime(t *testing.T) {
	layout, err := staging.NewLayout("/managed", "", "")
	if err != nil {
		t.Fatalf("NewLayout: %v", err)
	}
	recorded := time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)
	rec := media.VideoRecord{
		Path:         `D:\videos\session.MP4`,
		SampleHash:   "abcdef0123456789abcdef",
		LastModified: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		RecordedTime: &recorded,
	}
	want := filepath.Join("/managed", staging.DefaultUnknownSubject, "2024-12-31", "abcdef012345_session.MP4")
	if got := layout.Destination(rec); got != want {
		t.Fatalf("Destination = %q, want %q", got, want)
	}
}
