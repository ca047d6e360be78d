package media_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"vidingest/internal/media"
)

func TestNoticeLinesRoundTripBesideRecords(t *testing.T) {
	var buf bytes.Buffer
	rec := media.VideoRecord{Path: "/rec/a.mp4", Host: "rig", SampleHash: sampleHash, SizeBytes: 10}
	if err := media.EncodeRecord(&buf, rec); err != nil {
		t.Fatalf("EncodeRecord: %v", err)
	}
	if err := media.EncodeNotice(&buf, media.ScanNotice{Notice: media.NoticeSkipped, Path: "/rec/b.mp4", ErrorKind: "hash", Error: "input/output error"}); err != nil {
		t.Fatalf("EncodeNotice: %v", err)
	}
	if err := media.EncodeNotice(&buf, media.ScanNotice{Notice: media.NoticeExcluded, Count: 3}); err != nil {
		t.Fatalf("EncodeNotice: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", lines)
	}
	if _, ok, err := media.DecodeNotice([]byte(lines[0])); ok || err != nil {
		t.Fatalf("record line decoded as notice: ok=%v err=%v", ok, err)
	}
	skipped, ok, err := media.DecodeNotice([]byte(lines[1]))
	if !ok || err != nil || skipped.Path != "/rec/b.mp4" || skipped.ErrorKind != "hash" {
		t.Fatalf("skipped notice = %+v ok=%v err=%v", skipped, ok, err)
	}
	excluded, ok, err := media.DecodeNotice([]byte(lines[2]))
	if !ok || err != nil || excluded.Count != 3 {
		t.Fatalf("excluded notice = %+v ok=%v err=%v", excluded, ok, err)
	}

	var records int
	if err := media.ReadRecords(&buf, func(media.VideoRecord) error { records++; return nil }); err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	if records != 1 {
		t.Fatalf("ReadRecords returned %d records, want 1", records)
	}
}

func TestDecodeNoticeRejectsUnknownKinds(t *testing.T) {
	cases := map[string]string{
		"unknown":      `{"notice":"moved","path":"/a.mp4"}`,
		"missing path": `{"notice":"skipped","error":"denied"}`,
		"negative":     `{"notice":"excluded","count":-1}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok, err := media.DecodeNotice([]byte(line))
			if !ok || !errors.Is(err, media.ErrMalformedRecord) {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
		})
	}
}
