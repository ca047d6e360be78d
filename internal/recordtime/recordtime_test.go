package recordtime_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vidingest/internal/media"
	"vidingest/internal/media/ffprobe"
	"vidingest/internal/recordtime"
)

func box(kind string, payload []byte) []byte {
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(8+len(payload)))
	copy(out[4:8], kind)
	return append(out, payload...)
}

func mvhdV0(created time.Time) []byte {
	payload := make([]byte, 100)
	secs := uint32(created.Sub(time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)) / time.Second)
	binary.BigEndian.PutUint32(payload[4:8], secs)
	return box("mvhd", payload)
}

func mvhdV1(created time.Time) []byte {
	payload := make([]byte, 112)
	payload[0] = 1
	secs := uint64(created.Sub(time.Date(1904, 1, 1, 0, 0, 0, 0, time.UTC)) / time.Second)
	binary.BigEndian.PutUint64(payload[4:12], secs)
	return box("mvhd", payload)
}

func mp4With(mvhd []byte) []byte {
	var buf bytes.Buffer
	buf.Write(box("ftyp", []byte("isom\x00\x00\x02\x00")))
	buf.Write(box("free", make([]byte, 32)))
	buf.Write(box("moov", append(box("udta", []byte("xx")), mvhd...)))
	buf.Write(box("mdat", make([]byte, 64)))
	return buf.Bytes()
}

func TestMovieCreationTimeVersions(t *testing.T) {
	created := time.Date(2023, 7, 14, 12, 30, 0, 0, time.UTC)
	for name, data := range map[string][]byte{
		"v0": mp4With(mvhdV0(created)),
		"v1": mp4With(mvhdV1(created)),
	} {
		t.Run(name, func(t *testing.T) {
			got, err := recordtime.MovieCreationTime(bytes.NewReader(data), int64(len(data)))
			if err != nil {
				t.Fatalf("MovieCreationTime: %v", err)
			}
			if !got.Equal(created) {
				t.Fatalf("got %v, want %v", got, created)
			}
		})
	}
}

func TestMovieCreationTimeRejectsMissingOrZeroHeader(t *testing.T) {
	noMoov := box("ftyp", []byte("isom"))
	if _, err := recordtime.MovieCreationTime(bytes.NewReader(noMoov), int64(len(noMoov))); !errors.Is(err, recordtime.ErrNoMovieHeader) {
		t.Fatalf("expected ErrNoMovieHeader, got %v", err)
	}
	zero := mp4With(box("mvhd", make([]byte, 100)))
	if _, err := recordtime.MovieCreationTime(bytes.NewReader(zero), int64(len(zero))); !errors.Is(err, recordtime.ErrNoMovieHeader) {
		t.Fatalf("expected ErrNoMovieHeader for zero timestamp, got %v", err)
	}
	garbage := []byte("this is not an mp4 file at all")
	if _, err := recordtime.MovieCreationTime(bytes.NewReader(garbage), int64(len(garbage))); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func writeFile(t *testing.T, path string, data []byte, mtime time.Time) os.FileInfo {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	return info
}

func TestResolvePriority(t *testing.T) {
	dir := t.TempDir()
	mtime := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	container := time.Date(2023, 1, 10, 8, 0, 0, 0, time.UTC)
	sidecarTime := time.Date(2022, 5, 5, 5, 5, 5, 0, time.UTC)

	withSidecar := filepath.Join(dir, "a.mp4")
	infoA := writeFile(t, withSidecar, mp4With(mvhdV0(container)), mtime)
	if err := os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"recorded_at":"2022-05-05T05:05:05Z"}`), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	containerOnly := filepath.Join(dir, "b.mov")
	infoB := writeFile(t, containerOnly, mp4With(mvhdV0(container)), mtime)
	plain := filepath.Join(dir, "c.avi")
	infoC := writeFile(t, plain, []byte("riff"), mtime)

	r := recordtime.NewResolver()
	ctx := context.Background()
	cases := []struct {
		path   string
		info   os.FileInfo
		want   time.Time
		source media.RecordedTimeSource
	}{
		{withSidecar, infoA, sidecarTime, media.SourceSidecar},
		{containerOnly, infoB, container, media.SourceContainer},
		{plain, infoC, mtime, media.SourceFileMtime},
	}
	for _, tc := range cases {
		got := r.Resolve(ctx, tc.path, tc.info)
		if got.Source != tc.source || !got.Time.Equal(tc.want) {
			t.Fatalf("%s: got %v/%s, want %v/%s", filepath.Base(tc.path), got.Time, got.Source, tc.want, tc.source)
		}
	}
}

func TestResolveUsesProbeWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mkv")
	info := writeFile(t, path, []byte("matroska"), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	probed := time.Date(2021, 9, 9, 9, 0, 0, 0, time.UTC)

	var calls int
	r := recordtime.NewResolver(
		recordtime.WithFFprobe("ffprobe"),
		recordtime.WithProbe(func(_ context.Context, binary, p string) (ffprobe.Result, error) {
			calls++
			if binary != "ffprobe" || p != path {
				t.Fatalf("unexpected probe call %s %s", binary, p)
			}
			return ffprobe.Result{Format: ffprobe.Format{Tags: map[string]string{"creation_time": probed.Format(time.RFC3339)}}}, nil
		}),
	)
	got := r.Resolve(context.Background(), path, info)
	if calls != 1 || got.Source != media.SourceContainer || !got.Time.Equal(probed) {
		t.Fatalf("unexpected result %+v after %d calls", got, calls)
	}
}

func TestApplySetsRecordFields(t *testing.T) {
	var rec media.VideoRecord
	recordtime.Apply(&rec, recordtime.Result{})
	if rec.RecordedTime != nil {
		t.Fatal("zero result must not set recorded time")
	}
	when := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recordtime.Apply(&rec, recordtime.Result{Time: when, Source: media.SourceSidecar})
	if rec.RecordedTime == nil || !rec.RecordedTime.Equal(when) || rec.RecordedTimeSource != media.SourceSidecar {
		t.Fatalf("unexpected record %+v", rec)
	}
}
