package scanner_test

import (
	"bytes"
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"vidingest/internal/config"
	"vidingest/internal/dedup"
	"vidingest/internal/faults"
	"vidingest/internal/hasher"
	"vidingest/internal/media"
	"vidingest/internal/remote"
	"vidingest/internal/scanner"
	"vidingest/internal/testsupport"
)

func localTarget(roots ...string) scanner.ScanTarget {
	rules := scanner.DefaultRules(runtime.GOOS)
	rules.Extensions = []string{".mp4", ".mov"}
	rules.ExcludeGlobs = []string{"drafts/*"}
	return scanner.ScanTarget{Name: "workstation", Kind: scanner.KindLocal, Roots: roots, Rules: rules}
}

func collect(t *testing.T, src scanner.Source) ([]media.VideoRecord, scanner.Summary, error) {
	t.Helper()
	var records []media.VideoRecord
	summary, err := src.Walk(context.Background(), func(rec media.VideoRecord) bool {
		records = append(records, rec)
		return true
	})
	return records, summary, err
}

func TestLocalSourceAppliesRules(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSeeded(t, filepath.Join(root, "a.mp4"), 4096, 1)
	testsupport.WriteSeeded(t, filepath.Join(root, "sub", "b.MOV"), 2048, 2)
	testsupport.WriteSeeded(t, filepath.Join(root, ".hidden.mp4"), 100, 3)
	testsupport.WriteSeeded(t, filepath.Join(root, "._a.mp4"), 100, 4)
	testsupport.WriteSeeded(t, filepath.Join(root, "drafts", "skip.mp4"), 100, 5)
	testsupport.WriteSeeded(t, filepath.Join(root, "@eaDir", "thumb.mp4"), 100, 6)
	testsupport.WriteSeeded(t, filepath.Join(root, "notes.txt"), 100, 7)
	testsupport.WriteBytes(t, filepath.Join(root, "empty.mp4"), nil)

	src := &scanner.LocalSource{Target: localTarget(root), Hasher: hasher.New(hasher.Options{SampleBytes: 512})}
	records, summary, err := collect(t, src)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(records) != 2 || summary.Records != 2 {
		t.Fatalf("records = %d (summary %d), want 2: %+v", len(records), summary.Records, records)
	}
	if summary.Excluded != 4 {
		t.Fatalf("excluded = %d, want 4", summary.Excluded)
	}
	if summary.Skipped != 0 {
		t.Fatalf("skipped = %d, diagnostics %v", summary.Skipped, summary.Diagnostics)
	}

	names := []string{records[0].Name(), records[1].Name()}
	slices.Sort(names)
	if !slices.Equal(names, []string{"a.mp4", "b.MOV"}) {
		t.Fatalf("names = %v", names)
	}
	for _, rec := range records {
		if rec.Host != "workstation" || !filepath.IsAbs(rec.Path) {
			t.Fatalf("unexpected record identity: %+v", rec)
		}
		if len(rec.SampleHash) != 64 || rec.FullHash != "" {
			t.Fatalf("unexpected hashes: %+v", rec)
		}
		if rec.RecordedTimeSource != media.SourceFileMtime || rec.RecordedTime == nil {
			t.Fatalf("expected mtime fallback, got %+v", rec)
		}
	}
}

func TestLocalSourceFullHashAndSidecar(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "trial.mp4")
	testsupport.WriteSeeded(t, path, 1000, 9)
	testsupport.WriteBytes(t, path+".json", []byte(`{"recorded_at":"2024-05-01T10:00:00Z"}`))

	src := &scanner.LocalSource{Target: localTarget(root), FullHash: true}
	records, _, err := collect(t, src)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if len(rec.FullHash) != 64 {
		t.Fatalf("expected full hash, got %q", rec.FullHash)
	}
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if rec.RecordedTimeSource != media.SourceSidecar || !rec.RecordedTime.Equal(want) {
		t.Fatalf("recorded time = %v (%s), want %v from sidecar", rec.RecordedTime, rec.RecordedTimeSource, want)
	}
}

func TestLocalSourceBrokenSymlinkIsDiagnostic(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSeeded(t, filepath.Join(root, "ok.mp4"), 100, 1)
	if err := os.Symlink(filepath.Join(root, "missing.mp4"), filepath.Join(root, "broken.mp4")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	records, summary, err := collect(t, &scanner.LocalSource{Target: localTarget(root)})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(records) != 1 || summary.Skipped != 1 {
		t.Fatalf("records=%d skipped=%d", len(records), summary.Skipped)
	}
	var scanErr *faults.ScanError
	if !errors.As(summary.Diagnostics[0], &scanErr) {
		t.Fatalf("expected ScanError, got %T %v", summary.Diagnostics[0], summary.Diagnostics[0])
	}
}

func TestLocalSourceMissingRootFailsTarget(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	_, summary, err := collect(t, &scanner.LocalSource{Target: localTarget(missing)})
	if err == nil {
		t.Fatal("expected error when every root is missing")
	}
	if faults.Kind(err) != faults.KindScan || summary.Records != 0 {
		t.Fatalf("err kind = %s, records = %d", faults.Kind(err), summary.Records)
	}
}

func TestLocalSourceStopsWhenConsumerStops(t *testing.T) {
	root := t.TempDir()
	for i := range 6 {
		testsupport.WriteSeeded(t, filepath.Join(root, string(rune('a'+i))+".mp4"), 100, byte(i+1))
	}
	src := &scanner.LocalSource{Target: localTarget(root), Workers: 2}
	count := 0
	summary, err := src.Walk(context.Background(), func(media.VideoRecord) bool {
		count++
		return false
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if count != 1 || summary.Records != 1 {
		t.Fatalf("count=%d records=%d, want 1", count, summary.Records)
	}
}

func TestLocalSourceCancelledContext(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSeeded(t, filepath.Join(root, "a.mp4"), 100, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &scanner.LocalSource{Target: localTarget(root)}
	_, err := src.Walk(ctx, func(media.VideoRecord) bool { return true })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestStreamIsSingleUse(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSeeded(t, filepath.Join(root, "a.mp4"), 100, 1)
	testsupport.WriteSeeded(t, filepath.Join(root, "b.mp4"), 100, 2)

	stream := scanner.NewStream(context.Background(), &scanner.LocalSource{Target: localTarget(root)})
	first := 0
	for range stream.Records() {
		first++
	}
	if first != 2 || stream.Summary().Records != 2 || stream.Err() != nil {
		t.Fatalf("first pass: %d records, summary %+v, err %v", first, stream.Summary(), stream.Err())
	}

	second := 0
	for range stream.Records() {
		second++
	}
	if second != 0 {
		t.Fatalf("second pass yielded %d records", second)
	}
	if !errors.Is(stream.Err(), scanner.ErrStreamConsumed) {
		t.Fatalf("Err = %v, want ErrStreamConsumed", stream.Err())
	}
}

func TestRescanningATreeYieldsTheSameUniqueSet(t *testing.T) {
	root := t.TempDir()
	testsupport.WriteSeeded(t, filepath.Join(root, "mouse1", "a.mp4"), 40_000, 1)
	testsupport.WriteSeeded(t, filepath.Join(root, "mouse1", "b.mp4"), 41_000, 2)
	testsupport.WriteSeeded(t, filepath.Join(root, "mouse2", "c.mp4"), 42_000, 3)
	testsupport.WriteSeeded(t, filepath.Join(root, "mouse2", "d.mov"), 43_000, 4)
	testsupport.WriteSeeded(t, filepath.Join(root, "backup", "a-copy.mp4"), 40_000, 1)

	scan := func() (map[string]int64, int) {
		src := &scanner.LocalSource{
			Target:  localTarget(root),
			Hasher:  hasher.New(hasher.Options{SampleBytes: 1024}),
			Workers: 3,
		}
		stream := scanner.NewStream(context.Background(), src)
		deduper := dedup.Collapse(stream.Records())
		if err := stream.Err(); err != nil {
			t.Fatalf("scan: %v", err)
		}
		hashes := make(map[string]int64, deduper.Len())
		for _, entry := range deduper.Entries() {
			hashes[entry.Hash()] = entry.Record.SizeBytes
		}
		return hashes, deduper.Discarded()
	}

	first, firstDiscarded := scan()
	second, secondDiscarded := scan()
	if len(first) != 4 || firstDiscarded != 1 {
		t.Fatalf("first scan: %d unique, %d discarded", len(first), firstDiscarded)
	}
	if !maps.Equal(first, second) || secondDiscarded != firstDiscarded {
		t.Fatalf("rescan changed the unique set: %v vs %v (discarded %d vs %d)", first, second, firstDiscarded, secondDiscarded)
	}
}

type fakeConn struct {
	command string
	lines   []string
	runErr  error
}

func (c *fakeConn) Run(_ context.Context, command string, onLine func(string) error) error {
	c.command = command
	for _, line := range c.lines {
		if err := onLine(line); err != nil {
			return err
		}
	}
	return c.runErr
}

func (c *fakeConn) Open(string) (hasher.File, error) { return nil, os.ErrNotExist }

func (c *fakeConn) Close() error { return nil }

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d fakeDialer) Dial(context.Context, remote.Endpoint) (remote.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func recordLine(t *testing.T, path string, hashByte string) string {
	t.Helper()
	var buf bytes.Buffer
	err := media.EncodeRecord(&buf, media.VideoRecord{
		Path:         path,
		Host:         "DESKTOP-01",
		SampleHash:   strings.Repeat(hashByte, 64),
		SizeBytes:    2048,
		LastModified: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func wslTarget() scanner.ScanTarget {
	return scanner.ScanTarget{
		Name:     "behavior-pc",
		Kind:     scanner.KindSSHWSL,
		Host:     "10.0.0.9",
		Platform: "windows",
		Roots:    []string{`D:\Recordings`},
		Rules:    scanner.Rules{ExcludeGlobs: []string{"*.tmp"}},
	}
}

func TestRemoteSourceTranslatesWSLRecords(t *testing.T) {
	conn := &fakeConn{lines: []string{
		recordLine(t, "/mnt/d/Recordings/mouse1/a.mp4", "a"),
		"",
		recordLine(t, "/mnt/d/Recordings/mouse2/b.mp4", "b"),
	}}
	src := &scanner.RemoteSource{Target: wslTarget(), Dialer: fakeDialer{conn: conn}, HashWorkers: 3}
	records, summary, err := collect(t, src)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(records) != 2 || summary.Records != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].Path != `D:\Recordings\mouse1\a.mp4` || records[0].Host != "behavior-pc" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
	for _, want := range []string{"wsl.exe -e vidingest scan --local --jsonl", "--platform linux", "--hash-workers 3", "--exclude-glob *.tmp", "/mnt/d/Recordings"} {
		if !strings.Contains(conn.command, want) {
			t.Fatalf("command %q missing %q", conn.command, want)
		}
	}
}

func TestRemoteSourceAbsorbsNotices(t *testing.T) {
	var buf bytes.Buffer
	notices := []media.ScanNotice{
		{Notice: media.NoticeSkipped, Path: "/mnt/d/Recordings/locked.mp4", ErrorKind: faults.KindScan, Error: "permission denied"},
		{Notice: media.NoticeSkipped, Path: "/mnt/d/Recordings/bad.mp4", ErrorKind: faults.KindHash, Error: "input/output error"},
		{Notice: media.NoticeExcluded, Count: 7},
	}
	for _, n := range notices {
		if err := media.EncodeNotice(&buf, n); err != nil {
			t.Fatalf("EncodeNotice: %v", err)
		}
	}
	lines := append([]string{
		recordLine(t, "/mnt/d/Recordings/a.mp4", "a"),
		recordLine(t, "/mnt/d/Recordings/copy-of-a.mp4", "a"),
	}, strings.Split(strings.TrimSpace(buf.String()), "\n")...)

	conn := &fakeConn{lines: lines}
	records, summary, err := collect(t, &scanner.RemoteSource{Target: wslTarget(), Dialer: fakeDialer{conn: conn}})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(records) != 2 || summary.Records != 2 {
		t.Fatalf("duplicates must reach the caller: records=%d", len(records))
	}
	if summary.Excluded != 7 || summary.Skipped != 2 || len(summary.Diagnostics) != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	var scanErr *faults.ScanError
	if !errors.As(summary.Diagnostics[0], &scanErr) || scanErr.Path != `D:\Recordings\locked.mp4` || scanErr.Host != "behavior-pc" {
		t.Fatalf("diagnostic = %v", summary.Diagnostics[0])
	}
	var hashErr *faults.HashError
	if !errors.As(summary.Diagnostics[1], &hashErr) || !strings.Contains(hashErr.Error(), "input/output error") {
		t.Fatalf("diagnostic = %v", summary.Diagnostics[1])
	}
	if !strings.Contains(conn.command, "--all") {
		t.Fatalf("command %q does not request every record", conn.command)
	}
}

func TestRemoteSourceMalformedLineKeepsEarlierRecords(t *testing.T) {
	conn := &fakeConn{lines: []string{
		recordLine(t, "/srv/rec/a.mp4", "c"),
		`{"path":"/srv/rec/b.mp4","sampleHash":"trunc`,
		recordLine(t, "/srv/rec/c.mp4", "d"),
	}}
	target := scanner.ScanTarget{Name: "rig-a", Kind: scanner.KindSSH, Host: "rig-a.lab", Roots: []string{"/srv/rec"}}
	records, _, err := collect(t, &scanner.RemoteSource{Target: target, Dialer: fakeDialer{conn: conn}})

	var remoteErr *faults.RemoteTargetError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected RemoteTargetError, got %v", err)
	}
	if !errors.Is(err, media.ErrMalformedRecord) || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should name the malformed line: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want the one decoded before the failure", len(records))
	}
}

func TestRemoteSourceFailures(t *testing.T) {
	target := scanner.ScanTarget{Name: "rig-a", Kind: scanner.KindSSH, Host: "rig-a.lab", Roots: []string{"/srv/rec"}}

	_, summary, err := collect(t, &scanner.RemoteSource{Target: target, Dialer: fakeDialer{err: errors.New("connection refused")}})
	if faults.Kind(err) != faults.KindRemoteTarget || summary.Records != 0 {
		t.Fatalf("dial failure: kind=%s records=%d err=%v", faults.Kind(err), summary.Records, err)
	}

	conn := &fakeConn{runErr: errors.New("remote command exited with status 127")}
	_, _, err = collect(t, &scanner.RemoteSource{Target: target, Dialer: fakeDialer{conn: conn}})
	if faults.Kind(err) != faults.KindRemoteTarget || !strings.Contains(err.Error(), "status 127") {
		t.Fatalf("exit failure: %v", err)
	}
}

func TestRemoteArgs(t *testing.T) {
	target := scanner.ScanTarget{
		Kind:          scanner.KindSSH,
		Platform:      "darwin",
		Roots:         []string{"/Volumes/Rec"},
		RemoteCommand: "/usr/local/bin/vidingest",
		Rules:         scanner.Rules{Extensions: []string{".mp4", ".mov"}},
	}
	got := scanner.RemoteArgs(target, scanner.ScanFlags{FullHash: true})
	want := []string{"/usr/local/bin/vidingest", "scan", "--local", "--jsonl", "--all", "--platform", "darwin",
		"--hash-workers", "4", "--skip-zero-byte=false", "--skip-hidden=false", "--skip-placeholders=false",
		"--full-hash", "--extensions", ".mp4,.mov", "--", "/Volumes/Rec"}
	if !slices.Equal(got, want) {
		t.Fatalf("RemoteArgs = %q, want %q", got, want)
	}

	target.Rules = scanner.DefaultRules("darwin")
	target.Rules.SkipHidden = false
	got = scanner.RemoteArgs(target, scanner.ScanFlags{})
	for _, flag := range []string{"--skip-zero-byte=true", "--skip-hidden=false", "--skip-placeholders=true"} {
		if !slices.Contains(got, flag) {
			t.Fatalf("RemoteArgs = %q, missing %s", got, flag)
		}
	}

	got = scanner.RemoteArgs(target, scanner.ScanFlags{HashWorkers: 2, SampleBytes: 4096})
	if !slices.Contains(got, "--sample-bytes") || !slices.Contains(got, "4096") || slices.Contains(got, "--full-hash") {
		t.Fatalf("RemoteArgs = %q", got)
	}
}

func TestSourceForDispatch(t *testing.T) {
	if src, err := scanner.SourceFor(scanner.ScanTarget{Kind: scanner.KindLocal}, scanner.Deps{}); err != nil {
		t.Fatalf("local: %v", err)
	} else if _, ok := src.(*scanner.LocalSource); !ok {
		t.Fatalf("local kind produced %T", src)
	}
	for _, kind := range []scanner.Kind{scanner.KindSSH, scanner.KindSSHWSL} {
		src, err := scanner.SourceFor(scanner.ScanTarget{Kind: kind}, scanner.Deps{})
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if _, ok := src.(*scanner.RemoteSource); !ok {
			t.Fatalf("%s produced %T", kind, src)
		}
	}
	_, err := scanner.SourceFor(scanner.ScanTarget{Name: "x", Kind: "ftp"}, scanner.Deps{})
	if !faults.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Scan.ExcludeGlobs = []string{"*.part"}
	cfg.Remote.ConnectTimeoutSeconds = 9
	cfg.Targets = append(cfg.Targets, config.Target{
		Name: "rig-a", Kind: config.KindSSH, Host: "rig-a.lab", Port: 2222, User: "lab",
		Roots: []string{"/srv/rec"}, IdentityFile: "/keys/id", KnownHostsFile: "/keys/known_hosts",
		Platform: "linux", Command: "vidingest", ExcludeGlobs: []string{"scratch/*"},
	})

	targets, err := scanner.FromConfig(cfg, []string{"RIG-A"})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if len(targets) != 1 || !targets[0].Remote() {
		t.Fatalf("targets = %+v", targets)
	}
	rig := targets[0]
	if !slices.Equal(rig.Rules.ExcludeGlobs, []string{"*.part", "scratch/*"}) {
		t.Fatalf("globs = %v", rig.Rules.ExcludeGlobs)
	}
	if len(cfg.Scan.ExcludeGlobs) != 1 {
		t.Fatalf("scan-wide globs mutated: %v", cfg.Scan.ExcludeGlobs)
	}
	ep := rig.Endpoint()
	if ep.Address() != "rig-a.lab:2222" || ep.Timeout != 9*time.Second || ep.IdentityFile != "/keys/id" {
		t.Fatalf("endpoint = %+v", ep)
	}

	if _, err := scanner.FromConfig(cfg, []string{"missing"}); !faults.IsFatal(err) {
		t.Fatalf("expected configuration error for unknown target, got %v", err)
	}
}
