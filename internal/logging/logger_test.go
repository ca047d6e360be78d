package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidingest/internal/config"
	"vidingest/internal/logging"
)

func TestConsoleFormatHeader(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := logging.WithTarget(logging.WithRunID(context.Background(), "0123456789abcdef"), "rig-a")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "aggregate")).
		Info("target scanned", logging.Int("records", 12), logging.String(logging.FieldPath, "/srv/video files"))

	out := buf.String()
	for _, want := range []string{
		"INFO",
		"[run 01234567 | rig-a] aggregate: target scanned",
		"records=12",
		`path="/srv/video files"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "run_id=") || strings.Contains(out, "component=") {
		t.Fatalf("header fields should not repeat as key/value pairs: %s", out)
	}
}

func TestDebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hash computed")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller location at debug level: %s", buf.String())
	}
}

func TestJSONFormatKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Warn("target unreachable", logging.String(logging.FieldTarget, "behavior-pc"))

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode json log: %v (%s)", err, buf.String())
	}
	if payload["level"] != "warn" || payload["msg"] != "target unreachable" || payload["target"] != "behavior-pc" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	ts, _ := payload["ts"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("ts %q is not RFC3339: %v", ts, err)
	}
}

func TestUnknownFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", Writer: &bytes.Buffer{}}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Logging.Level = "info"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("ingest started", logging.String(logging.FieldRunID, "run-1"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"ingest started"`) {
		t.Fatalf("log file missing record: %s", data)
	}
}

func TestOpenRunLog(t *testing.T) {
	dir := t.TempDir()
	var base bytes.Buffer
	baseLogger, err := logging.New(logging.Options{Format: "json", Writer: &base})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger, closeLog, err := logging.OpenRunLog(baseLogger, dir, "run-42", "info")
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	logger.Info("staged file")
	if err := closeLog(); err != nil {
		t.Fatalf("close run log: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, logging.RunLogDir, "run-42.log"))
	if err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(string(data), `"run_id":"run-42"`) {
		t.Fatalf("run log missing run id: %s", data)
	}
	if !strings.Contains(base.String(), "staged file") {
		t.Fatalf("base logger should still receive records: %s", base.String())
	}
}

func TestContextFieldsIgnoreEmpty(t *testing.T) {
	ctx := logging.WithTarget(logging.WithRunID(context.Background(), ""), "")
	if fields := logging.ContextFields(ctx); len(fields) != 0 {
		t.Fatalf("expected no fields, got %v", fields)
	}
}

func TestCleanupOldLogsKeepsActiveAndRecent(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-72 * time.Hour)
	write := func(name string, mtime time.Time) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
		return path
	}
	stale := write("run-a.log", old)
	active := write(logging.LogFileName, old)
	recent := write("run-b.log", time.Now())
	other := write("notes.txt", old)

	removed := logging.CleanupOldLogs(logging.NewNop(), 1, logging.RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{active}})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale log should be gone: %v", err)
	}
	for _, keep := range []string{active, recent, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
	if logging.CleanupOldLogs(logging.NewNop(), 0, logging.RetentionTarget{Dir: dir}) != 0 {
		t.Fatal("retention 0 must keep everything")
	}
}
