package media

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const maxLineBytes = 1 << 20

// ErrMalformedRecord marks a JSONL line that could not be decoded into a VideoRecord.
var ErrMalformedRecord = errors.New("malformed video record")

// EncodeRecord writes rec as a single JSON line.
func EncodeRecord(w io.Writer, rec VideoRecord) error {
	payload, err := json.Marshal(normalizeTimes(rec))
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.Path, err)
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}

// DecodeRecord parses one JSONL line. Blank lines are rejected.
func DecodeRecord(line []byte) (VideoRecord, error) {
	var rec VideoRecord
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return rec, fmt.Errorf("%w: empty line", ErrMalformedRecord)
	}
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if strings.TrimSpace(rec.Path) == "" {
		return rec, fmt.Errorf("%w: missing path", ErrMalformedRecord)
	}
	if !isHexDigest(rec.SampleHash) {
		return rec, fmt.Errorf("%w: invalid sampleHash %q", ErrMalformedRecord, rec.SampleHash)
	}
	if rec.FullHash != "" && !isHexDigest(rec.FullHash) {
		return rec, fmt.Errorf("%w: invalid fullHash %q", ErrMalformedRecord, rec.FullHash)
	}
	if rec.SizeBytes < 0 {
		return rec, fmt.Errorf("%w: negative sizeBytes", ErrMalformedRecord)
	}
	if rec.RecordedTimeSource != "" && !rec.RecordedTimeSource.Valid() {
		return rec, fmt.Errorf("%w: unknown recordedTimeSource %q", ErrMalformedRecord, rec.RecordedTimeSource)
	}
	return normalizeTimes(rec), nil
}

// ReadRecords decodes every line of r, stopping at the first malformed line or
// when fn returns an error. Scan notices are skipped.
func ReadRecords(r io.Reader, fn func(VideoRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if _, ok, _ := DecodeNotice(line); ok {
			continue
		}
		rec, err := DecodeRecord(line)
		if err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	return nil
}

// WriteRecords encodes each canonical entry record to w.
func WriteRecords(w io.Writer, entries []UniqueVideoEntry) error {
	bw := bufio.NewWriter(w)
	for _, entry := range entries {
		if err := EncodeRecord(bw, entry.Record); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func normalizeTimes(rec VideoRecord) VideoRecord {
	rec.LastModified = rec.LastModified.UTC().Truncate(time.Second)
	if rec.RecordedTime != nil {
		t := rec.RecordedTime.UTC().Truncate(time.Second)
		rec.RecordedTime = &t
	}
	return rec
}

func isHexDigest(value string) bool {
	if len(value) != 64 {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
