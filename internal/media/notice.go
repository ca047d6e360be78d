package media

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Notice kinds written by a streaming scan after its records.
const (
	NoticeSkipped  = "skipped"
	NoticeExcluded = "excluded"
)

// ScanNotice is a non-record JSONL line carrying scan accounting that would
// otherwise be lost when the scan runs on another host.
type ScanNotice struct {
	Notice    string `json:"notice"`
	Path      string `json:"path,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
	Error     string `json:"error,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// EncodeNotice writes n as a single JSON line.
func EncodeNotice(w io.Writer, n ScanNotice) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode %s notice: %w", n.Notice, err)
	}
	payload = append(payload, '\n')
	_, err = w.Write(payload)
	return err
}

// DecodeNotice reports whether line is a notice and, if so, decodes it.
// Record lines return ok=false with no error.
func DecodeNotice(line []byte) (ScanNotice, bool, error) {
	var n ScanNotice
	trimmed := strings.TrimSpace(string(line))
	if !strings.Contains(trimmed, `"notice"`) {
		return n, false, nil
	}
	if err := json.Unmarshal([]byte(trimmed), &n); err != nil || n.Notice == "" {
		return n, false, nil
	}
	switch n.Notice {
	case NoticeSkipped:
		if strings.TrimSpace(n.Path) == "" {
			return n, true, fmt.Errorf("%w: skipped notice without path", ErrMalformedRecord)
		}
	case NoticeExcluded:
		if n.Count < 0 {
			return n, true, fmt.Errorf("%w: negative excluded count", ErrMalformedRecord)
		}
	default:
		return n, true, fmt.Errorf("%w: unknown notice %q", ErrMalformedRecord, n.Notice)
	}
	return n, true, nil
}
