package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"vidingest/internal/faults"
	"vidingest/internal/logging"
	"vidingest/internal/media"
	"vidingest/internal/remote"
)

// DefaultRemoteCommand is the scanner binary invoked on remote hosts.
const DefaultRemoteCommand = "vidingest"

var errStopped = errors.New("scanner: consumer stopped")

// RemoteSource runs the scanner on a remote host and decodes its JSONL output.
type RemoteSource struct {
	Target      ScanTarget
	Dialer      remote.Dialer
	HashWorkers int
	FullHash    bool
	// SampleBytes is forwarded so remote hashes match local ones. Zero keeps
	// the remote default.
	SampleBytes int64
	Progress    func(media.VideoRecord)
	Logger      *slog.Logger
}

// Walk dials the target, streams records and stops at the first malformed
// line. Records decoded before a failure are kept. The remote scan emits
// every record, duplicates included, followed by notices for the paths it
// skipped and the number it excluded.
func (s *RemoteSource) Walk(ctx context.Context, yield func(media.VideoRecord) bool) (Summary, error) {
	summary := Summary{Target: s.Target.Name}
	logger := logging.NewComponentLogger(s.Logger, "scanner")
	endpoint := s.Target.Endpoint()

	dialer := s.Dialer
	if dialer == nil {
		dialer = remote.SSHDialer{}
	}
	conn, err := dialer.Dial(ctx, endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		return summary, s.targetError("connect", err)
	}
	defer conn.Close()

	command := remote.Command(endpoint, RemoteArgs(s.Target, ScanFlags{HashWorkers: s.HashWorkers, FullHash: s.FullHash, SampleBytes: s.SampleBytes}))
	logger.Debug("running remote scan",
		logging.String(logging.FieldTarget, s.Target.Name),
		logging.String(logging.FieldHost, endpoint.Host),
		logging.String("command", command),
	)

	lineNo := 0
	runErr := conn.Run(ctx, command, func(line string) error {
		lineNo++
		if strings.TrimSpace(line) == "" {
			return nil
		}
		notice, ok, err := media.DecodeNotice([]byte(line))
		if err != nil {
			return s.targetError(fmt.Sprintf("line %d", lineNo), err)
		}
		if ok {
			s.absorbNotice(&summary, notice, endpoint.WSL(), logger)
			return nil
		}
		rec, err := media.DecodeRecord([]byte(line))
		if err != nil {
			return s.targetError(fmt.Sprintf("line %d", lineNo), err)
		}
		rec.Host = s.Target.Name
		if endpoint.WSL() {
			rec.Path = remote.FromWSLPath(rec.Path)
		}
		summary.Records++
		if s.Progress != nil {
			s.Progress(rec)
		}
		if !yield(rec) {
			return errStopped
		}
		return nil
	})

	switch {
	case runErr == nil, errors.Is(runErr, errStopped):
		return summary, nil
	case ctx.Err() != nil:
		return summary, ctx.Err()
	}
	var remoteErr *faults.RemoteTargetError
	if errors.As(runErr, &remoteErr) {
		return summary, runErr
	}
	return summary, s.targetError("remote scan failed", runErr)
}

func (s *RemoteSource) absorbNotice(summary *Summary, notice media.ScanNotice, wsl bool, logger *slog.Logger) {
	switch notice.Notice {
	case media.NoticeExcluded:
		summary.Excluded += notice.Count
	case media.NoticeSkipped:
		path := notice.Path
		if wsl {
			path = remote.FromWSLPath(path)
		}
		cause := errors.New(notice.Error)
		var err error
		if notice.ErrorKind == faults.KindHash {
			err = &faults.HashError{Path: path, Err: cause}
		} else {
			err = &faults.ScanError{Host: s.Target.Name, Path: path, Err: cause}
		}
		summary.skip(err)
		logging.WarnWithContext(logger, "path skipped", "scan_path_skipped",
			logging.String(logging.FieldTarget, s.Target.Name),
			logging.String(logging.FieldPath, path),
			logging.Error(err),
		)
	}
}

func (s *RemoteSource) targetError(reason string, err error) error {
	return &faults.RemoteTargetError{Target: s.Target.Name, Host: s.Target.Host, Reason: reason, Err: err}
}

// ScanFlags are the hashing settings passed to a remote scan.
type ScanFlags struct {
	HashWorkers int
	FullHash    bool
	SampleBytes int64
}

// RemoteArgs builds the argv of the scan executed on the remote host. WSL
// roots are translated to their /mnt mount paths.
func RemoteArgs(t ScanTarget, flags ScanFlags) []string {
	command := strings.TrimSpace(t.RemoteCommand)
	if command == "" {
		command = DefaultRemoteCommand
	}
	platform := t.Platform
	if t.Kind == KindSSHWSL {
		platform = "linux"
	}
	hashWorkers := flags.HashWorkers
	if hashWorkers <= 0 {
		hashWorkers = DefaultHashWorkers
	}
	args := []string{command, "scan", "--local", "--jsonl", "--all",
		"--platform", platform,
		"--hash-workers", strconv.Itoa(hashWorkers),
		"--skip-zero-byte=" + strconv.FormatBool(t.Rules.SkipZeroByte),
		"--skip-hidden=" + strconv.FormatBool(t.Rules.SkipHidden),
		"--skip-placeholders=" + strconv.FormatBool(t.Rules.SkipCloudPlaceholders),
	}
	if flags.FullHash {
		args = append(args, "--full-hash")
	}
	if flags.SampleBytes > 0 {
		args = append(args, "--sample-bytes", strconv.FormatInt(flags.SampleBytes, 10))
	}
	if len(t.Rules.Extensions) > 0 {
		args = append(args, "--extensions", strings.Join(t.Rules.Extensions, ","))
	}
	for _, glob := range t.Rules.ExcludeGlobs {
		args = append(args, "--exclude-glob", glob)
	}
	args = append(args, "--")
	for _, root := range t.Roots {
		if t.Kind == KindSSHWSL {
			root = remote.ToWSLPath(root)
		}
		args = append(args, root)
	}
	return args
}
