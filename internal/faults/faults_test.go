package faults_test

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"vidingest/internal/faults"
)

func TestKindClassifiesWrappedErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"scan", &faults.ScanError{Path: "/a", Err: fs.ErrPermission}, faults.KindScan},
		{"hash", &faults.HashError{Path: "/a", Err: errors.New("eio")}, faults.KindHash},
		{"remote", fmt.Errorf("aggregate: %w", &faults.RemoteTargetError{Target: "lab"}), faults.KindRemoteTarget},
		{"staging", &faults.StagingVerificationError{}, faults.KindStaging},
		{"conflict", &faults.DuplicateConflict{}, faults.KindDuplicate},
		{"config", faults.Configf("paths.managed_root", "must be set"), faults.KindConfiguration},
		{"not found", &faults.NotFoundError{Resource: "video", Key: "abc"}, faults.KindNotFound},
		{"plain", errors.New("boom"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := faults.Kind(tc.err); got != tc.want {
				t.Fatalf("Kind = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestOnlyConfigurationErrorsAreFatal(t *testing.T) {
	if !faults.IsFatal(fmt.Errorf("load: %w", faults.Configf("targets", "none configured"))) {
		t.Fatal("expected configuration error to be fatal")
	}
	if faults.IsFatal(&faults.RemoteTargetError{Target: "lab"}) {
		t.Fatal("remote target errors must not be fatal")
	}
}

func TestScanErrorUnwraps(t *testing.T) {
	err := &faults.ScanError{Host: "local", Path: "/videos/a.mp4", Err: fs.ErrNotExist}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("expected ScanError to unwrap to fs.ErrNotExist")
	}
	if !strings.Contains(err.Error(), "local:/videos/a.mp4") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	err := fmt.Errorf("link: %w", &faults.NotFoundError{Resource: "video", Key: "deadbeef"})
	if !faults.IsNotFound(err) {
		t.Fatal("expected IsNotFound to match wrapped error")
	}
	if faults.IsNotFound(errors.New("other")) {
		t.Fatal("unexpected match for plain error")
	}
}
