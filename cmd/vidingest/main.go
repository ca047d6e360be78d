package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vidingest/internal/faults"
	"vidingest/internal/ingest"
)

// exitError carries a non-zero exit status for runs that completed but did
// not fully succeed. The command has already reported the details.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return ingest.ExitSuccess
	}
	var exitErr *exitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.code
	case errors.Is(err, context.Canceled):
		return ingest.ExitFailure
	case faults.IsFatal(err):
		fmt.Fprintln(os.Stderr, err)
		return ingest.ExitConfig
	default:
		fmt.Fprintln(os.Stderr, err)
		return ingest.ExitFailure
	}
}
