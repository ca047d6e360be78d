package scanner

import (
	"context"
	"errors"
	"iter"
	"sync"

	"vidingest/internal/media"
)

// ErrStreamConsumed is recorded when a Stream is iterated a second time.
var ErrStreamConsumed = errors.New("scanner: stream already consumed")

// Summary describes one walk of a target.
type Summary struct {
	Target string
	// Records counts records handed to the consumer.
	Records int
	// Excluded counts files dropped by Rules.
	Excluded int
	// Skipped counts files that could not be read or hashed.
	Skipped int
	// Diagnostics holds one error per skipped file, plus root-level failures.
	Diagnostics []error
}

func (s *Summary) skip(err error) {
	s.Skipped++
	s.Diagnostics = append(s.Diagnostics, err)
}

// Source discovers records on one target. Walk calls yield for each record on
// the calling goroutine and stops early when yield returns false. The returned
// error is target-level: per-file failures are reported in the Summary.
type Source interface {
	Walk(ctx context.Context, yield func(media.VideoRecord) bool) (Summary, error)
}

// Stream exposes a Source as a finite, lazy, single-use sequence.
type Stream struct {
	ctx context.Context
	src Source

	mu       sync.Mutex
	consumed bool
	summary  Summary
	err      error
}

// NewStream wraps src. Nothing is read until the sequence is ranged over.
func NewStream(ctx context.Context, src Source) *Stream {
	return &Stream{ctx: ctx, src: src}
}

// Records returns the record sequence. Only the first iteration walks the
// source; later ones yield nothing and record ErrStreamConsumed.
func (s *Stream) Records() iter.Seq[media.VideoRecord] {
	return func(yield func(media.VideoRecord) bool) {
		s.mu.Lock()
		if s.consumed {
			if s.err == nil {
				s.err = ErrStreamConsumed
			}
			s.mu.Unlock()
			return
		}
		s.consumed = true
		s.mu.Unlock()

		summary, err := s.src.Walk(s.ctx, yield)

		s.mu.Lock()
		s.summary = summary
		s.err = err
		s.mu.Unlock()
	}
}

// Summary returns the walk summary once the sequence has been drained.
func (s *Stream) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Err returns the target-level walk error, or ErrStreamConsumed after a
// second iteration.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
