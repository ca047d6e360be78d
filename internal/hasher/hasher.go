package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"strconv"

	"vidingest/internal/faults"
)

// DefaultSampleBytes is the prefix and suffix length read for a sample hash.
const DefaultSampleBytes int64 = 1 << 20

const sampleDomain = "vidingest-sample-v1"

// File is the subset of *os.File (and *sftp.File) the hasher reads through.
type File interface {
	io.Reader
	io.ReaderAt
	io.Closer
	Stat() (fs.FileInfo, error)
}

// Opener opens path for hashing.
type Opener func(path string) (File, error)

// OpenLocal opens a file on the local filesystem.
func OpenLocal(path string) (File, error) {
	return os.Open(path)
}

// Digest holds the hashes computed for one file.
type Digest struct {
	Sample string
	Full   string
	Size   int64
}

// Options configures a Hasher.
type Options struct {
	SampleBytes int64
	// Retries is the number of extra attempts after a read failure.
	Retries int
	Open    Opener
}

// Hasher computes sample and full content hashes with a bounded retry.
type Hasher struct {
	sampleBytes int64
	retries     int
	open        Opener
}

// New builds a Hasher. Zero options select a 1 MiB sample, one retry and the
// local filesystem.
func New(opts Options) *Hasher {
	h := &Hasher{sampleBytes: opts.SampleBytes, retries: opts.Retries, open: opts.Open}
	if h.sampleBytes <= 0 {
		h.sampleBytes = DefaultSampleBytes
	}
	if h.retries < 0 {
		h.retries = 0
	}
	if h.open == nil {
		h.open = OpenLocal
	}
	return h
}

// Default returns a Hasher with one retry and the default sample size.
func Default() *Hasher {
	return New(Options{Retries: 1})
}

// SampleBytes reports the configured sample length.
func (h *Hasher) SampleBytes() int64 { return h.sampleBytes }

// Compute hashes path. The full hash is only computed when withFull is set.
// Read failures are retried; the final failure is a *faults.HashError.
func (h *Hasher) Compute(path string, withFull bool) (Digest, error) {
	var (
		digest Digest
		err    error
	)
	attempts := h.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		digest, err = h.computeOnce(path, withFull)
		if err == nil {
			return digest, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return Digest{}, &faults.HashError{Path: path, Attempts: attempt, Err: err}
		}
	}
	return Digest{}, &faults.HashError{Path: path, Attempts: attempts, Err: err}
}

// Full computes only the full-content hash of path.
func (h *Hasher) Full(path string) (string, error) {
	var (
		sum string
		err error
	)
	attempts := h.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		sum, err = h.fullOnce(path)
		if err == nil {
			return sum, nil
		}
	}
	return "", &faults.HashError{Path: path, Attempts: attempts, Err: err}
}

func (h *Hasher) computeOnce(path string, withFull bool) (Digest, error) {
	file, err := h.open(path)
	if err != nil {
		return Digest{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Digest{}, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	sample, err := SampleReaderAt(file, size, h.sampleBytes)
	if err != nil {
		return Digest{}, err
	}
	digest := Digest{Sample: sample, Size: size}
	if withFull {
		full, n, err := FullReader(io.NewSectionReader(file, 0, size))
		if err != nil {
			return Digest{}, err
		}
		if n != size {
			return Digest{}, fmt.Errorf("short read: expected %d bytes, read %d", size, n)
		}
		digest.Full = full
	}
	return digest, nil
}

func (h *Hasher) fullOnce(path string) (string, error) {
	file, err := h.open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	sum, _, err := FullReader(file)
	return sum, err
}

// SampleReaderAt computes the sample hash of a size-byte object: the size,
// then the first and last sampleBytes. Objects no larger than two samples are
// hashed whole.
func SampleReaderAt(r io.ReaderAt, size, sampleBytes int64) (string, error) {
	if sampleBytes <= 0 {
		sampleBytes = DefaultSampleBytes
	}
	h := sha256.New()
	writeHeader(h, size)
	if size <= 2*sampleBytes {
		if err := copySection(h, r, 0, size); err != nil {
			return "", err
		}
	} else {
		if err := copySection(h, r, 0, sampleBytes); err != nil {
			return "", err
		}
		if err := copySection(h, r, size-sampleBytes, sampleBytes); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FullReader hashes everything read from r and reports the byte count.
func FullReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("read content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// NewFullHash returns a streaming hash whose Sum matches FullReader.
func NewFullHash() hash.Hash { return sha256.New() }

// EncodeSum renders a hash sum the way FullReader does.
func EncodeSum(h hash.Hash) string { return hex.EncodeToString(h.Sum(nil)) }

func writeHeader(h hash.Hash, size int64) {
	_, _ = h.Write([]byte(sampleDomain))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strconv.FormatInt(size, 10)))
	_, _ = h.Write([]byte{0})
}

func copySection(dst io.Writer, r io.ReaderAt, offset, length int64) error {
	n, err := io.Copy(dst, io.NewSectionReader(r, offset, length))
	if err != nil {
		return fmt.Errorf("read %d bytes at %d: %w", length, offset, err)
	}
	if n != length {
		return fmt.Errorf("short read at %d: expected %d bytes, read %d", offset, length, n)
	}
	return nil
}
