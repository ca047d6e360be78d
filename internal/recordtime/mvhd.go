package recordtime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// mp4Epoch is the reference instant for ISO BMFF timestamps.
var mp4Epoch = time.Date(1904, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrNoMovieHeader reports that no usable moov/mvhd box was found.
var ErrNoMovieHeader = errors.New("no movie header")

const maxBoxes = 4096

// MovieCreationTime reads the creation time from the moov/mvhd box of an
// ISO base media file (MP4, QuickTime).
func MovieCreationTime(r io.ReaderAt, size int64) (time.Time, error) {
	moovStart, moovEnd, err := findBox(r, 0, size, "moov")
	if err != nil {
		return time.Time{}, err
	}
	mvhdStart, mvhdEnd, err := findBox(r, moovStart, moovEnd, "mvhd")
	if err != nil {
		return time.Time{}, err
	}
	var header [12]byte
	if mvhdEnd-mvhdStart < 8 {
		return time.Time{}, ErrNoMovieHeader
	}
	n := int64(len(header))
	if avail := mvhdEnd - mvhdStart; avail < n {
		n = avail
	}
	if _, err := r.ReadAt(header[:n], mvhdStart); err != nil && !errors.Is(err, io.EOF) {
		return time.Time{}, fmt.Errorf("read mvhd: %w", err)
	}

	var seconds uint64
	switch header[0] {
	case 0:
		seconds = uint64(binary.BigEndian.Uint32(header[4:8]))
	case 1:
		if n < 12 {
			return time.Time{}, ErrNoMovieHeader
		}
		seconds = binary.BigEndian.Uint64(header[4:12])
	default:
		return time.Time{}, fmt.Errorf("mvhd version %d: %w", header[0], ErrNoMovieHeader)
	}
	if seconds == 0 {
		return time.Time{}, ErrNoMovieHeader
	}
	return mp4Epoch.Add(time.Duration(seconds) * time.Second), nil
}

// findBox returns the payload bounds of the first box of kind within [start, end).
func findBox(r io.ReaderAt, start, end int64, kind string) (int64, int64, error) {
	offset := start
	var header [16]byte
	for i := 0; i < maxBoxes && offset+8 <= end; i++ {
		if _, err := r.ReadAt(header[:8], offset); err != nil {
			return 0, 0, fmt.Errorf("read box header at %d: %w", offset, err)
		}
		boxSize := int64(binary.BigEndian.Uint32(header[:4]))
		boxType := string(header[4:8])
		headerLen := int64(8)
		switch boxSize {
		case 0:
			boxSize = end - offset
		case 1:
			if _, err := r.ReadAt(header[8:16], offset+8); err != nil {
				return 0, 0, fmt.Errorf("read large box size at %d: %w", offset, err)
			}
			boxSize = int64(binary.BigEndian.Uint64(header[8:16]))
			headerLen = 16
		}
		if boxSize < headerLen || offset+boxSize > end {
			return 0, 0, fmt.Errorf("box %q at %d has invalid size %d: %w", boxType, offset, boxSize, ErrNoMovieHeader)
		}
		if boxType == kind {
			return offset + headerLen, offset + boxSize, nil
		}
		offset += boxSize
	}
	return 0, 0, fmt.Errorf("box %q: %w", kind, ErrNoMovieHeader)
}
