package ser

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/samcharles93/seremi/pkg/tia"
)

// ReadFrame copies frame i out of the file. The per-frame header is
// validated on every call: the data type must be int32 and the pixel block
// must lie inside the file.
func (f *File) ReadFrame(i int) (tia.Frame, error) {
	const op = "ser read frame"
	if f.data.Closed() {
		return tia.Frame{}, tia.ErrClosed
	}
	if i < 0 || i >= f.NumFrames {
		return tia.Frame{}, tia.IndexError(op, i, f.NumFrames)
	}
	off := f.frameOffsets[i]
	if off > math.MaxUint64-frameDataOffset {
		return tia.Frame{}, tia.FormatError(op, -1, fmt.Sprintf("frame %d offset overflows", i))
	}

	hdr, err := f.data.Range(op, off+frameTypeOffset, frameDataOffset-frameTypeOffset, fmt.Sprintf("frame %d header", i))
	if err != nil {
		return tia.Frame{}, err
	}
	dtype := tia.DataType(binary.LittleEndian.Uint16(hdr[0:]))
	if dtype != tia.Int32 {
		return tia.Frame{}, tia.UnsupportedTypeError(op, int64(off+frameTypeOffset), dtype)
	}
	width := uint64(binary.LittleEndian.Uint32(hdr[2:]))
	height := uint64(binary.LittleEndian.Uint32(hdr[6:]))
	size, ok := tia.FrameSize(width, height)
	if !ok {
		return tia.Frame{}, tia.FormatError(op, int64(off+frameDimsOffset), fmt.Sprintf("frame %d dimensions %dx%d too large", i, width, height))
	}

	raw, err := f.data.Range(op, off+frameDataOffset, size, fmt.Sprintf("frame %d pixels", i))
	if err != nil {
		return tia.Frame{}, err
	}
	return tia.DecodeFrame(raw, int(width), int(height)), nil
}

// ReadLastFrame reads frame NumFrames-1.
func (f *File) ReadLastFrame() (tia.Frame, error) {
	return f.ReadFrame(f.NumFrames - 1)
}

// ReadAllFrames reads every frame in index order, stopping at the first error.
func (f *File) ReadAllFrames() ([]tia.Frame, error) {
	out := make([]tia.Frame, 0, f.NumFrames)
	for i := 0; i < f.NumFrames; i++ {
		fr, err := f.ReadFrame(i)
		if err != nil {
			return nil, err
		}
		out = append(out, fr)
	}
	return out, nil
}

// ReadTimestamp returns the UNIX time (seconds) stored in the tag of frame i.
func (f *File) ReadTimestamp(i int) (int64, error) {
	const op = "ser read timestamp"
	if f.data.Closed() {
		return 0, tia.ErrClosed
	}
	if i < 0 || i >= len(f.tagOffsets) {
		return 0, tia.IndexError(op, i, len(f.tagOffsets))
	}
	off := f.tagOffsets[i]
	if off > math.MaxUint64-tagTimeOffset {
		return 0, tia.FormatError(op, -1, fmt.Sprintf("tag %d offset overflows", i))
	}
	raw, err := f.data.Range(op, off+tagTimeOffset, 4, fmt.Sprintf("tag %d timestamp", i))
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint32(raw)), nil
}

// Time is ReadTimestamp as a UTC time.
func (f *File) Time(i int) (time.Time, error) {
	ts, err := f.ReadTimestamp(i)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0).UTC(), nil
}
