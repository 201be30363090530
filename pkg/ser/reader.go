package ser

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/samcharles93/seremi/pkg/tia"
)

// File is an opened series. Header fields and offset tables are read once by
// Open and never change. The file must be closed to release its mapping.
type File struct {
	Path   string
	Header Header

	// Width and Height come from the first frame's header.
	Width  int
	Height int
	// NumFrames is the number of frames available for random access. It is
	// zero for series written without a tag table.
	NumFrames   int
	OffsetWidth OffsetWidth

	frameOffsets []uint64
	tagOffsets   []uint64
	data         *tia.Backing
}

// Open maps a series file and parses its header and offset tables.
// Frame pixels are not read until ReadFrame.
func Open(path string, opts ...tia.Option) (*File, error) {
	b, err := tia.OpenBacking("ser open", path, opts...)
	if err != nil {
		return nil, err
	}
	f, err := parse(b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	f.Path = path
	return f, nil
}

// OpenReaderAt parses a series from a random-access reader without mmap.
func OpenReaderAt(r io.ReaderAt, size int64, opts ...tia.Option) (*File, error) {
	b, err := tia.BackingFromReaderAt("ser open", r, size, opts...)
	if err != nil {
		return nil, err
	}
	f, err := parse(b)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return f, nil
}

func parse(b *tia.Backing) (*File, error) {
	const op = "ser open"
	le := binary.LittleEndian

	raw, err := b.Range(op, 0, headerSize, "header")
	if err != nil {
		return nil, err
	}
	hdr := Header{
		ByteOrder:     le.Uint16(raw[0:]),
		SeriesID:      le.Uint16(raw[2:]),
		SeriesVersion: le.Uint16(raw[4:]),
		DataTypeID:    DataTypeID(le.Uint32(raw[6:])),
		TagTypeID:     TagType(le.Uint32(raw[10:])),
		TotalElements: le.Uint32(raw[14:]),
		NumFrames:     le.Uint32(raw[18:]),
	}
	if hdr.ByteOrder != ByteOrderMarker {
		return nil, tia.MismatchError(op, 0, "byte order marker", ByteOrderMarker, hdr.ByteOrder)
	}
	if hdr.SeriesID != SeriesID {
		return nil, tia.MismatchError(op, 2, "series id", SeriesID, hdr.SeriesID)
	}
	if hdr.DataTypeID != Array2D {
		return nil, tia.MismatchError(op, 6, "data type id (only 2D arrays are supported)", uint32(Array2D), uint32(hdr.DataTypeID))
	}
	if !hdr.TagTypeID.valid() {
		return nil, tia.MismatchError(op, 10, "tag type id", "0, 0x4142 or 0x4152", uint32(hdr.TagTypeID))
	}

	f := &File{
		Header:      hdr,
		OffsetWidth: OffsetWidthFor(hdr.SeriesVersion),
		data:        b,
	}
	if hdr.TagTypeID == TagNone {
		return f, nil
	}
	if hdr.NumFrames > hdr.TotalElements {
		return nil, tia.MismatchError(op, 18, "frame count exceeds total elements", fmt.Sprintf("<= %d", hdr.TotalElements), hdr.NumFrames)
	}

	w := int(f.OffsetWidth)
	ptrRaw, err := b.Range(op, headerSize, w, "offset table pointer")
	if err != nil {
		return nil, err
	}
	tableOff := f.readOffset(ptrRaw)

	tableLen := uint64(hdr.TotalElements) * uint64(w)
	if tableLen > math.MaxInt {
		return nil, tia.FormatError(op, headerSize, fmt.Sprintf("offset table of %d entries too large", hdr.TotalElements))
	}
	offRaw, err := b.Range(op, tableOff, int(tableLen), "offset table")
	if err != nil {
		return nil, err
	}
	tagRaw, err := b.Range(op, tableOff+tableLen, int(tableLen), "tag offset table")
	if err != nil {
		return nil, err
	}

	n := int(hdr.NumFrames)
	f.frameOffsets = make([]uint64, n)
	f.tagOffsets = make([]uint64, n)
	for i := 0; i < n; i++ {
		f.frameOffsets[i] = f.readOffset(offRaw[i*w:])
		f.tagOffsets[i] = f.readOffset(tagRaw[i*w:])
	}
	f.NumFrames = n

	if n > 0 {
		first := f.frameOffsets[0]
		if first > math.MaxUint64-frameDimsOffset {
			return nil, tia.FormatError(op, -1, "first frame offset overflows")
		}
		dims, err := b.Range(op, first+frameDimsOffset, 8, "first frame dimensions")
		if err != nil {
			return nil, err
		}
		f.Width = int(le.Uint32(dims[0:]))
		f.Height = int(le.Uint32(dims[4:]))
	}
	return f, nil
}

// readOffset decodes one table entry using the width resolved at open time.
func (f *File) readOffset(p []byte) uint64 {
	if f.OffsetWidth == Narrow {
		return uint64(binary.LittleEndian.Uint32(p))
	}
	return binary.LittleEndian.Uint64(p)
}

// FrameOffsets returns a copy of the frame offset table.
func (f *File) FrameOffsets() []uint64 {
	return append([]uint64(nil), f.frameOffsets...)
}

// TagOffsets returns a copy of the tag offset table.
func (f *File) TagOffsets() []uint64 {
	return append([]uint64(nil), f.tagOffsets...)
}

// Mapped reports whether the file is memory mapped rather than read into memory.
func (f *File) Mapped() bool {
	return f.data != nil && f.data.Mapped()
}

// Close releases the mapping. Reads after Close fail with tia.ErrClosed.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	return f.data.Close()
}
