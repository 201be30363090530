// Package emi decodes TIA ".emi" files.
//
// An EMI file carries the detailed acquisition metadata for a series plus a
// single embedded frame. The file header is roughly 1000 bytes long and its
// exact length drifts between writer versions, so the image block is found
// by scanning a small window for its marker instead of by a fixed offset:
//
//	... | u8 data type | 08 22 02 02 | u32 size+8 | u32 width | u32 height | pixels | footer
//
// The footer holds length-prefixed strings (see tia.FooterString), one of
// which is the XML metadata document.
package emi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/samcharles93/seremi/pkg/tia"
	"github.com/samcharles93/seremi/pkg/tia/metadata"
)

var (
	Magic       = [12]byte{0x4A, 0x4B, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x04, 0x4D, 0x01, 0x00}
	ImageMarker = [4]byte{0x08, 0x22, 0x02, 0x02}
)

// The image marker is searched for in [ScanStart, ScanEnd). The whole marker
// must lie inside the window.
const (
	ScanStart = 1000
	ScanEnd   = 1050
)

const (
	// dimsSize covers the three u32 fields after the marker.
	dimsSize = 12
	// sizeOverhead is included in the declared data size.
	sizeOverhead = 8
)

// File is an opened EMI file. All fields are populated by Open.
type File struct {
	Path         string
	Width        int
	Height       int
	DataType     tia.DataType
	Domain       string
	OriginalPath string
	RawMetadata  string
	Metadata     *metadata.Map

	// MarkerOffset is the file offset at which the image marker was found.
	MarkerOffset int

	dataStart int
	dataEnd   int
	data      *tia.Backing
}

// Open maps an EMI file and decodes its image block header, footer strings
// and metadata. On any error nothing stays mapped.
func Open(path string, opts ...tia.Option) (*File, error) {
	b, err := tia.OpenBacking("emi open", path, opts...)
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

// OpenReaderAt decodes an EMI file from a random-access reader without mmap.
func OpenReaderAt(r io.ReaderAt, size int64, opts ...tia.Option) (*File, error) {
	b, err := tia.BackingFromReaderAt("emi open", r, size, opts...)
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
	const op = "emi open"

	magic, err := b.Range(op, 0, len(Magic), "magic")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, tia.MismatchError(op, 0, "magic", Magic[:], bytes.Clone(magic))
	}

	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	pos, err := findMarker(data)
	if err != nil {
		return nil, err
	}

	dtype := tia.DataType(data[pos-1])
	if dtype != tia.Int32 {
		return nil, tia.UnsupportedTypeError(op, int64(pos-1), dtype)
	}

	numsStart := pos + len(ImageMarker)
	nums, err := b.Range(op, uint64(numsStart), dimsSize, "image dimensions")
	if err != nil {
		return nil, err
	}
	le := binary.LittleEndian
	declared := uint64(le.Uint32(nums[0:]))
	width := uint64(le.Uint32(nums[4:]))
	height := uint64(le.Uint32(nums[8:]))

	size, ok := tia.FrameSize(width, height)
	if !ok || declared < sizeOverhead || declared-sizeOverhead != uint64(size) {
		return nil, &tia.Error{
			Kind:     tia.ErrFormat,
			Op:       op,
			Offset:   int64(numsStart),
			Msg:      fmt.Sprintf("inconsistent dimensions %dx%d", width, height),
			Expected: fmt.Sprintf("data size %d", width*height*4+sizeOverhead),
			Found:    declared,
		}
	}

	dataStart := numsStart + dimsSize
	if _, err := b.Range(op, uint64(dataStart), size, "image data"); err != nil {
		return nil, err
	}
	dataEnd := dataStart + size

	f := &File{
		Width:        int(width),
		Height:       int(height),
		DataType:     dtype,
		MarkerOffset: pos,
		dataStart:    dataStart,
		dataEnd:      dataEnd,
		data:         b,
	}
	if err := f.readFooter(data[dataEnd:]); err != nil {
		return nil, err
	}
	return f, nil
}

// findMarker returns the file offset of the first image marker that lies
// wholly inside [ScanStart, ScanEnd).
func findMarker(data []byte) (int, error) {
	end := min(ScanEnd, len(data))
	if end <= ScanStart {
		return 0, tia.FormatError("emi open", int64(len(data)), fmt.Sprintf("file too short for image marker window [%d,%d)", ScanStart, ScanEnd))
	}
	i := bytes.Index(data[ScanStart:end], ImageMarker[:])
	if i < 0 {
		return 0, tia.FormatError("emi open", ScanStart, fmt.Sprintf("image marker % X not found in [%d,%d)", ImageMarker[:], ScanStart, ScanEnd))
	}
	return ScanStart + i, nil
}

func (f *File) readFooter(footer []byte) error {
	var err error
	if f.Domain, err = tia.FooterString(footer, tia.KeyDomain); err != nil {
		return fmt.Errorf("emi domain: %w", err)
	}
	if f.OriginalPath, err = tia.FooterString(footer, tia.KeyOriginalPath); err != nil {
		return fmt.Errorf("emi original path: %w", err)
	}
	if f.RawMetadata, err = tia.FooterString(footer, tia.KeyMetadata); err != nil {
		return fmt.Errorf("emi metadata: %w", err)
	}
	if f.Metadata, err = metadata.FoldXML(f.RawMetadata); err != nil {
		return fmt.Errorf("emi metadata: %w", err)
	}
	return nil
}

// ReadFrame copies the embedded frame out of the file.
func (f *File) ReadFrame() (tia.Frame, error) {
	if f.data.Closed() {
		return tia.Frame{}, tia.ErrClosed
	}
	raw, err := f.data.Range("emi read frame", uint64(f.dataStart), f.dataEnd-f.dataStart, "image data")
	if err != nil {
		return tia.Frame{}, err
	}
	return tia.DecodeFrame(raw, f.Width, f.Height), nil
}

// DataRange is the [start, end) byte range of the embedded pixels.
func (f *File) DataRange() (int, int) {
	return f.dataStart, f.dataEnd
}

// Lookup resolves a dotted path in the metadata map.
func (f *File) Lookup(path string) (metadata.Value, bool) {
	return f.Metadata.Lookup(path)
}

// Mapped reports whether the file is memory mapped rather than read into memory.
func (f *File) Mapped() bool {
	return f.data != nil && f.data.Mapped()
}

// Close releases the mapping. Decoded strings and metadata stay usable.
func (f *File) Close() error {
	if f == nil || f.data == nil {
		return nil
	}
	return f.data.Close()
}
