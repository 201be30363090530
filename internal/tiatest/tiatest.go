// Package tiatest writes synthetic SER and EMI files for tests.
package tiatest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/samcharles93/seremi/pkg/tia"
)

// Series describes a synthetic SER file.
type Series struct {
	Version    uint16 // default 0x0220 (8-byte offsets)
	TagType    uint32 // default 0x4152 (time only); set NoTags for 0
	NoTags     bool
	Frames     []tia.Frame
	Timestamps []uint32
	// DataType overrides the per-frame data type of every frame (default 6).
	DataType uint16
	// ExtraElements adds zero entries to both offset tables beyond len(Frames).
	ExtraElements int
}

const (
	serHeaderSize   = 22
	frameHeaderSize = 50
	framesStart     = 64
)

// NarrowVersion and WideVersion select 4- and 8-byte offset tables.
const (
	NarrowVersion uint16 = 0x0210
	WideVersion   uint16 = 0x0220
)

// Ramp returns a width×height frame whose pixels are seed, seed+1, ...
func Ramp(width, height int, seed int32) tia.Frame {
	pix := make([]int32, width*height)
	for i := range pix {
		pix[i] = seed + int32(i)
	}
	return tia.Frame{Width: width, Height: height, Pix: pix}
}

// BuildSeries encodes s. Frames start at byte 64; tags follow the frames and
// the two offset tables come last.
func BuildSeries(s Series) []byte {
	version := s.Version
	if version == 0 {
		version = WideVersion
	}
	tagType := s.TagType
	if tagType == 0 {
		tagType = 0x4152
	}
	if s.NoTags {
		tagType = 0
	}
	dtype := s.DataType
	if dtype == 0 {
		dtype = uint16(tia.Int32)
	}
	width := 8
	if version <= NarrowVersion {
		width = 4
	}
	total := len(s.Frames) + s.ExtraElements

	buf := make([]byte, framesStart)
	le := binary.LittleEndian
	le.PutUint16(buf[0:], 0x4949)
	le.PutUint16(buf[2:], 0x0197)
	le.PutUint16(buf[4:], version)
	le.PutUint32(buf[6:], 0x4122)
	le.PutUint32(buf[10:], tagType)
	le.PutUint32(buf[14:], uint32(total))
	le.PutUint32(buf[18:], uint32(len(s.Frames)))
	if s.NoTags {
		return buf[:serHeaderSize]
	}

	frameOffsets := make([]uint64, total)
	for i, f := range s.Frames {
		frameOffsets[i] = uint64(len(buf))
		hdr := make([]byte, frameHeaderSize)
		le.PutUint16(hdr[40:], dtype)
		le.PutUint32(hdr[42:], uint32(f.Width))
		le.PutUint32(hdr[46:], uint32(f.Height))
		buf = append(buf, hdr...)
		buf = append(buf, f.Bytes()...)
	}

	tagOffsets := make([]uint64, total)
	for i := range s.Frames {
		tagOffsets[i] = uint64(len(buf))
		var ts uint32
		if i < len(s.Timestamps) {
			ts = s.Timestamps[i]
		}
		buf = le.AppendUint16(buf, uint16(tagType))
		buf = le.AppendUint16(buf, 0)
		buf = le.AppendUint32(buf, ts)
		if tagType == 0x4142 {
			buf = append(buf, make([]byte, 16)...)
		}
	}

	tableOffset := uint64(len(buf))
	for _, table := range [][]uint64{frameOffsets, tagOffsets} {
		for _, off := range table {
			if width == 4 {
				buf = le.AppendUint32(buf, uint32(off))
			} else {
				buf = le.AppendUint64(buf, off)
			}
		}
	}
	if width == 4 {
		le.PutUint32(buf[serHeaderSize:], uint32(tableOffset))
	} else {
		le.PutUint64(buf[serHeaderSize:], tableOffset)
	}
	return buf
}

// EMI describes a synthetic EMI file.
type EMI struct {
	Frame tia.Frame
	// MarkerPos is the file offset of the image marker (default 1020).
	MarkerPos    int
	DataType     byte // default 6
	SizeDelta    int  // added to the declared data size
	Domain       string
	OriginalPath string
	XML          string
	// OmitMetadata leaves out the metadata footer entry.
	OmitMetadata bool
}

var (
	EMIMagic    = []byte{0x4A, 0x4B, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x04, 0x4D, 0x01, 0x00}
	ImageMarker = []byte{0x08, 0x22, 0x02, 0x02}
)

// DefaultXML is a small metadata document shaped like the real thing.
const DefaultXML = `<ObjectInfo><ExperimentalConditions><MicroscopeConditions>` +
	`<AcceleratingVoltage>300000</AcceleratingVoltage></MicroscopeConditions>` +
	`</ExperimentalConditions><Uuid>1234</Uuid></ObjectInfo>`

// BuildEMI encodes e.
func BuildEMI(e EMI) []byte {
	pos := e.MarkerPos
	if pos == 0 {
		pos = 1020
	}
	dtype := e.DataType
	if dtype == 0 {
		dtype = byte(tia.Int32)
	}

	buf := make([]byte, pos)
	copy(buf, EMIMagic)
	buf[pos-1] = dtype
	buf = append(buf, ImageMarker...)

	le := binary.LittleEndian
	pix := e.Frame.Bytes()
	buf = le.AppendUint32(buf, uint32(len(pix)+8+e.SizeDelta))
	buf = le.AppendUint32(buf, uint32(e.Frame.Width))
	buf = le.AppendUint32(buf, uint32(e.Frame.Height))
	buf = append(buf, pix...)

	// Some unrelated footer bytes before the strings.
	buf = append(buf, 0x00, 0x00, 0x20, 0x00, 0x00, 0x02, 0x11)
	buf = AppendFooterString(buf, tia.KeyDomain, e.Domain)
	buf = AppendFooterString(buf, tia.KeyOriginalPath, e.OriginalPath)
	if !e.OmitMetadata {
		xml := e.XML
		if xml == "" {
			xml = DefaultXML
		}
		buf = AppendFooterString(buf, tia.KeyMetadata, xml)
	}
	return buf
}

// AppendFooterString appends one footer string entry for key to dst.
func AppendFooterString(dst []byte, key tia.FooterKey, s string) []byte {
	dst = append(dst, tia.FooterPattern(key)...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// WriteFile writes data to dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
