// Package ser decodes TIA ".ser" image series files.
//
// A series file starts with a fixed 22-byte header followed by a pointer to
// two parallel offset tables: one giving the byte offset of every frame and
// one giving the byte offset of every per-frame tag (a timestamp). Offsets are
// 4 or 8 bytes wide depending on the series version. Only 2D int32 frames are
// decoded.
//
// Layout reference: https://www3.ntu.edu.sg/home/cbb/info/TIAformat/index.html
package ser

import "fmt"

const (
	ByteOrderMarker uint16 = 0x4949
	SeriesID        uint16 = 0x0197

	// Versions up to and including NarrowVersionMax use 4-byte offsets.
	NarrowVersionMax uint16 = 0x0210

	headerSize = 22

	// Per-frame element header: the data type and dimensions sit at the end
	// of a 50-byte block; pixel data follows it directly.
	frameTypeOffset = 40
	frameDimsOffset = 42
	frameDataOffset = 50

	// Tag entries carry a 2-byte tag id and 2 padding bytes before the
	// UNIX timestamp.
	tagTimeOffset = 4
)

// DataTypeID identifies the layout of each data element.
type DataTypeID uint32

const (
	Array1D DataTypeID = 0x4120
	Array2D DataTypeID = 0x4122
)

// TagType identifies what is stored per frame in the tag table.
type TagType uint32

const (
	TagNone         TagType = 0
	TagTimePosition TagType = 0x4142
	TagTimeOnly     TagType = 0x4152
)

func (t TagType) String() string {
	switch t {
	case TagNone:
		return "none"
	case TagTimePosition:
		return "time+position"
	case TagTimeOnly:
		return "time"
	default:
		return fmt.Sprintf("tag(0x%X)", uint32(t))
	}
}

func (t TagType) valid() bool {
	return t == TagNone || t == TagTimePosition || t == TagTimeOnly
}

// OffsetWidth is the on-disk width of offset table entries.
type OffsetWidth int

const (
	Narrow OffsetWidth = 4
	Wide   OffsetWidth = 8
)

// OffsetWidthFor resolves the offset width for a series version.
func OffsetWidthFor(version uint16) OffsetWidth {
	if version <= NarrowVersionMax {
		return Narrow
	}
	return Wide
}

func (w OffsetWidth) String() string {
	switch w {
	case Narrow:
		return "u32"
	case Wide:
		return "u64"
	default:
		return fmt.Sprintf("width(%d)", int(w))
	}
}

// Header is the fixed 22-byte series header.
type Header struct {
	ByteOrder     uint16
	SeriesID      uint16
	SeriesVersion uint16
	DataTypeID    DataTypeID
	TagTypeID     TagType
	TotalElements uint32
	NumFrames     uint32
}
