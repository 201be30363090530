package tia

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Frame is one 2D grid of int32 pixels, stored row-major.
//
// Frames are always copied out of the container's backing buffer, so a Frame
// is owned by the caller and stays valid after the container is closed.
type Frame struct {
	Width  int
	Height int
	Pix    []int32
}

// Shape returns (height, width), the row-major array shape.
func (f Frame) Shape() (int, int) {
	return f.Height, f.Width
}

// At returns the pixel in column x of row y.
func (f Frame) At(x, y int) int32 {
	return f.Pix[y*f.Width+x]
}

// Row returns row y as a sub-slice of Pix.
func (f Frame) Row(y int) []int32 {
	return f.Pix[y*f.Width : (y+1)*f.Width]
}

// Equal reports whether both frames have the same shape and pixels.
func (f Frame) Equal(o Frame) bool {
	if f.Width != o.Width || f.Height != o.Height || len(f.Pix) != len(o.Pix) {
		return false
	}
	for i := range f.Pix {
		if f.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// Bytes encodes the pixels as little-endian int32, the on-disk layout.
func (f Frame) Bytes() []byte {
	out := make([]byte, 0, len(f.Pix)*4)
	for _, v := range f.Pix {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	return out
}

// Checksum is the xxhash64 of Bytes. Two frames with equal checksums and
// shapes are treated as identical by the CLI.
func (f Frame) Checksum() uint64 {
	return xxhash.Sum64(f.Bytes())
}

// Stats returns min, max and mean of the pixels. An empty frame yields zeros.
func (f Frame) Stats() (lo, hi int32, mean float64) {
	if len(f.Pix) == 0 {
		return 0, 0, 0
	}
	lo, hi = math.MaxInt32, math.MinInt32
	var sum float64
	for _, v := range f.Pix {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		sum += float64(v)
	}
	return lo, hi, sum / float64(len(f.Pix))
}

// DecodeFrame copies a width×height int32 frame out of raw. raw must hold
// exactly 4*width*height bytes.
func DecodeFrame(raw []byte, width, height int) Frame {
	n := width * height
	pix := make([]int32, n)
	for i := 0; i < n; i++ {
		pix[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return Frame{Width: width, Height: height, Pix: pix}
}

// FrameSize returns 4*width*height, or ok=false if that would overflow int.
func FrameSize(width, height uint64) (int, bool) {
	maxInt := uint64(math.MaxInt)
	if width == 0 || height == 0 {
		return 0, true
	}
	if width > maxInt/height {
		return 0, false
	}
	n := width * height
	if n > maxInt/4 {
		return 0, false
	}
	return int(n * 4), true
}
