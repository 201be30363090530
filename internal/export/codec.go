package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects how frame dumps are compressed on disk.
type Codec string

const (
	CodecNone Codec = "none"
	CodecZstd Codec = "zstd"
	CodecLZ4  Codec = "lz4"
)

// ParseCodec accepts none, zstd or lz4 (case-insensitive). Empty is none.
func ParseCodec(s string) (Codec, error) {
	switch c := Codec(strings.ToLower(s)); c {
	case "", CodecNone:
		return CodecNone, nil
	case CodecZstd, CodecLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("unknown codec %q (want none, zstd or lz4)", s)
	}
}

// Ext is the file extension for a frame written with c.
func (c Codec) Ext() string {
	switch c {
	case CodecZstd:
		return ".raw.zst"
	case CodecLZ4:
		return ".raw.lz4"
	default:
		return ".raw"
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with the compressor for c. Closing the returned writer
// flushes the compressor but does not close w.
func (c Codec) NewWriter(w io.Writer) (io.WriteCloser, error) {
	switch c {
	case CodecZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CodecLZ4:
		return lz4.NewWriter(w), nil
	case CodecNone, "":
		return nopWriteCloser{w}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", string(c))
	}
}

// NewReader wraps r with the decompressor for c.
func (c Codec) NewReader(r io.Reader) (io.ReadCloser, error) {
	switch c {
	case CodecZstd:
		d, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case CodecLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case CodecNone, "":
		return io.NopCloser(r), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", string(c))
	}
}
