package tia

import (
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// Backing is the read-only byte image of an opened container: either a
// shared read-only mapping of the file or an in-memory copy.
// Slices handed out by Bytes and Range must not be retained after Close.
type Backing struct {
	data    []byte
	mmapped bool
	closed  bool
}

// OpenBacking checks the host byte order and then maps path read-only.
// If mapping is disabled or unavailable it falls back to ReadAt-based loading.
func OpenBacking(op, path string, opts ...Option) (*Backing, error) {
	if err := CheckHost(op, opts...); err != nil {
		return nil, err
	}
	cfg := resolveOptions(opts)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	size64 := stat.Size()
	if size64 < 0 || size64 > math.MaxInt {
		// cannot index this file safely as []byte on this architecture.
		return nil, FormatError(op, -1, fmt.Sprintf("file size %d out of range", size64))
	}
	size := int(size64)

	if cfg.mmap && size > 0 {
		data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
		if err == nil {
			return &Backing{data: data, mmapped: true}, nil
		}
	}

	data, err := readAllAt(f, size)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Backing{data: data}, nil
}

// BackingFromReaderAt loads size bytes from r without mmap.
func BackingFromReaderAt(op string, r io.ReaderAt, size int64, opts ...Option) (*Backing, error) {
	if err := CheckHost(op, opts...); err != nil {
		return nil, err
	}
	if size < 0 || size > math.MaxInt {
		return nil, FormatError(op, -1, fmt.Sprintf("size %d out of range", size))
	}
	data, err := readAllAt(r, int(size))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Backing{data: data}, nil
}

func readAllAt(r io.ReaderAt, size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	out := make([]byte, size)
	var off int64
	for off < int64(size) {
		n, err := r.ReadAt(out[off:], off)
		off += int64(n)
		if err == nil {
			continue
		}
		if err == io.EOF && off == int64(size) {
			break
		}
		return nil, err
	}
	return out, nil
}

// Len is the size of the backing image in bytes.
func (b *Backing) Len() int {
	return len(b.data)
}

// Mapped reports whether the image is a memory mapping.
func (b *Backing) Mapped() bool {
	return b.mmapped
}

// Closed reports whether Close has been called.
func (b *Backing) Closed() bool {
	return b == nil || b.closed
}

// Bytes returns the whole image, or ErrClosed after Close.
func (b *Backing) Bytes() ([]byte, error) {
	if b == nil || b.closed {
		return nil, ErrClosed
	}
	return b.data, nil
}

// Range returns the n bytes starting at off. A range that does not fit the
// image is a format error naming what was being read.
func (b *Backing) Range(op string, off uint64, n int, what string) ([]byte, error) {
	if b == nil || b.closed {
		return nil, ErrClosed
	}
	if n < 0 {
		return nil, FormatError(op, int64(off), what+": negative length")
	}
	end := off + uint64(n)
	if end < off || end > uint64(len(b.data)) {
		return nil, FormatError(op, offsetOf(off), fmt.Sprintf("%s: %d bytes past end of file (size %d)", what, n, len(b.data)))
	}
	return b.data[off:end], nil
}

// Close releases the mapping. It is safe to call more than once.
func (b *Backing) Close() error {
	if b == nil || b.closed {
		return nil
	}
	var err error
	if b.mmapped {
		err = unix.Munmap(b.data)
	}
	b.data = nil
	b.mmapped = false
	b.closed = true
	return err
}

func offsetOf(off uint64) int64 {
	if off > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(off)
}
