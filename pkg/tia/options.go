package tia

import (
	"encoding/binary"
	"unsafe"
)

type openConfig struct {
	hostOrder binary.ByteOrder
	mmap      bool
}

// Option configures how a container is opened.
type Option func(*openConfig)

// WithHostByteOrder overrides the detected host byte order. It exists so the
// big-endian refusal path can be exercised on little-endian machines.
func WithHostByteOrder(order binary.ByteOrder) Option {
	return func(c *openConfig) { c.hostOrder = order }
}

// WithMmap controls whether Open maps the file. When false, or when mmap
// fails, the file is read into memory with ReadAt.
func WithMmap(v bool) Option {
	return func(c *openConfig) { c.mmap = v }
}

func resolveOptions(opts []Option) openConfig {
	cfg := openConfig{hostOrder: NativeByteOrder(), mmap: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NativeByteOrder reports the byte order of the running host.
func NativeByteOrder() binary.ByteOrder {
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))
	if b[0] == 0x01 {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// CheckHost returns ErrPlatform unless the configured host order is little
// endian.
func CheckHost(op string, opts ...Option) error {
	cfg := resolveOptions(opts)
	if !isLittleEndian(cfg.hostOrder) {
		return &Error{Kind: ErrPlatform, Op: op, Offset: -1, Found: cfg.hostOrder.String()}
	}
	return nil
}

// isLittleEndian checks the order by what it writes, so binary.NativeEndian
// and other implementations are judged the same as binary.LittleEndian.
func isLittleEndian(order binary.ByteOrder) bool {
	var b [2]byte
	order.PutUint16(b[:], 0x0102)
	return b[0] == 0x02
}
