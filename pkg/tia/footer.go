package tia

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// FooterKey selects one string entry in an EMI footer.
type FooterKey [2]byte

var (
	KeyDomain       = FooterKey{0x00, 0x04}
	KeyOriginalPath = FooterKey{0x40, 0x04}
	KeyMetadata     = FooterKey{0x19, 0x04}
)

// footerMarker precedes every key in a footer string entry:
//
//	60 00 | key[2] | u32 length | length bytes of text
var footerMarker = [2]byte{0x60, 0x00}

func (k FooterKey) String() string {
	return fmt.Sprintf("%02X %02X", k[0], k[1])
}

// FooterPattern is the 4-byte search pattern for key.
func FooterPattern(key FooterKey) []byte {
	return []byte{footerMarker[0], footerMarker[1], key[0], key[1]}
}

// FooterString finds the first entry for key in region and returns its text.
// Offsets in returned errors are relative to the start of region.
func FooterString(region []byte, key FooterKey) (string, error) {
	const op = "footer"
	pattern := FooterPattern(key)
	pos := bytes.Index(region, pattern)
	if pos < 0 {
		return "", FormatError(op, -1, "key "+key.String()+" not found")
	}
	lenStart := pos + len(pattern)
	charsStart := lenStart + 4
	if charsStart > len(region) {
		return "", FormatError(op, int64(lenStart), "key "+key.String()+": truncated length field")
	}
	n := uint64(binary.LittleEndian.Uint32(region[lenStart:charsStart]))
	if n > uint64(len(region)-charsStart) {
		return "", &Error{
			Kind:     ErrFormat,
			Op:       op,
			Offset:   int64(lenStart),
			Msg:      "key " + key.String() + ": string too long",
			Expected: fmt.Sprintf("<= %d bytes", len(region)-charsStart),
			Found:    n,
		}
	}
	payload := region[charsStart : charsStart+int(n)]
	if !utf8.Valid(payload) {
		return "", FormatError(op, int64(charsStart), "key "+key.String()+": text is not valid UTF-8")
	}
	return string(payload), nil
}
