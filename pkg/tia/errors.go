package tia

import (
	"errors"
	"fmt"
)

var (
	ErrFormat          = errors.New("tia: invalid file format")
	ErrUnsupportedType = errors.New("tia: unsupported data type")
	ErrIndex           = errors.New("tia: index out of range")
	ErrPlatform        = errors.New("tia: host byte order is not little endian")
	ErrClosed          = errors.New("tia: container is closed")
)

// Error describes a decode failure at a specific location in a file.
// Kind is one of the package sentinels and is what errors.Is matches against.
type Error struct {
	Kind     error
	Op       string
	Offset   int64
	Expected any
	Found    any
	Msg      string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" (offset %d)", e.Offset)
	}
	if e.Expected != nil || e.Found != nil {
		msg += fmt.Sprintf(": expected %s, found %s", formatValue(e.Expected), formatValue(e.Found))
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// FormatError reports a structural problem at off. Pass off < 0 when the
// failure has no meaningful file position.
func FormatError(op string, off int64, msg string) *Error {
	return &Error{Kind: ErrFormat, Op: op, Offset: off, Msg: msg}
}

// MismatchError reports a field at off that did not hold the expected value.
func MismatchError(op string, off int64, field string, expected, found any) *Error {
	return &Error{Kind: ErrFormat, Op: op, Offset: off, Msg: field, Expected: expected, Found: found}
}

// UnsupportedTypeError reports a pixel data type other than Int32.
func UnsupportedTypeError(op string, off int64, found DataType) *Error {
	return &Error{Kind: ErrUnsupportedType, Op: op, Offset: off, Expected: Int32, Found: found}
}

// IndexError reports an index outside [0, n).
func IndexError(op string, index, n int) *Error {
	return &Error{Kind: ErrIndex, Op: op, Offset: -1, Msg: fmt.Sprintf("index %d not in [0, %d)", index, n)}
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "<none>"
	case []byte:
		return fmt.Sprintf("% X", t)
	case uint16:
		return fmt.Sprintf("0x%04X", t)
	case uint32:
		return fmt.Sprintf("0x%X", t)
	case DataType:
		return fmt.Sprintf("%d (%s)", uint16(t), t)
	default:
		return fmt.Sprint(t)
	}
}
