// Package tia holds the pieces shared by the SER and EMI decoders.
//
// TIA (the acquisition software on FEI/Thermo transmission electron
// microscopes) writes image series to ".ser" files and a companion ".emi"
// file carrying detailed metadata plus one frame. Neither format is publicly
// specified. This package provides the error kinds, the Frame type, the
// read-only mapped file backing used by both decoders, and the footer string
// protocol used by EMI files.
//
// All integers in both formats are little-endian. The decoders refuse to run
// on big-endian hosts.
package tia

import "fmt"

// DataType is the pixel data type code written in frame headers.
type DataType uint16

// Pixel data type codes. Only Int32 is decoded.
const (
	Uint8   DataType = 1
	Uint16  DataType = 2
	Uint32  DataType = 3
	Int8    DataType = 4
	Int16   DataType = 5
	Int32   DataType = 6
	Float32 DataType = 7
	Float64 DataType = 8
)

func (t DataType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("type(%d)", uint16(t))
	}
}
