// Package types holds the element-type and shape vocabulary shared by
// core/graph and runtime/cpu.
package types

import "fmt"

// DataType enumerates the element types a Tensor may hold. The
// enumeration covers both integer and floating-point widths of 1, 2, 4
// and 8 bytes, per the data model.
type DataType uint8

const (
	DTUnknown DataType = iota
	DTInt8
	DTInt16
	DTInt32
	DTInt64
	DTFloat8
	DTFloat16
	DTFloat32
	DTFloat64
)

// byteWidths maps each DataType to its element width in bytes.
var byteWidths = [...]int{
	DTUnknown:  0,
	DTInt8:     1,
	DTInt16:    2,
	DTInt32:    4,
	DTInt64:    8,
	DTFloat8:   1,
	DTFloat16:  2,
	DTFloat32:  4,
	DTFloat64:  8,
}

// ByteWidth returns the size in bytes of a single element of d.
func (d DataType) ByteWidth() int {
	if int(d) >= len(byteWidths) {
		return 0
	}
	return byteWidths[d]
}

// Valid reports whether d is a known, non-zero-width data type.
func (d DataType) Valid() bool {
	return d != DTUnknown && int(d) < len(byteWidths)
}

func (d DataType) String() string {
	switch d {
	case DTInt8:
		return "int8"
	case DTInt16:
		return "int16"
	case DTInt32:
		return "int32"
	case DTInt64:
		return "int64"
	case DTFloat8:
		return "f8"
	case DTFloat16:
		return "f16"
	case DTFloat32:
		return "f32"
	case DTFloat64:
		return "f64"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(d))
	}
}
