// Package tensor provides the strided tensor substrate for the vmap engine.
package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// convertScalar coerces a Go scalar into the canonical in-memory value for
// the data type. Float16 values travel as float32 and are packed to their
// 16-bit representation at the storage boundary.
func (dt DataType) convertScalar(v any) (any, error) {
	if dt == Bool {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot fill %s tensor with %T value", dt, v)
		}
		return b, nil
	}

	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint8:
		f = float64(val)
	default:
		return nil, fmt.Errorf("cannot fill %s tensor with %T value", dt, v)
	}

	switch dt {
	case Float32:
		return float32(f), nil
	case Float64:
		return f, nil
	case Float16:
		return uint16(float16.Fromfloat32(float32(f))), nil
	case Int32:
		return int32(f), nil
	case Int64:
		return int64(f), nil
	case Uint8:
		return uint8(f), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dt)
	}
}
