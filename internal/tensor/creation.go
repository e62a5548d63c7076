package tensor

import "fmt"

// Empty creates an uninitialized contiguous tensor (zeroed by allocation).
func Empty(shape Shape, dtype DataType) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(fmt.Sprintf("Empty: invalid shape: %v", err))
	}
	return &Tensor{
		storage: newStorage(shape.NumElements(), dtype),
		shape:   shape.Clone(),
		stride:  shape.ComputeStrides(),
		dtype:   dtype,
		offset:  0,
	}
}

// EmptyStrided creates a tensor with explicit strides, backed by freshly
// allocated storage of the minimal size the (shape, stride) pair can address.
func EmptyStrided(shape Shape, stride []int, dtype DataType) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("EmptyStrided: invalid shape: %w", err)
	}
	if len(shape) != len(stride) {
		return nil, fmt.Errorf("EmptyStrided: shape has %d dims but strides has %d", len(shape), len(stride))
	}
	for i, s := range stride {
		if s < 0 {
			return nil, fmt.Errorf("EmptyStrided: negative stride %d at dim %d not supported", s, i)
		}
	}
	return &Tensor{
		storage: newStorage(StorageSize(shape, stride), dtype),
		shape:   shape.Clone(),
		stride:  append([]int(nil), stride...),
		dtype:   dtype,
		offset:  0,
	}, nil
}

// Zeros creates a tensor filled with zeros.
func Zeros(shape Shape, dtype DataType) *Tensor {
	// Storage is already zero-initialized by make().
	return Empty(shape, dtype)
}

// Full creates a tensor filled with the given scalar.
func Full(shape Shape, value any, dtype DataType) (*Tensor, error) {
	t := Empty(shape, dtype)
	if err := t.Fill_(value); err != nil {
		return nil, fmt.Errorf("Full: %w", err)
	}
	return t, nil
}

// FromFloat32 creates a Float32 tensor from a Go slice. The data is copied.
func FromFloat32(data []float32, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t := Empty(shape, Float32)
	copy(t.float32s(), data)
	return t, nil
}

// Arange creates a 1-D Float32 tensor holding [0, 1, ..., n-1].
func Arange(n int) *Tensor {
	t := Empty(Shape{n}, Float32)
	data := t.float32s()
	for i := range data {
		data[i] = float32(i)
	}
	return t
}
