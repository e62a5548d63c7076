package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions >= 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major (contiguous) strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// StorageSize returns the minimal number of storage elements a tensor with
// the given sizes and strides can address: 1 + sum((size-1)*stride), or 0
// if any dimension has size 0.
func StorageSize(sizes Shape, strides []int) int {
	span := 1
	for i, size := range sizes {
		if size == 0 {
			return 0
		}
		span += (size - 1) * strides[i]
	}
	return span
}

// wrapDim normalizes a possibly-negative dimension index into [0, rank).
// Scalars (rank 0) accept dims 0 and -1, matching the convention that a
// scalar behaves like a one-dimensional tensor for dimension wrapping.
func wrapDim(dim, rank int) (int, error) {
	limit := rank
	if limit == 0 {
		limit = 1
	}
	if dim < -limit || dim >= limit {
		return 0, fmt.Errorf("dimension out of range (expected to be in range of [%d, %d], but got %d)",
			-limit, limit-1, dim)
	}
	if dim < 0 {
		dim += limit
	}
	return dim, nil
}
