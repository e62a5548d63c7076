package batch

import "github.com/pkg/errors"

// WrapDim normalizes a possibly-negative dimension index into [0, rank).
// Scalars (rank 0) accept dims 0 and -1, like the plain operator surface.
func WrapDim(dim, rank int) (int, error) {
	limit := rank
	if limit == 0 {
		limit = 1
	}
	if dim < -limit || dim >= limit {
		return 0, errors.Errorf(
			"dimension out of range (expected to be in range of [%d, %d], but got %d)",
			-limit, limit-1, dim)
	}
	if dim < 0 {
		dim += limit
	}
	return dim, nil
}

// isAllowedDimOnScalarTensor reports whether dim is one of the two indices
// the operator surface tolerates on a scalar tensor.
func isAllowedDimOnScalarTensor(dim int) bool {
	return dim == 0 || dim == -1
}

// maximumIndexableLocation returns the highest storage offset a tensor with
// the given geometry can reach, or false if no location is reachable (a
// zero-size dim).
func maximumIndexableLocation(sizes []int, strides []int, storageOffset int) (int, bool) {
	span := 1
	for i, size := range sizes {
		if size == 0 {
			return 0, false
		}
		span += (size - 1) * strides[i]
	}
	return span + storageOffset, true
}
