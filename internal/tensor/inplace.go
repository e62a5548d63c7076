package tensor

import (
	"fmt"

	"github.com/vmap-ml/vmap/internal/parallel"
)

// In-place data operations. These touch exactly the elements the view
// addresses, so writes through an expanded or strided view follow its
// aliasing.

// Fill_ sets every addressed element to the given scalar.
func (t *Tensor) Fill_(value any) error {
	cv, err := t.dtype.convertScalar(value)
	if err != nil {
		return fmt.Errorf("Fill_: %w", err)
	}
	t.iterate(func(flat int) {
		t.storeFlat(flat, cv)
	})
	return nil
}

// Zero_ sets every addressed element to zero.
func (t *Tensor) Zero_() {
	var zero any = 0
	if t.dtype == Bool {
		zero = false
	}
	if err := t.Fill_(zero); err != nil {
		panic(fmt.Sprintf("Zero_: %v", err)) // zero converts for every dtype
	}
}

// Copy_ copies src's elements into t, broadcasting src to t's shape.
// The dtypes must match.
func (t *Tensor) Copy_(src *Tensor) error {
	if src.dtype != t.dtype {
		return fmt.Errorf("Copy_: dtype mismatch: %s vs %s", t.dtype, src.dtype)
	}
	expanded, err := src.Expand(t.shape)
	if err != nil {
		return fmt.Errorf("Copy_: source shape %v does not broadcast to %v: %w", src.shape, t.shape, err)
	}

	// Split the work along the leading dimension; each slice is a disjoint
	// region of t, so the copies are independent.
	cfg := parallel.DefaultConfig()
	if t.Dim() >= 1 && t.shape[0] >= cfg.MinChunkSize && t.NumElements() >= 1<<14 {
		parallel.For(t.shape[0], func(i int) {
			dst, derr := t.Select(0, i)
			s, serr := expanded.Select(0, i)
			if derr != nil || serr != nil {
				return // sizes validated above
			}
			copyStrided(dst, s)
		}, cfg)
		return nil
	}

	copyStrided(t, expanded)
	return nil
}

// copyStrided moves elements between two same-shape, same-dtype views.
func copyStrided(dst, src *Tensor) {
	srcOffsets := make([]int, 0, src.NumElements())
	src.iterate(func(flat int) {
		srcOffsets = append(srcOffsets, flat)
	})
	i := 0
	dst.iterate(func(flat int) {
		dst.storeFlat(flat, src.rawFlat(srcOffsets[i]))
		i++
	})
}
