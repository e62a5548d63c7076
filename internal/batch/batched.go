package batch

import (
	"fmt"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// batchedMeta is the batching decoration of a tensor: which vmap level owns
// it and which physical dimension is the batch axis. The logical shape and
// strides are derived metadata, recomputed whenever the physical value or
// bdim changes.
type batchedMeta struct {
	level int
	bdim  int

	logicalShape  tensor.Shape
	logicalStride []int
}

// Tensor is the unit the batching layer operates on: either a plain tensor
// or a batched one. The two cases are distinguished explicitly at each
// rule's entry; there is no virtual dispatch.
type Tensor struct {
	value   *tensor.Tensor
	batched *batchedMeta // nil for plain tensors
}

// Wrap adapts a plain tensor for use with the batching rules.
func Wrap(t *tensor.Tensor) *Tensor {
	return &Tensor{value: t}
}

// MakeBatched wraps a physical tensor as batched at the given level, with
// physical dimension bdim as the batch axis.
func MakeBatched(value *tensor.Tensor, bdim, level int) *Tensor {
	if bdim < 0 || bdim >= value.Dim() {
		panic(fmt.Sprintf("batch: bdim %d out of range for physical rank %d", bdim, value.Dim()))
	}
	t := &Tensor{
		value:   value,
		batched: &batchedMeta{level: level, bdim: bdim},
	}
	t.refreshMetadata()
	return t
}

// IsBatched reports whether the tensor carries batching metadata.
func (t *Tensor) IsBatched() bool {
	return t.batched != nil
}

// Value returns the physical tensor: the real underlying tensor, batch
// dimension included.
func (t *Tensor) Value() *tensor.Tensor {
	return t.value
}

// Level returns the vmap level owning the tensor. Panics on plain tensors.
func (t *Tensor) Level() int {
	if t.batched == nil {
		panic("batch: Level on a plain tensor")
	}
	return t.batched.level
}

// Bdim returns the physical index of the batch dimension. Panics on plain
// tensors.
func (t *Tensor) Bdim() int {
	if t.batched == nil {
		panic("batch: Bdim on a plain tensor")
	}
	return t.batched.bdim
}

// Dim returns the logical rank: what a user-facing operation perceives, the
// batch dimension hidden.
func (t *Tensor) Dim() int {
	if t.batched == nil {
		return t.value.Dim()
	}
	return len(t.batched.logicalShape)
}

// Sizes returns the logical shape. The returned slice must not be mutated.
func (t *Tensor) Sizes() tensor.Shape {
	if t.batched == nil {
		return t.value.Shape()
	}
	return t.batched.logicalShape
}

// Size returns the logical size of the given dimension (negative indices
// allowed).
func (t *Tensor) Size(dim int) (int, error) {
	d, err := WrapDim(dim, t.Dim())
	if err != nil {
		return 0, err
	}
	return t.Sizes()[d], nil
}

// DType returns the element type.
func (t *Tensor) DType() tensor.DataType {
	return t.value.DType()
}

// refreshMetadata recomputes the cached logical shape and strides from the
// physical tensor and bdim. In-place rules must call this after every
// physical mutation; it is a no-op on plain tensors.
func (t *Tensor) refreshMetadata() {
	if t.batched == nil {
		return
	}
	m := t.batched
	physShape := t.value.Shape()
	physStride := t.value.Strides()
	if m.bdim < 0 || m.bdim >= len(physShape) {
		panic(fmt.Sprintf("batch: bdim %d out of range for physical rank %d", m.bdim, len(physShape)))
	}
	m.logicalShape = make(tensor.Shape, 0, len(physShape)-1)
	m.logicalStride = make([]int, 0, len(physShape)-1)
	for i := range physShape {
		if i == m.bdim {
			continue
		}
		m.logicalShape = append(m.logicalShape, physShape[i])
		m.logicalStride = append(m.logicalStride, physStride[i])
	}
}

// unsafeSetBdim moves the batch axis without touching the physical value.
// Callers must pair it with the matching physical mutation and then refresh
// the metadata.
func (t *Tensor) unsafeSetBdim(bdim int) {
	if t.batched == nil {
		panic("batch: unsafeSetBdim on a plain tensor")
	}
	t.batched.bdim = bdim
}

// String returns a human-readable representation.
func (t *Tensor) String() string {
	if t.batched == nil {
		return t.value.String()
	}
	return fmt.Sprintf("BatchedTensor(lvl=%d, bdim=%d, physical=%v)",
		t.batched.level, t.batched.bdim, t.value.Shape())
}
