package tensor

import (
	"fmt"
	"unsafe"

	"github.com/x448/float16"
)

// storage is a buffer shared by every view of the same tensor data. Views
// differ only in their (shape, stride, offset) metadata.
type storage struct {
	data  []byte
	elems int // capacity in elements
}

func newStorage(elems int, dtype DataType) *storage {
	return &storage{
		data:  make([]byte, elems*dtype.Size()),
		elems: elems,
	}
}

// Tensor is a strided view onto shared storage. The element at logical
// index (i0, i1, ...) lives at storage element offset + sum(ik * stride[k]).
// Several tensors may alias the same storage; view operations never copy.
type Tensor struct {
	storage *storage
	shape   Shape
	stride  []int
	dtype   DataType
	offset  int // in elements, not bytes
}

// Shape returns the tensor's shape. The returned slice must not be mutated.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the tensor's strides. The returned slice must not be mutated.
func (t *Tensor) Strides() []int {
	return t.stride
}

// Dim returns the number of dimensions.
func (t *Tensor) Dim() int {
	return len(t.shape)
}

// Size returns the size of the given dimension. Accepts negative indices.
func (t *Tensor) Size(dim int) int {
	d, err := wrapDim(dim, len(t.shape))
	if err != nil {
		panic(fmt.Sprintf("Size: %v", err))
	}
	return t.shape[d]
}

// Stride returns the stride of the given dimension. Accepts negative indices.
func (t *Tensor) Stride(dim int) int {
	d, err := wrapDim(dim, len(t.shape))
	if err != nil {
		panic(fmt.Sprintf("Stride: %v", err))
	}
	return t.stride[d]
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// StorageOffset returns the view's element offset into its storage.
func (t *Tensor) StorageOffset() int {
	return t.offset
}

// StorageElems returns the capacity of the underlying storage in elements.
func (t *Tensor) StorageElems() int {
	return t.storage.elems
}

// NumElements returns the total number of elements addressed by the view.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// SharesStorageWith reports whether two tensors alias the same storage.
func (t *Tensor) SharesStorageWith(other *Tensor) bool {
	return t.storage == other.storage
}

// IsContiguous reports whether the view is laid out in dense row-major order.
func (t *Tensor) IsContiguous() bool {
	expected := 1
	for i := len(t.shape) - 1; i >= 0; i-- {
		if t.shape[i] == 1 {
			continue
		}
		if t.stride[i] != expected {
			return false
		}
		expected *= t.shape[i]
	}
	return true
}

// view constructs a new view sharing this tensor's storage.
func (t *Tensor) view(shape Shape, stride []int, offset int) *Tensor {
	return &Tensor{
		storage: t.storage,
		shape:   shape,
		stride:  stride,
		dtype:   t.dtype,
		offset:  offset,
	}
}

// setMetadata swaps the view's own metadata in place. Used by the in-place
// shape ops; the storage and dtype never change.
func (t *Tensor) setMetadata(shape Shape, stride []int, offset int) {
	t.shape = shape
	t.stride = stride
	t.offset = offset
}

// Typed full-storage slices. Indexing is always offset + strided element
// index, so the views start at the storage base, not at t.offset.

func (t *Tensor) float32s() []float32 {
	d := t.storage.data
	if len(d) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&d[0])), t.storage.elems)
}

func (t *Tensor) float64s() []float64 {
	d := t.storage.data
	if len(d) == 0 {
		return nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&d[0])), t.storage.elems)
}

func (t *Tensor) float16s() []uint16 {
	d := t.storage.data
	if len(d) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&d[0])), t.storage.elems)
}

func (t *Tensor) int32s() []int32 {
	d := t.storage.data
	if len(d) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&d[0])), t.storage.elems)
}

func (t *Tensor) int64s() []int64 {
	d := t.storage.data
	if len(d) == 0 {
		return nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&d[0])), t.storage.elems)
}

func (t *Tensor) uint8s() []uint8 {
	return t.storage.data
}

func (t *Tensor) bools() []bool {
	d := t.storage.data
	if len(d) == 0 {
		return nil
	}
	return unsafe.Slice((*bool)(unsafe.Pointer(&d[0])), t.storage.elems)
}

// loadFlat reads the element at an absolute storage offset. Float16 is
// widened to float32 on the way out.
func (t *Tensor) loadFlat(flat int) any {
	switch t.dtype {
	case Float32:
		return t.float32s()[flat]
	case Float64:
		return t.float64s()[flat]
	case Float16:
		return float16.Float16(t.float16s()[flat]).Float32()
	case Int32:
		return t.int32s()[flat]
	case Int64:
		return t.int64s()[flat]
	case Uint8:
		return t.uint8s()[flat]
	case Bool:
		return t.bools()[flat]
	default:
		panic("unknown data type")
	}
}

// storeFlat writes a canonical scalar (see DataType.convertScalar) at an
// absolute storage offset.
func (t *Tensor) storeFlat(flat int, v any) {
	switch t.dtype {
	case Float32:
		t.float32s()[flat] = v.(float32)
	case Float64:
		t.float64s()[flat] = v.(float64)
	case Float16:
		t.float16s()[flat] = v.(uint16)
	case Int32:
		t.int32s()[flat] = v.(int32)
	case Int64:
		t.int64s()[flat] = v.(int64)
	case Uint8:
		t.uint8s()[flat] = v.(uint8)
	case Bool:
		t.bools()[flat] = v.(bool)
	default:
		panic("unknown data type")
	}
}

// rawFlat reads the element at an absolute storage offset without widening,
// for same-dtype moves.
func (t *Tensor) rawFlat(flat int) any {
	if t.dtype == Float16 {
		return t.float16s()[flat]
	}
	return t.loadFlat(flat)
}

// flatIndex computes the storage offset of the element at the given indices.
func (t *Tensor) flatIndex(indices []int) int {
	if len(indices) != len(t.shape) {
		panic(fmt.Sprintf("expected %d indices, got %d", len(t.shape), len(indices)))
	}
	flat := t.offset
	for i, idx := range indices {
		if idx < 0 || idx >= t.shape[i] {
			panic(fmt.Sprintf("index %d out of bounds for dimension %d (size %d)", idx, i, t.shape[i]))
		}
		flat += idx * t.stride[i]
	}
	return flat
}

// At returns the element at the given indices. Float16 elements are
// returned as float32.
func (t *Tensor) At(indices ...int) any {
	return t.loadFlat(t.flatIndex(indices))
}

// SetAt sets the element at the given indices, coercing v to the dtype.
func (t *Tensor) SetAt(v any, indices ...int) error {
	cv, err := t.dtype.convertScalar(v)
	if err != nil {
		return err
	}
	t.storeFlat(t.flatIndex(indices), cv)
	return nil
}

// Float32At is a typed convenience accessor for tests and examples.
func (t *Tensor) Float32At(indices ...int) float32 {
	v, ok := t.At(indices...).(float32)
	if !ok {
		panic(fmt.Sprintf("Float32At: tensor dtype is %s", t.dtype))
	}
	return v
}

// iterate calls f with the absolute storage offset of every element, in
// row-major logical order. A scalar yields exactly one offset.
func (t *Tensor) iterate(f func(flat int)) {
	rank := len(t.shape)
	if rank == 0 {
		f(t.offset)
		return
	}
	for _, size := range t.shape {
		if size == 0 {
			return
		}
	}
	idx := make([]int, rank)
	flat := t.offset
	for {
		f(flat)
		d := rank - 1
		for ; d >= 0; d-- {
			idx[d]++
			flat += t.stride[d]
			if idx[d] < t.shape[d] {
				break
			}
			flat -= idx[d] * t.stride[d]
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// Equal reports whether two tensors have the same dtype, shape and elements.
func Equal(a, b *Tensor) bool {
	if a.dtype != b.dtype || !a.shape.Equal(b.shape) {
		return false
	}
	offsets := make([]int, 0, b.NumElements())
	b.iterate(func(flat int) { offsets = append(offsets, flat) })
	i := 0
	equal := true
	a.iterate(func(flat int) {
		if a.rawFlat(flat) != b.rawFlat(offsets[i]) {
			equal = false
		}
		i++
	})
	return equal
}

// Clone returns a contiguous deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	out := Empty(t.shape.Clone(), t.dtype)
	if err := out.Copy_(t); err != nil {
		panic(fmt.Sprintf("Clone: %v", err)) // shapes match by construction
	}
	return out
}

// Contiguous returns the tensor itself if already dense row-major, or a
// contiguous copy otherwise.
func (t *Tensor) Contiguous() *Tensor {
	if t.IsContiguous() {
		return t
	}
	return t.Clone()
}

// String returns a human-readable representation of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%s]%v strides=%v offset=%d", t.dtype, t.shape, t.stride, t.offset)
}
