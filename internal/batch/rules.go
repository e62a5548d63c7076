package batch

import (
	"github.com/pkg/errors"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// Batching rules.
//
// A batching rule implements the logic of calling one operator on operands
// that carry a hidden batch dimension. The shared shape of every rule:
//
//  1. Bypass: if no operand participates in the current vmap level, delegate
//     to the plain implementation with batched dispatch suppressed for this
//     one call (redispatch), so tensors batched at an outer level compose
//     correctly.
//  2. Convert logical operands to physical views (batch dims at the front).
//  3. Run the plain operator with dimension indices remapped to physical.
//  4. Re-wrap the physical results through the view's map.
//
// In-place rules skip the physical view and instead adjust the operand's
// (bdim, physical value) pair directly, refreshing derived metadata after
// the physical mutation succeeds.

func wrapAll(ts []*tensor.Tensor) []*Tensor {
	out := make([]*Tensor, len(ts))
	for i, t := range ts {
		out[i] = Wrap(t)
	}
	return out
}

func unwrapAll(ts []*Tensor) []*tensor.Tensor {
	out := make([]*tensor.Tensor, len(ts))
	for i, t := range ts {
		out[i] = t.value
	}
	return out
}

func viewTensors(views []PhysicalView) []*tensor.Tensor {
	out := make([]*tensor.Tensor, len(views))
	for i, v := range views {
		out[i] = v.Tensor()
	}
	return out
}

// Chunk splits self into up to chunks pieces along dim.
func Chunk(self *Tensor, chunks, dim int) ([]*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() ([]*Tensor, error) { return Chunk(self, chunks, dim) },
			func() ([]*Tensor, error) {
				result, err := tensor.Chunk(self.value, chunks, dim)
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}
	physical := logicalToPhysical(self)
	d, err := physical.PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.Chunk(physical.Tensor(), chunks, d)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().ApplyList(result), nil
}

// TensorSplitSections splits self into exactly sections pieces along dim.
func TensorSplitSections(self *Tensor, sections, dim int) ([]*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() ([]*Tensor, error) { return TensorSplitSections(self, sections, dim) },
			func() ([]*Tensor, error) {
				result, err := tensor.TensorSplitSections(self.value, sections, dim)
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}
	physical := logicalToPhysical(self)
	d, err := physical.PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.TensorSplitSections(physical.Tensor(), sections, d)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().ApplyList(result), nil
}

// TensorSplitIndices splits self at explicit indices along dim.
func TensorSplitIndices(self *Tensor, indices []int, dim int) ([]*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() ([]*Tensor, error) { return TensorSplitIndices(self, indices, dim) },
			func() ([]*Tensor, error) {
				result, err := tensor.TensorSplitIndices(self.value, indices, dim)
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}
	physical := logicalToPhysical(self)
	d, err := physical.PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.TensorSplitIndices(physical.Tensor(), indices, d)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().ApplyList(result), nil
}

// Split splits self into pieces of splitSize along dim.
func Split(self *Tensor, splitSize, dim int) ([]*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() ([]*Tensor, error) { return Split(self, splitSize, dim) },
			func() ([]*Tensor, error) {
				result, err := tensor.Split(self.value, splitSize, dim)
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}
	physical := logicalToPhysical(self)
	d, err := physical.PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.Split(physical.Tensor(), splitSize, d)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().ApplyList(result), nil
}

// SplitWithSizes splits self into pieces of explicit sizes along dim.
func SplitWithSizes(self *Tensor, splitSizes []int, dim int) ([]*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() ([]*Tensor, error) { return SplitWithSizes(self, splitSizes, dim) },
			func() ([]*Tensor, error) {
				result, err := tensor.SplitWithSizes(self.value, splitSizes, dim)
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}
	physical := logicalToPhysical(self)
	d, err := physical.PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.SplitWithSizes(physical.Tensor(), splitSizes, d)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().ApplyList(result), nil
}

// Unbind removes dim and returns one tensor per slice along it.
func Unbind(self *Tensor, dim int) ([]*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() ([]*Tensor, error) { return Unbind(self, dim) },
			func() ([]*Tensor, error) {
				result, err := tensor.Unbind(self.value, dim)
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}
	physical := logicalToPhysical(self)
	d, err := physical.PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.Unbind(physical.Tensor(), d)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().ApplyList(result), nil
}

// Cat concatenates the operands along dim.
func Cat(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, errors.New("vmap: cat expects a non-empty list of tensors")
	}
	if !anyParticipatesInCurrentLevel(tensors) {
		return redispatch(
			func() (*Tensor, error) { return Cat(tensors, dim) },
			func() (*Tensor, error) {
				result, err := tensor.Cat(unwrapAll(tensors), dim)
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	views, err := logicalToPhysicalMulti(tensors)
	if err != nil {
		return nil, err
	}
	d, err := views[0].PhysicalDim(dim)
	if err != nil {
		return nil, err
	}
	result, err := tensor.Cat(viewTensors(views), d)
	if err != nil {
		return nil, err
	}
	return views[0].PhysicalToLogicalMap().Apply(result), nil
}

// Stack concatenates the operands along a fresh dimension.
func Stack(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, errors.New("vmap: stack expects a non-empty list of tensors")
	}
	if !anyParticipatesInCurrentLevel(tensors) {
		return redispatch(
			func() (*Tensor, error) { return Stack(tensors, dim) },
			func() (*Tensor, error) {
				result, err := tensor.Stack(unwrapAll(tensors), dim)
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	views, err := logicalToPhysicalMulti(tensors)
	if err != nil {
		return nil, err
	}
	// Stack inserts the new dimension before wrapping, so the dim wraps
	// into logical rank + 1 rather than going through PhysicalDim. This
	// off-by-one is unique to stack.
	d, err := WrapDim(dim, tensors[0].Dim()+1)
	if err != nil {
		return nil, err
	}
	result, err := tensor.Stack(viewTensors(views), views[0].NumBatchDims()+d)
	if err != nil {
		return nil, err
	}
	return views[0].PhysicalToLogicalMap().Apply(result), nil
}

// BlockDiag builds a block-diagonal matrix from the operands.
//
// There is no single physical call expressing a batch of block-diagonal
// constructions, so this rule falls back to an explicit per-example loop:
// it slices every operand at each batch index, builds that example's
// block-diagonal result, and stacks the results along a fresh leading batch
// dimension. This is a known performance cliff. It assumes exactly one
// batch dimension of uniform size across all operands; nested vmap levels
// reaching this rule simultaneously are rejected as unsupported.
func BlockDiag(tensors []*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, errors.New("vmap: block_diag expects a non-empty list of tensors")
	}
	if !anyParticipatesInCurrentLevel(tensors) {
		return redispatch(
			func() (*Tensor, error) { return BlockDiag(tensors) },
			func() (*Tensor, error) {
				result, err := tensor.BlockDiag(unwrapAll(tensors))
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	views, err := logicalToPhysicalMulti(tensors)
	if err != nil {
		return nil, err
	}
	physTensors := viewTensors(views)

	batchSize := physTensors[0].Size(0)
	perExample := make([]*tensor.Tensor, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		inputs := make([]*tensor.Tensor, len(physTensors))
		for j, t := range physTensors {
			slice, err := t.Select(0, i)
			if err != nil {
				return nil, err
			}
			inputs[j] = slice
		}
		out, err := tensor.BlockDiag(inputs)
		if err != nil {
			return nil, err
		}
		u, err := out.Unsqueeze(0)
		if err != nil {
			return nil, err
		}
		perExample = append(perExample, u)
	}
	result, err := tensor.Cat(perExample, 0)
	if err != nil {
		return nil, err
	}
	return views[0].PhysicalToLogicalMap().Apply(result), nil
}

// SqueezeDim_ removes dim from self in place if its size is 1.
func SqueezeDim_(self *Tensor, dim int) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return SqueezeDim_(self, dim) },
			func() (*Tensor, error) {
				if err := self.value.SqueezeDim_(dim); err != nil {
					return nil, err
				}
				return self, nil
			})
	}
	bdim := self.batched.bdim
	logicalDim := self.Dim()

	// Squeezing a dim of a logically scalar tensor is a no-op.
	if logicalDim == 0 {
		return self, nil
	}

	d, err := WrapDim(dim, logicalDim)
	if err != nil {
		return nil, err
	}
	if d >= bdim {
		if err := self.value.SqueezeDim_(d + 1); err != nil {
			return nil, err
		}
		self.refreshMetadata()
		return self, nil
	}

	// Squeezing a dim whose size is not 1 is a no-op.
	if self.value.Size(d) != 1 {
		return self, nil
	}

	// d < bdim: removing a physical axis before the batch axis shifts it.
	if err := self.value.SqueezeDim_(d); err != nil {
		return nil, err
	}
	self.unsafeSetBdim(bdim - 1)
	self.refreshMetadata()
	return self, nil
}

// Squeeze_ removes every size-1 logical dim from self in place. The batch
// axis itself must survive even when its size is 1, so that case squeezes
// physically and then reinserts a size-1 axis at the batch position.
func Squeeze_(self *Tensor) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return Squeeze_(self) },
			func() (*Tensor, error) {
				self.value.Squeeze_()
				return self, nil
			})
	}
	bdim := self.batched.bdim
	physShape := self.value.Shape()

	// The new batch position is the old one minus the squeezed-away size-1
	// axes before it.
	newBdim := bdim
	for i := 0; i < bdim; i++ {
		if physShape[i] == 1 {
			newBdim--
		}
	}

	if physShape[bdim] != 1 {
		self.value.Squeeze_()
	} else {
		self.value.Squeeze_()
		if err := self.value.Unsqueeze_(newBdim); err != nil {
			return nil, err
		}
	}
	self.unsafeSetBdim(newBdim)
	self.refreshMetadata()
	return self, nil
}

// Unsqueeze_ inserts a size-1 dim at dim in place.
func Unsqueeze_(self *Tensor, dim int) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return Unsqueeze_(self, dim) },
			func() (*Tensor, error) {
				if err := self.value.Unsqueeze_(dim); err != nil {
					return nil, err
				}
				return self, nil
			})
	}
	d, err := WrapDim(dim, self.Dim()+1)
	if err != nil {
		return nil, err
	}
	bdim := self.batched.bdim
	newBdim := bdim
	if d >= bdim {
		d++
	} else {
		// The new axis lands before the batch axis and pushes it over.
		newBdim++
	}
	if err := self.value.Unsqueeze_(d); err != nil {
		return nil, err
	}
	self.unsafeSetBdim(newBdim)
	self.refreshMetadata()
	return self, nil
}

// Transpose_ swaps two logical dims of self in place.
func Transpose_(self *Tensor, dim0, dim1 int) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return Transpose_(self, dim0, dim1) },
			func() (*Tensor, error) {
				if err := self.value.Transpose_(dim0, dim1); err != nil {
					return nil, err
				}
				return self, nil
			})
	}
	logicalDim := self.Dim()

	// The operator surface lets scalar_tensor.transpose(0, -1) through as a
	// no-op, so a batch of per-example scalars replicates that.
	if logicalDim == 0 && isAllowedDimOnScalarTensor(dim0) && isAllowedDimOnScalarTensor(dim1) {
		return self, nil
	}

	d0, err := WrapDim(dim0, logicalDim)
	if err != nil {
		return nil, err
	}
	d1, err := WrapDim(dim1, logicalDim)
	if err != nil {
		return nil, err
	}
	bdim := self.batched.bdim
	if d0 >= bdim {
		d0++
	}
	if d1 >= bdim {
		d1++
	}
	if err := self.value.Transpose_(d0, d1); err != nil {
		return nil, err
	}
	self.refreshMetadata()
	return self, nil
}

// Transpose returns a view of self with two logical dims swapped.
func Transpose(self *Tensor, dim0, dim1 int) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return Transpose(self, dim0, dim1) },
			func() (*Tensor, error) {
				result, err := self.value.Transpose(dim0, dim1)
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	if self.Dim() == 0 && isAllowedDimOnScalarTensor(dim0) && isAllowedDimOnScalarTensor(dim1) {
		return self, nil
	}
	physical := logicalToPhysical(self)
	d0, err := physical.PhysicalDim(dim0)
	if err != nil {
		return nil, err
	}
	d1, err := physical.PhysicalDim(dim1)
	if err != nil {
		return nil, err
	}
	result, err := physical.Tensor().Transpose(d0, d1)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().Apply(result), nil
}

// FillScalar_ fills self with a scalar in place.
func FillScalar_(self *Tensor, value any) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return FillScalar_(self, value) },
			func() (*Tensor, error) {
				if err := self.value.Fill_(value); err != nil {
					return nil, err
				}
				return self, nil
			})
	}
	physical := logicalToPhysical(self)
	if err := physical.Tensor().Fill_(value); err != nil {
		return nil, err
	}
	self.refreshMetadata()
	return self, nil
}

// FillTensor_ fills self with a tensor value in place. A batched value is
// broadcast-aligned with self before the physical copy; a batched value
// cannot be written into an unbatched self (there is no single per-example
// value to pick).
func FillTensor_(self *Tensor, value *Tensor) (*Tensor, error) {
	if !participatesInCurrentLevel(self) && !participatesInCurrentLevel(value) {
		return redispatch(
			func() (*Tensor, error) { return FillTensor_(self, value) },
			func() (*Tensor, error) {
				if err := self.value.Copy_(value.value); err != nil {
					return nil, err
				}
				return self, nil
			})
	}
	if participatesInCurrentLevel(value) {
		if !participatesInCurrentLevel(self) {
			return nil, errors.New(
				"vmap: fill_ cannot write a value batched at the current level into an unbatched tensor")
		}
		views, err := logicalToPhysicalMulti([]*Tensor{self, value})
		if err != nil {
			return nil, err
		}
		// Align the value's example rank with self's: batch dims stay at the
		// front and size-1 dims pad in after them, so the physical copy
		// broadcasts per example.
		src := views[1].Tensor()
		for src.Dim() < views[0].Tensor().Dim() {
			u, err := src.Unsqueeze(views[1].NumBatchDims())
			if err != nil {
				return nil, err
			}
			src = u
		}
		if err := views[0].Tensor().Copy_(src); err != nil {
			return nil, err
		}
	} else {
		physical := logicalToPhysical(self)
		if err := physical.Tensor().Copy_(value.value); err != nil {
			return nil, err
		}
	}
	self.refreshMetadata()
	return self, nil
}

// Zero_ zeroes self in place.
func Zero_(self *Tensor) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return Zero_(self) },
			func() (*Tensor, error) {
				self.value.Zero_()
				return self, nil
			})
	}
	physical := logicalToPhysical(self)
	physical.Tensor().Zero_()
	self.refreshMetadata()
	return self, nil
}

// gradInputPhysicalDim maps the dim argument of a gradient-support op to the
// physical dimension of the zero-filled gradient input.
func gradInputPhysicalDim(dim int, inputSizes tensor.Shape, numBatchDims int) (int, error) {
	d, err := WrapDim(dim, len(inputSizes))
	if err != nil {
		return 0, err
	}
	return d + numBatchDims, nil
}

// SelectBackward scatters grad into a zero tensor of shape inputSizes at
// index along dim: the backward formula of select, dimension indices
// shifted by the batch-dimension count.
func SelectBackward(grad *Tensor, inputSizes tensor.Shape, dim, index int) (*Tensor, error) {
	if !participatesInCurrentLevel(grad) {
		return redispatch(
			func() (*Tensor, error) { return SelectBackward(grad, inputSizes, dim, index) },
			func() (*Tensor, error) {
				result, err := selectBackwardPlain(grad.value, inputSizes, dim, index)
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	physical := logicalToPhysical(grad)
	gradInput := tensor.Zeros(physical.PhysicalShape(inputSizes), grad.DType())
	d, err := gradInputPhysicalDim(dim, inputSizes, physical.NumBatchDims())
	if err != nil {
		return nil, err
	}
	if index < 0 {
		index += gradInput.Size(d)
	}
	slice, err := gradInput.Select(d, index)
	if err != nil {
		return nil, err
	}
	if err := slice.Copy_(physical.Tensor()); err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().Apply(gradInput), nil
}

// SliceBackward scatters grad into a zero tensor of shape inputSizes over
// the slice [start, end) with the given step along dim.
func SliceBackward(grad *Tensor, inputSizes tensor.Shape, dim, start, end, step int) (*Tensor, error) {
	if !participatesInCurrentLevel(grad) {
		return redispatch(
			func() (*Tensor, error) { return SliceBackward(grad, inputSizes, dim, start, end, step) },
			func() (*Tensor, error) {
				result, err := sliceBackwardPlain(grad.value, inputSizes, dim, start, end, step)
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	physical := logicalToPhysical(grad)
	gradInput := tensor.Zeros(physical.PhysicalShape(inputSizes), grad.DType())
	d, err := gradInputPhysicalDim(dim, inputSizes, physical.NumBatchDims())
	if err != nil {
		return nil, err
	}
	slice, err := gradInput.SliceDim(d, start, end, step)
	if err != nil {
		return nil, err
	}
	if err := slice.Copy_(physical.Tensor()); err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().Apply(gradInput), nil
}

func selectBackwardPlain(grad *tensor.Tensor, inputSizes tensor.Shape, dim, index int) (*tensor.Tensor, error) {
	gradInput := tensor.Zeros(inputSizes, grad.DType())
	d, err := WrapDim(dim, len(inputSizes))
	if err != nil {
		return nil, err
	}
	if index < 0 {
		index += inputSizes[d]
	}
	slice, err := gradInput.Select(d, index)
	if err != nil {
		return nil, err
	}
	if err := slice.Copy_(grad); err != nil {
		return nil, err
	}
	return gradInput, nil
}

func sliceBackwardPlain(grad *tensor.Tensor, inputSizes tensor.Shape, dim, start, end, step int) (*tensor.Tensor, error) {
	gradInput := tensor.Zeros(inputSizes, grad.DType())
	d, err := WrapDim(dim, len(inputSizes))
	if err != nil {
		return nil, err
	}
	slice, err := gradInput.SliceDim(d, start, end, step)
	if err != nil {
		return nil, err
	}
	if err := slice.Copy_(grad); err != nil {
		return nil, err
	}
	return gradInput, nil
}
