package batch

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// Logical-to-physical transforms.
//
// A batching rule works in three steps: convert the logical (batched)
// operands into physical views, run the plain operation with physical
// dimension indices, and re-wrap the physical results back into logical
// batched tensors. PhysicalView is the call-scoped product of the first
// step; PhysicalToLogicalMap performs the last. Neither is ever persisted
// across calls.

// PhysicalView pairs a physical tensor whose leading dimensions are the
// batch dimensions with the metadata needed to map dimension indices and
// results between the logical and physical worlds.
type PhysicalView struct {
	tensor       *tensor.Tensor
	level        int
	numBatchDims int
}

// Tensor returns the physical tensor, batch dimensions at the front.
func (v PhysicalView) Tensor() *tensor.Tensor {
	return v.tensor
}

// NumBatchDims returns how many leading dimensions are batch dimensions.
func (v PhysicalView) NumBatchDims() int {
	return v.numBatchDims
}

// PhysicalDim maps a logical dimension index to the physical one: wrap into
// the logical range, then renumber around the leading batch dimensions.
func (v PhysicalView) PhysicalDim(logicalDim int) (int, error) {
	d, err := WrapDim(logicalDim, v.tensor.Dim()-v.numBatchDims)
	if err != nil {
		return 0, err
	}
	return d + v.numBatchDims, nil
}

// PhysicalShape prepends the batch dimension sizes to a logical shape.
func (v PhysicalView) PhysicalShape(logical tensor.Shape) tensor.Shape {
	shape := make(tensor.Shape, 0, v.numBatchDims+len(logical))
	shape = append(shape, v.tensor.Shape()[:v.numBatchDims]...)
	return append(shape, logical...)
}

// PhysicalToLogicalMap returns the map that re-wraps physical results
// produced under this view. One map may apply to several result tensors of
// a multi-output operation.
func (v PhysicalView) PhysicalToLogicalMap() PhysicalToLogicalMap {
	return PhysicalToLogicalMap{level: v.level}
}

// PhysicalToLogicalMap re-attaches batching metadata to physical-shaped
// result tensors. Results carry their batch dimension at the front, so the
// re-wrapped tensors have bdim 0 at the map's level.
type PhysicalToLogicalMap struct {
	level int
}

// Apply re-wraps one physical result as a logical batched tensor.
func (m PhysicalToLogicalMap) Apply(t *tensor.Tensor) *Tensor {
	return MakeBatched(t, 0, m.level)
}

// ApplyList re-wraps every element of a physical result list with the same
// metadata.
func (m PhysicalToLogicalMap) ApplyList(ts []*tensor.Tensor) []*Tensor {
	out := make([]*Tensor, len(ts))
	for i, t := range ts {
		out[i] = m.Apply(t)
	}
	return out
}

// logicalToPhysical converts one batched tensor into its physical view,
// moving the batch dimension to the front. The tensor must participate in
// the current level; anything else is an internal invariant violation
// because the participation guard runs first in every rule.
func logicalToPhysical(t *Tensor) PhysicalView {
	if t.batched == nil {
		panic("batch: logicalToPhysical on a plain tensor")
	}
	phys := t.value
	if t.batched.bdim != 0 {
		moved, err := phys.MoveDim(t.batched.bdim, 0)
		if err != nil {
			panic(fmt.Sprintf("batch: %v", err))
		}
		phys = moved
	}
	return PhysicalView{tensor: phys, level: t.batched.level, numBatchDims: 1}
}

// logicalToPhysicalMulti converts several operands into physical views
// sharing one batch-dimension layout. Operands batched at the current level
// are moved batch-dim-front; plain operands are broadcast along a fresh
// batch dimension. All participating operands must agree on the batch size,
// and mixing in tensors batched at an outer level is not supported.
func logicalToPhysicalMulti(ts []*Tensor) ([]PhysicalView, error) {
	layer, ok := MaybeCurrentLayer()
	if !ok {
		panic("batch: logicalToPhysicalMulti with no active vmap level")
	}

	batchSize := -1
	for _, t := range ts {
		if participatesInCurrentLevel(t) {
			size := t.value.Size(t.batched.bdim)
			if batchSize == -1 {
				batchSize = size
			} else if size != batchSize {
				return nil, errors.Errorf(
					"vmap: inconsistent batch sizes %d and %d across operands", batchSize, size)
			}
		} else if t.batched != nil {
			return nil, errors.Errorf(
				"vmap: mixing tensors batched at an outer level (%d) into a level-%d operation is not supported",
				t.batched.level, layer.id)
		}
	}
	if batchSize == -1 {
		panic("batch: logicalToPhysicalMulti with no participating operand")
	}

	views := make([]PhysicalView, len(ts))
	for i, t := range ts {
		if participatesInCurrentLevel(t) {
			views[i] = logicalToPhysical(t)
			continue
		}
		u, err := t.value.Unsqueeze(0)
		if err != nil {
			return nil, errors.Wrap(err, "vmap: aligning unbatched operand")
		}
		shape := append(tensor.Shape{batchSize}, t.value.Shape()...)
		expanded, err := u.Expand(shape)
		if err != nil {
			return nil, errors.Wrap(err, "vmap: aligning unbatched operand")
		}
		views[i] = PhysicalView{tensor: expanded, level: layer.id, numBatchDims: 1}
	}
	return views, nil
}
