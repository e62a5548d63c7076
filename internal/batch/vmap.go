package batch

import (
	"github.com/pkg/errors"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// Vmap runs fn once over a whole batch: each input's dimension 0 is hidden
// from fn, which sees per-example logical tensors and may call the batching
// rules on them. Outputs batched at this level come back with their batch
// dimension restored at the front; outputs that ignored the batch are
// broadcast across it.
//
// Vmap calls nest: an inner Vmap opens a deeper level and tensors batched at
// the outer level pass through its rules untouched.
func Vmap(fn func(inputs []*Tensor) ([]*Tensor, error), inputs ...*tensor.Tensor) ([]*tensor.Tensor, error) {
	if len(inputs) == 0 {
		return nil, errors.New("vmap: at least one input tensor required")
	}
	batchSize := -1
	for i, in := range inputs {
		if in.Dim() == 0 {
			return nil, errors.Errorf("vmap: input %d is a scalar; inputs need a dimension 0 to map over", i)
		}
		if batchSize == -1 {
			batchSize = in.Size(0)
		} else if in.Size(0) != batchSize {
			return nil, errors.Errorf("vmap: input %d has batch size %d, expected %d", i, in.Size(0), batchSize)
		}
	}

	layer, pop := PushLayer()
	defer pop()

	batched := make([]*Tensor, len(inputs))
	for i, in := range inputs {
		batched[i] = MakeBatched(in, 0, layer.ID())
	}

	outputs, err := fn(batched)
	if err != nil {
		return nil, err
	}

	results := make([]*tensor.Tensor, len(outputs))
	for i, out := range outputs {
		if out == nil {
			return nil, errors.Errorf("vmap: fn returned a nil tensor at output %d", i)
		}
		if out.batched != nil {
			if out.batched.level == layer.ID() {
				results[i] = logicalToPhysical(out).Tensor()
				continue
			}
			// An output batched at an enclosing level cannot be unwrapped
			// here: its batch axis belongs to the outer vmap, and
			// broadcasting the physical value would demote that axis to
			// plain data.
			return nil, errors.Errorf(
				"vmap: output %d is batched at enclosing level %d, not this level %d; return it from the enclosing vmap instead",
				i, out.batched.level, layer.ID())
		}
		// The function's output did not depend on the mapped dimension;
		// replicate it across the batch.
		u, err := out.value.Unsqueeze(0)
		if err != nil {
			return nil, err
		}
		shape := append(tensor.Shape{batchSize}, out.value.Shape()...)
		expanded, err := u.Expand(shape)
		if err != nil {
			return nil, err
		}
		results[i] = expanded
	}
	return results, nil
}
