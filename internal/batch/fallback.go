package batch

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// PlainOp is one operator of the plain tensor library, boxed for the
// fallback path: tensors in, tensors out.
type PlainOp func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error)

var (
	fallbackWarned          sync.Map // op name -> struct{}
	fallbackWarningsSilence atomic.Bool
)

// SetFallbackWarnings toggles the once-per-operator performance warning
// emitted when an operator without a batching rule takes the for-loop path.
// Warnings are on by default.
func SetFallbackWarnings(enabled bool) {
	fallbackWarningsSilence.Store(!enabled)
}

// ForLoopFallback executes an operator with no registered batching rule by
// looping over the batch: it slices every participating operand at each
// batch index, runs the plain operator on the per-example inputs, and
// stacks each output slot along a fresh leading batch dimension. Correct
// but slow; a performance warning is logged once per operator name.
func ForLoopFallback(opName string, op PlainOp, inputs []*Tensor) ([]*Tensor, error) {
	if !anyParticipatesInCurrentLevel(inputs) {
		return redispatch(
			func() ([]*Tensor, error) { return ForLoopFallback(opName, op, inputs) },
			func() ([]*Tensor, error) {
				result, err := op(unwrapAll(inputs))
				if err != nil {
					return nil, err
				}
				return wrapAll(result), nil
			})
	}

	if !fallbackWarningsSilence.Load() {
		if _, warned := fallbackWarned.LoadOrStore(opName, struct{}{}); !warned {
			klog.Warningf("vmap: no batching rule registered for %q, falling back to a per-example loop; "+
				"this may be much slower than a dedicated rule", opName)
		}
	}
	klog.V(2).Infof("vmap: for-loop fallback running %q", opName)

	views, err := logicalToPhysicalMulti(inputs)
	if err != nil {
		return nil, err
	}
	physTensors := viewTensors(views)
	batchSize := physTensors[0].Size(0)
	if batchSize == 0 {
		return nil, errors.Errorf("vmap: for-loop fallback for %q over an empty batch", opName)
	}

	var perSlot [][]*tensor.Tensor
	for i := 0; i < batchSize; i++ {
		exampleInputs := make([]*tensor.Tensor, len(physTensors))
		for j, t := range physTensors {
			slice, err := t.Select(0, i)
			if err != nil {
				return nil, err
			}
			exampleInputs[j] = slice
		}
		outputs, err := op(exampleInputs)
		if err != nil {
			return nil, errors.Wrapf(err, "vmap: for-loop fallback for %q at batch index %d", opName, i)
		}
		if perSlot == nil {
			perSlot = make([][]*tensor.Tensor, len(outputs))
		} else if len(outputs) != len(perSlot) {
			return nil, errors.Errorf(
				"vmap: for-loop fallback for %q produced %d outputs at batch index %d, expected %d",
				opName, len(outputs), i, len(perSlot))
		}
		for s, out := range outputs {
			u, err := out.Unsqueeze(0)
			if err != nil {
				return nil, err
			}
			perSlot[s] = append(perSlot[s], u)
		}
	}

	m := views[0].PhysicalToLogicalMap()
	results := make([]*Tensor, len(perSlot))
	for s, pieces := range perSlot {
		stacked, err := tensor.Cat(pieces, 0)
		if err != nil {
			return nil, err
		}
		results[s] = m.Apply(stacked)
	}
	return results, nil
}

// UnwrapAndCall lifts a unary plain operator into a batching rule: bypass
// when the input does not participate, otherwise run the operator on the
// physical value directly and re-wrap the result with the input's own
// (bdim, level). Only valid for operators that treat every dimension
// uniformly, so the batch axis can ride along untouched.
func UnwrapAndCall(op func(*tensor.Tensor) (*tensor.Tensor, error)) func(*Tensor) (*Tensor, error) {
	var rule func(*Tensor) (*Tensor, error)
	rule = func(input *Tensor) (*Tensor, error) {
		if !participatesInCurrentLevel(input) {
			return redispatch(
				func() (*Tensor, error) { return rule(input) },
				func() (*Tensor, error) {
					result, err := op(input.value)
					if err != nil {
						return nil, err
					}
					return Wrap(result), nil
				})
		}
		result, err := op(input.value)
		if err != nil {
			return nil, err
		}
		return MakeBatched(result, input.batched.bdim, input.batched.level), nil
	}
	return rule
}
