package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// doubleCat is a stand-in for an operator without a batching rule: it
// concatenates its input with itself along dim 0.
func doubleCat(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
	out, err := tensor.Cat([]*tensor.Tensor{inputs[0], inputs[0]}, 0)
	if err != nil {
		return nil, err
	}
	return []*tensor.Tensor{out}, nil
}

func TestForLoopFallbackBatched(t *testing.T) {
	layer := pushLayer(t)
	b := batchedRange(t, layer, tensor.Shape{3, 2})

	outs, err := ForLoopFallback("double_cat", doubleCat, []*Tensor{b})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, tensor.Shape{4}, outs[0].Sizes())
	assert.Equal(t, layer.ID(), outs[0].Level())

	assertMatchesPerExample(t, outs, b.Value(), func(_ int, example *tensor.Tensor) ([]*tensor.Tensor, error) {
		return doubleCat([]*tensor.Tensor{example})
	})
}

func TestForLoopFallbackMixedOperands(t *testing.T) {
	layer := pushLayer(t)
	b := batchedRange(t, layer, tensor.Shape{3, 2})
	p := rangeT(t, tensor.Shape{4})

	catBoth := func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		out, err := tensor.Cat([]*tensor.Tensor{inputs[0], inputs[1]}, 0)
		if err != nil {
			return nil, err
		}
		return []*tensor.Tensor{out}, nil
	}

	outs, err := ForLoopFallback("cat_both", catBoth, []*Tensor{b, Wrap(p)})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, tensor.Shape{6}, outs[0].Sizes())

	assertMatchesPerExample(t, outs, b.Value(), func(_ int, example *tensor.Tensor) ([]*tensor.Tensor, error) {
		return catBoth([]*tensor.Tensor{example, p})
	})
}

func TestForLoopFallbackBypass(t *testing.T) {
	pushLayer(t)
	x := rangeT(t, tensor.Shape{2})

	outs, err := ForLoopFallback("double_cat", doubleCat, []*Tensor{Wrap(x)})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.False(t, outs[0].IsBatched())
	assert.Equal(t, []float32{0, 1, 0, 1}, tensorValues(t, outs[0].Value()))
}

func TestForLoopFallbackEmptyBatch(t *testing.T) {
	layer := pushLayer(t)
	b := MakeBatched(tensor.Zeros(tensor.Shape{0, 2}, tensor.Float32), 0, layer.ID())
	_, err := ForLoopFallback("double_cat", doubleCat, []*Tensor{b})
	assert.ErrorContains(t, err, "empty batch")
}

func TestForLoopFallbackInconsistentOutputCounts(t *testing.T) {
	layer := pushLayer(t)
	b := batchedRange(t, layer, tensor.Shape{2, 3})

	call := 0
	flaky := func(inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		call++
		if call > 1 {
			return []*tensor.Tensor{inputs[0], inputs[0]}, nil
		}
		return []*tensor.Tensor{inputs[0]}, nil
	}
	_, err := ForLoopFallback("flaky", flaky, []*Tensor{b})
	assert.ErrorContains(t, err, "outputs")
}

func TestUnwrapAndCall(t *testing.T) {
	layer := pushLayer(t)
	clone := UnwrapAndCall(func(tn *tensor.Tensor) (*tensor.Tensor, error) {
		return tn.Clone(), nil
	})

	b := MakeBatched(rangeT(t, tensor.Shape{3, 2}), 1, layer.ID())
	out, err := clone(b)
	require.NoError(t, err)
	require.True(t, out.IsBatched())
	// The physical value goes through untouched, so bdim and level persist.
	assert.Equal(t, 1, out.Bdim())
	assert.Equal(t, layer.ID(), out.Level())
	assert.True(t, tensor.Equal(out.Value(), b.Value()))
	assert.False(t, out.Value().SharesStorageWith(b.Value()))

	// Plain input: bypass.
	p, err := clone(Wrap(rangeT(t, tensor.Shape{2})))
	require.NoError(t, err)
	assert.False(t, p.IsBatched())
}
