package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmap-ml/vmap/internal/tensor"
)

func TestVmapChunk(t *testing.T) {
	xs := rangeT(t, tensor.Shape{4, 3, 5})

	outs, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) {
		return Chunk(inputs[0], 2, 1)
	}, xs)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, tensor.Shape{4, 3, 3}, outs[0].Shape())
	assert.Equal(t, tensor.Shape{4, 3, 2}, outs[1].Shape())

	// Identical to chunking the whole batch with the dim shifted past the
	// batch axis.
	expected, err := tensor.Chunk(xs, 2, 2)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(outs[0], expected[0]))
	assert.True(t, tensor.Equal(outs[1], expected[1]))

	_, ok := MaybeCurrentLayer()
	assert.False(t, ok, "vmap must pop its layer on the way out")
}

func TestVmapUnbatchedOutputBroadcasts(t *testing.T) {
	xs := rangeT(t, tensor.Shape{3, 2})
	constant := rangeT(t, tensor.Shape{2})

	outs, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) {
		return []*Tensor{Wrap(constant)}, nil
	}, xs)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, tensor.Shape{3, 2}, outs[0].Shape())
	assert.Equal(t, []float32{0, 1, 0, 1, 0, 1}, tensorValues(t, outs[0]))
	// The broadcast is a view, not a materialized copy.
	assert.True(t, outs[0].SharesStorageWith(constant))
}

func TestVmapInputValidation(t *testing.T) {
	_, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) { return inputs, nil })
	assert.ErrorContains(t, err, "at least one input")

	scalar, err := tensor.Full(tensor.Shape{}, float32(1), tensor.Float32)
	require.NoError(t, err)
	_, err = Vmap(func(inputs []*Tensor) ([]*Tensor, error) { return inputs, nil }, scalar)
	assert.ErrorContains(t, err, "scalar")

	_, err = Vmap(func(inputs []*Tensor) ([]*Tensor, error) { return inputs, nil },
		rangeT(t, tensor.Shape{2, 3}), rangeT(t, tensor.Shape{4, 3}))
	assert.ErrorContains(t, err, "batch size")
}

func TestVmapFnErrorPropagates(t *testing.T) {
	_, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) {
		return nil, assert.AnError
	}, rangeT(t, tensor.Shape{2}))
	assert.ErrorIs(t, err, assert.AnError)

	_, ok := MaybeCurrentLayer()
	assert.False(t, ok, "vmap must pop its layer on the error path too")
}

func TestVmapInPlaceRule(t *testing.T) {
	xs := rangeT(t, tensor.Shape{2, 3, 1})

	outs, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) {
		out, err := SqueezeDim_(inputs[0], 1)
		if err != nil {
			return nil, err
		}
		return []*Tensor{out}, nil
	}, xs)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, outs[0].Shape())
}

func TestVmapNested(t *testing.T) {
	xs := rangeT(t, tensor.Shape{2, 4})
	ys := rangeT(t, tensor.Shape{3, 2})

	outs, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) {
		x := inputs[0] // logical [4], batched at the outer level

		var pieces []*Tensor
		innerOuts, err := Vmap(func(inner []*Tensor) ([]*Tensor, error) {
			// Operating on the outer-batched tensor from inside the inner
			// level must dispatch at the outer level.
			var cerr error
			pieces, cerr = Chunk(x, 2, 0)
			if cerr != nil {
				return nil, cerr
			}
			return inner, nil
		}, ys)
		if err != nil {
			return nil, err
		}
		require.Len(t, innerOuts, 1)
		assert.True(t, tensor.Equal(innerOuts[0], ys))

		require.Len(t, pieces, 2)
		return pieces, nil
	}, xs)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, tensor.Shape{2, 2}, outs[0].Shape())

	expected, err := tensor.Chunk(xs, 2, 1)
	require.NoError(t, err)
	assert.True(t, tensor.Equal(outs[0], expected[0]))
	assert.True(t, tensor.Equal(outs[1], expected[1]))
}

func TestVmapRejectsOuterBatchedOutput(t *testing.T) {
	xs := rangeT(t, tensor.Shape{2, 3, 4})
	ys := rangeT(t, tensor.Shape{3, 2})

	// An inner vmap cannot hand back a tensor whose batch axis belongs to
	// the enclosing level; broadcasting its physical value would turn that
	// axis into plain data.
	_, err := Vmap(func(inputs []*Tensor) ([]*Tensor, error) {
		x := inputs[0]
		_, innerErr := Vmap(func(inner []*Tensor) ([]*Tensor, error) {
			return []*Tensor{x}, nil
		}, ys)
		return nil, innerErr
	}, xs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enclosing level")

	_, ok := MaybeCurrentLayer()
	assert.False(t, ok, "vmap must pop its layers on the error path")
}
