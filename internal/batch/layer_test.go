package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmap-ml/vmap/internal/tensor"
)

func TestLayerStack(t *testing.T) {
	_, ok := MaybeCurrentLayer()
	require.False(t, ok, "no layer should be active at test start")

	outer, popOuter := PushLayer()
	current, ok := MaybeCurrentLayer()
	require.True(t, ok)
	assert.Equal(t, outer.ID(), current.ID())

	inner, popInner := PushLayer()
	assert.Greater(t, inner.ID(), outer.ID(), "layer ids must increase with nesting depth")
	current, ok = MaybeCurrentLayer()
	require.True(t, ok)
	assert.Equal(t, inner.ID(), current.ID())

	popInner()
	current, ok = MaybeCurrentLayer()
	require.True(t, ok)
	assert.Equal(t, outer.ID(), current.ID())

	popOuter()
	_, ok = MaybeCurrentLayer()
	assert.False(t, ok)
}

func TestPopOutOfOrder(t *testing.T) {
	_, popOuter := PushLayer()
	_, popInner := PushLayer()

	assert.Panics(t, func() { popOuter() })

	popInner()
	popOuter()
}

func TestExcludeBatched(t *testing.T) {
	outer := pushLayer(t)
	inner := pushLayer(t)

	restore := ExcludeBatched()
	current, ok := MaybeCurrentLayer()
	require.True(t, ok, "excluding one layer should reveal the outer one")
	assert.Equal(t, outer.ID(), current.ID())

	restore2 := ExcludeBatched()
	_, ok = MaybeCurrentLayer()
	assert.False(t, ok, "excluding both layers should leave none visible")

	restore2()
	current, ok = MaybeCurrentLayer()
	require.True(t, ok)
	assert.Equal(t, outer.ID(), current.ID())

	restore()
	current, ok = MaybeCurrentLayer()
	require.True(t, ok)
	assert.Equal(t, inner.ID(), current.ID())
}

func TestExcludeBatchedIsGoroutineLocal(t *testing.T) {
	layer := pushLayer(t)

	restore := ExcludeBatched()
	defer restore()
	_, ok := MaybeCurrentLayer()
	require.False(t, ok, "the excluding goroutine should see no layer")

	// A concurrent rule call on another goroutine still dispatches at the
	// innermost layer.
	done := make(chan struct{})
	var otherID int
	var otherOK bool
	go func() {
		defer close(done)
		current, ok := MaybeCurrentLayer()
		otherOK = ok
		if ok {
			otherID = current.ID()
		}
	}()
	<-done
	require.True(t, otherOK, "other goroutines must be unaffected by the exclusion")
	assert.Equal(t, layer.ID(), otherID)
}

func TestExcludeUnbalancedRestore(t *testing.T) {
	pushLayer(t)
	restore := ExcludeBatched()
	restore()
	assert.Panics(t, func() { restore() })
}

func TestParticipationRequiresActiveLevel(t *testing.T) {
	x := Wrap(rangeT(t, tensor.Shape{2}))
	assert.Panics(t, func() { participatesInCurrentLevel(x) })
}

func TestParticipation(t *testing.T) {
	outer := pushLayer(t)
	b := batchedRange(t, outer, tensor.Shape{2, 3})
	assert.True(t, participatesInCurrentLevel(b))
	assert.False(t, participatesInCurrentLevel(Wrap(rangeT(t, tensor.Shape{2}))))

	// An outer-level tensor does not participate in a deeper level.
	pushLayer(t)
	assert.False(t, participatesInCurrentLevel(b))
}

func TestParticipationDeeperLevelPanics(t *testing.T) {
	layer := pushLayer(t)
	// Batched at a level deeper than any active one: the metadata escaped its
	// vmap scope.
	b := MakeBatched(rangeT(t, tensor.Shape{2}), 0, layer.ID()+100)
	assert.Panics(t, func() { participatesInCurrentLevel(b) })
}
