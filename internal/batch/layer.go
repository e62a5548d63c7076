// Package batch implements the vmap batching-rule engine: it maps logical
// tensor operations (batch dimension hidden) onto physical operations on the
// underlying tensor, and maps the results back.
package batch

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// Layer is one active vmap nesting context. Layer ids strictly increase with
// nesting depth, so a tensor's level identifies which enclosing vmap wrapped
// it.
type Layer struct {
	id int
}

// ID returns the layer's level identifier.
func (l Layer) ID() int {
	return l.id
}

// The layer stack is process-wide. Rules only ever read the innermost
// visible layer; pushing and popping is the business of the Vmap driver.
// `excluded` hides that many innermost layers from dispatch per goroutine:
// it is the batched-dispatch suppression used when a rule delegates a call
// to the plain implementation, and it must not leak into rule calls running
// concurrently on other goroutines.
var layerState = struct {
	mu       sync.Mutex
	layers   []Layer
	nextID   int
	excluded map[uint64]int
}{excluded: make(map[uint64]int)}

// goroutineID extracts the current goroutine's id from its stack header.
// There is no cheaper portable way to scope the dispatch suppression to the
// calling goroutine without threading a handle through every rule.
func goroutineID() uint64 {
	var buf [64]byte
	head := buf[:runtime.Stack(buf[:], false)]
	head = bytes.TrimPrefix(head, []byte("goroutine "))
	if i := bytes.IndexByte(head, ' '); i >= 0 {
		head = head[:i]
	}
	id, err := strconv.ParseUint(string(head), 10, 64)
	if err != nil {
		panic("batch: cannot parse goroutine id: " + err.Error())
	}
	return id
}

// PushLayer enters a new batching context and returns it together with a pop
// function. The pop function must be called exactly once, on every exit path
// (use defer).
func PushLayer() (Layer, func()) {
	layerState.mu.Lock()
	defer layerState.mu.Unlock()
	layerState.nextID++
	l := Layer{id: layerState.nextID}
	layerState.layers = append(layerState.layers, l)
	return l, func() {
		layerState.mu.Lock()
		defer layerState.mu.Unlock()
		n := len(layerState.layers)
		if n == 0 || layerState.layers[n-1].id != l.id {
			panic("batch: vmap levels popped out of order")
		}
		layerState.layers = layerState.layers[:n-1]
	}
}

// MaybeCurrentLayer returns the innermost batching context visible to
// dispatch, or false if none is active (or all are excluded).
func MaybeCurrentLayer() (Layer, bool) {
	gid := goroutineID()
	layerState.mu.Lock()
	defer layerState.mu.Unlock()
	n := len(layerState.layers) - layerState.excluded[gid]
	if n <= 0 {
		return Layer{}, false
	}
	return layerState.layers[n-1], true
}

// ExcludeBatched suppresses batched dispatch for the current innermost layer
// and returns a restore function. The restore function must run on every
// exit path, including early returns and failures:
//
//	defer ExcludeBatched()()
//
// While suppressed, MaybeCurrentLayer reports the next outer layer (or
// none), so a delegated call executes as if the current vmap level did not
// exist. Nested guards suppress successive layers. The suppression is scoped
// to the calling goroutine; concurrent rule calls elsewhere keep dispatching
// at the innermost layer.
func ExcludeBatched() func() {
	gid := goroutineID()
	layerState.mu.Lock()
	defer layerState.mu.Unlock()
	layerState.excluded[gid]++
	return func() {
		layerState.mu.Lock()
		defer layerState.mu.Unlock()
		n := layerState.excluded[gid]
		if n == 0 {
			panic("batch: unbalanced batched-dispatch exclusion")
		}
		if n == 1 {
			delete(layerState.excluded, gid)
		} else {
			layerState.excluded[gid] = n - 1
		}
	}
}

// participatesInCurrentLevel reports whether t is batched at the innermost
// visible level. Calling it with no active level is an internal invariant
// violation.
func participatesInCurrentLevel(t *Tensor) bool {
	layer, ok := MaybeCurrentLayer()
	if !ok {
		panic("batch: batching rule invoked with no active vmap level")
	}
	if t.batched == nil {
		return false
	}
	if t.batched.level > layer.id {
		panic("batch: tensor batched at a level deeper than the current one")
	}
	return t.batched.level == layer.id
}

// anyParticipatesInCurrentLevel reports whether any tensor in the list is
// batched at the innermost visible level.
func anyParticipatesInCurrentLevel(ts []*Tensor) bool {
	for _, t := range ts {
		if participatesInCurrentLevel(t) {
			return true
		}
	}
	return false
}

// redispatch runs a call with batched dispatch suppressed for the current
// level. If an outer level remains active the call re-enters the batching
// rule (again) so tensors batched at that outer level are handled there;
// otherwise it executes the plain implementation (plain). The suppression is
// restored on every exit path.
func redispatch[T any](again func() (T, error), plain func() (T, error)) (T, error) {
	defer ExcludeBatched()()
	if _, ok := MaybeCurrentLayer(); ok {
		return again()
	}
	return plain()
}
