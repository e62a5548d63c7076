package batch

import (
	"sync"

	"k8s.io/klog/v2"
)

// Rule registration.
//
// The dispatcher that routes an operator call here lives outside this
// package; this table is the registration surface it consumes. Each rule is
// registered under the plain operator surface's name for the overload it
// handles. An operator with no entry goes through ForLoopFallback.

var ruleRegistry struct {
	mu    sync.RWMutex
	rules map[string]any
}

// RegisterRule registers a batching rule under an operator name. Registering
// the same name twice is an internal invariant violation.
func RegisterRule(name string, rule any) {
	ruleRegistry.mu.Lock()
	defer ruleRegistry.mu.Unlock()
	if ruleRegistry.rules == nil {
		ruleRegistry.rules = make(map[string]any)
	}
	if _, dup := ruleRegistry.rules[name]; dup {
		panic("batch: duplicate batching rule registration for " + name)
	}
	ruleRegistry.rules[name] = rule
	klog.V(2).Infof("vmap: registered batching rule for %q", name)
}

// LookupRule returns the rule registered under an operator name.
func LookupRule(name string) (any, bool) {
	ruleRegistry.mu.RLock()
	defer ruleRegistry.mu.RUnlock()
	rule, ok := ruleRegistry.rules[name]
	return rule, ok
}

// RegisteredRules returns the operator names with a dedicated rule;
// everything else takes the for-loop fallback.
func RegisteredRules() []string {
	ruleRegistry.mu.RLock()
	defer ruleRegistry.mu.RUnlock()
	names := make([]string, 0, len(ruleRegistry.rules))
	for name := range ruleRegistry.rules {
		names = append(names, name)
	}
	return names
}

func init() {
	// Multi-output shape ops.
	RegisterRule("tensor_split.sections", TensorSplitSections)
	RegisterRule("tensor_split.indices", TensorSplitIndices)
	RegisterRule("split.Tensor", Split)
	RegisterRule("split_with_sizes", SplitWithSizes)
	RegisterRule("unbind.int", Unbind)
	RegisterRule("chunk", Chunk)

	// Joining ops.
	RegisterRule("cat", Cat)
	RegisterRule("block_diag", BlockDiag)
	RegisterRule("stack", Stack)

	// In-place ops that adjust batching metadata.
	RegisterRule("squeeze_", Squeeze_)
	RegisterRule("squeeze_.dim", SqueezeDim_)
	RegisterRule("unsqueeze_", Unsqueeze_)
	RegisterRule("transpose_", Transpose_)
	RegisterRule("transpose.int", Transpose)
	RegisterRule("fill_.Scalar", FillScalar_)
	RegisterRule("fill_.Tensor", FillTensor_)
	RegisterRule("zero_", Zero_)

	// Strided view construction and allocation.
	RegisterRule("as_strided", AsStrided)
	RegisterRule("new_empty_strided", NewEmptyStrided)

	// Gradient-support ops.
	RegisterRule("select_backward", SelectBackward)
	RegisterRule("slice_backward", SliceBackward)
}
