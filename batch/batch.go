// Copyright 2026 vmap Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package batch provides the public API of the vmap batching-rule engine.
//
// The engine maps logical tensor operations — shapes and dims as a user
// sees them, batch dimension hidden — onto physical operations on the real
// underlying tensor, and maps the results back. The usual entry point is
// Vmap, which hides dimension 0 of its inputs from the mapped function:
//
//	outs, err := batch.Vmap(func(ins []*batch.Tensor) ([]*batch.Tensor, error) {
//	    parts, err := batch.Chunk(ins[0], 2, 1)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return parts, nil
//	}, xs)
package batch

import (
	"github.com/vmap-ml/vmap/internal/batch"
)

// Tensor is the unit the batching rules operate on: a plain tensor or a
// batched one carrying (level, bdim) metadata.
type Tensor = batch.Tensor

// Layer is one active vmap nesting context.
type Layer = batch.Layer

// PhysicalView pairs a physical tensor with its batch-dimension layout.
type PhysicalView = batch.PhysicalView

// PhysicalToLogicalMap re-wraps physical results as logical batched tensors.
type PhysicalToLogicalMap = batch.PhysicalToLogicalMap

// PlainOp is a plain tensor-library operator boxed for the fallback path.
type PlainOp = batch.PlainOp

// Wrapping.

// Wrap adapts a plain tensor for use with the batching rules.
var Wrap = batch.Wrap

// MakeBatched wraps a physical tensor as batched at a level with the given
// batch dimension.
var MakeBatched = batch.MakeBatched

// Layer stack.

// PushLayer enters a new batching context; the returned pop function must
// run on every exit path.
var PushLayer = batch.PushLayer

// MaybeCurrentLayer returns the innermost visible batching context, if any.
var MaybeCurrentLayer = batch.MaybeCurrentLayer

// ExcludeBatched suppresses batched dispatch for the current level until
// the returned restore function runs.
var ExcludeBatched = batch.ExcludeBatched

// Driver.

// Vmap runs a function once over a whole batch, hiding dimension 0 of each
// input.
var Vmap = batch.Vmap

// Batching rules.

// Chunk splits a tensor into up to n pieces along a dimension.
var Chunk = batch.Chunk

// TensorSplitSections splits a tensor into exactly n pieces.
var TensorSplitSections = batch.TensorSplitSections

// TensorSplitIndices splits a tensor at explicit indices.
var TensorSplitIndices = batch.TensorSplitIndices

// Split splits a tensor into pieces of a given size.
var Split = batch.Split

// SplitWithSizes splits a tensor into pieces of explicit sizes.
var SplitWithSizes = batch.SplitWithSizes

// Unbind removes a dimension and returns one tensor per slice.
var Unbind = batch.Unbind

// Cat concatenates tensors along a dimension.
var Cat = batch.Cat

// Stack concatenates tensors along a fresh dimension.
var Stack = batch.Stack

// BlockDiag builds a block-diagonal matrix per example (per-example loop).
var BlockDiag = batch.BlockDiag

// SqueezeDim_ removes a size-1 dimension in place.
var SqueezeDim_ = batch.SqueezeDim_

// Squeeze_ removes all size-1 logical dimensions in place.
var Squeeze_ = batch.Squeeze_

// Unsqueeze_ inserts a size-1 dimension in place.
var Unsqueeze_ = batch.Unsqueeze_

// Transpose_ swaps two logical dimensions in place.
var Transpose_ = batch.Transpose_

// Transpose returns a view with two logical dimensions swapped.
var Transpose = batch.Transpose

// FillScalar_ fills a tensor with a scalar in place.
var FillScalar_ = batch.FillScalar_

// FillTensor_ fills a tensor with a (possibly batched) tensor value in place.
var FillTensor_ = batch.FillTensor_

// Zero_ zeroes a tensor in place.
var Zero_ = batch.Zero_

// AsStrided produces a strided aliasing view per example via one physical call.
var AsStrided = batch.AsStrided

// NewEmptyStrided allocates a fresh physical tensor with per-example geometry.
var NewEmptyStrided = batch.NewEmptyStrided

// SelectBackward is the batched backward formula of select.
var SelectBackward = batch.SelectBackward

// SliceBackward is the batched backward formula of slice.
var SliceBackward = batch.SliceBackward

// Dispatch surface.

// RegisterRule registers a batching rule under an operator name.
var RegisterRule = batch.RegisterRule

// LookupRule returns the rule registered under an operator name.
var LookupRule = batch.LookupRule

// RegisteredRules lists operator names with a dedicated rule.
var RegisteredRules = batch.RegisteredRules

// ForLoopFallback executes an operator with no batching rule by looping
// over the batch.
var ForLoopFallback = batch.ForLoopFallback

// SetFallbackWarnings toggles the for-loop fallback's performance warning.
var SetFallbackWarnings = batch.SetFallbackWarnings

// UnwrapAndCall lifts a unary plain operator into a batching rule.
var UnwrapAndCall = batch.UnwrapAndCall

// WrapDim normalizes a possibly-negative dimension index against a rank.
var WrapDim = batch.WrapDim
