// Copyright 2026 vmap Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for the strided tensor substrate
// the vmap engine operates on.
//
// A Tensor is a strided view onto shared storage: shape, strides and an
// element storage offset over a buffer that several views may alias. View
// operations (Narrow, Select, Transpose, AsStrided, ...) never copy data;
// joining operations (Cat, Stack, BlockDiag) materialize fresh storage.
package tensor

import (
	"github.com/vmap-ml/vmap/internal/tensor"
)

// Type aliases for the public API.

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a strided view onto shared storage.
type Tensor = tensor.Tensor

// Creation.

// Empty creates an uninitialized contiguous tensor.
var Empty = tensor.Empty

// EmptyStrided creates a tensor with explicit strides.
var EmptyStrided = tensor.EmptyStrided

// Zeros creates a tensor filled with zeros.
var Zeros = tensor.Zeros

// Full creates a tensor filled with the given scalar.
var Full = tensor.Full

// FromFloat32 creates a Float32 tensor from a Go slice.
var FromFloat32 = tensor.FromFloat32

// Arange creates a 1-D Float32 tensor holding [0, 1, ..., n-1].
var Arange = tensor.Arange

// StorageSize returns the minimal storage span of a (sizes, strides) pair.
var StorageSize = tensor.StorageSize

// Equal reports whether two tensors have the same dtype, shape and elements.
var Equal = tensor.Equal

// Splitting operations (views).

// Chunk splits a tensor into up to n pieces along a dimension.
var Chunk = tensor.Chunk

// Split splits a tensor into pieces of a given size along a dimension.
var Split = tensor.Split

// SplitWithSizes splits a tensor into pieces of explicit sizes.
var SplitWithSizes = tensor.SplitWithSizes

// TensorSplitSections splits a tensor into exactly n pieces.
var TensorSplitSections = tensor.TensorSplitSections

// TensorSplitIndices splits a tensor at explicit indices.
var TensorSplitIndices = tensor.TensorSplitIndices

// Unbind removes a dimension and returns one view per slice along it.
var Unbind = tensor.Unbind

// Joining operations (materializing).

// Cat concatenates tensors along a dimension.
var Cat = tensor.Cat

// Stack concatenates tensors along a fresh dimension.
var Stack = tensor.Stack

// BlockDiag builds a block-diagonal matrix from the inputs.
var BlockDiag = tensor.BlockDiag
