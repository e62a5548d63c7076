package batch

import (
	"github.com/pkg/errors"

	"github.com/vmap-ml/vmap/internal/tensor"
)

// The as_strided and new_empty_strided rules. Both take raw (sizes, strides)
// geometry from the caller, which makes them the only rules that have to
// reason about storage bounds themselves instead of leaning on the plain
// operator surface.

// checkBatchDimsAtFrontInLayout verifies that the smallest batch-dimension
// stride is at least the largest example stride, i.e. that the batch dims
// are outermost in memory. A geometry that interleaves batch and example
// strides is expressible but error prone, so it is rejected rather than
// supported. A single stride-0 (degenerate) batch dim passes.
func checkBatchDimsAtFrontInLayout(physicalStrides []int, numBatchDims int) error {
	if numBatchDims >= len(physicalStrides) {
		// No example dimensions.
		return nil
	}
	if numBatchDims == 1 && len(physicalStrides) > 0 && physicalStrides[0] == 0 {
		return nil
	}
	smallestBatchStride := physicalStrides[0]
	for _, s := range physicalStrides[1:numBatchDims] {
		smallestBatchStride = min(smallestBatchStride, s)
	}
	largestExampleStride := physicalStrides[numBatchDims]
	for _, s := range physicalStrides[numBatchDims+1:] {
		largestExampleStride = max(largestExampleStride, s)
	}
	if smallestBatchStride < largestExampleStride {
		return errors.Errorf(
			"vmap: calling as_strided is not supported unless the batch dims being "+
				"vmapped over are at the front of the tensor (in memory layout); "+
				"got physical strides %v with %d batch dim(s). Please express the "+
				"operation in terms of ordinary view operations instead",
			physicalStrides, numBatchDims)
	}
	return nil
}

// checkBasicAsStridedValidForSlice verifies that the memory locations
// reachable by firstSlice.as_strided(sizes, strides, storageOffset) — where
// firstSlice is the physical tensor restricted to its example dims at its
// own storage offset — stay within the locations reachable by that slice
// itself. If this holds for the first slice it holds for every example
// slice, because slice i only shifts both ranges by i times the batch
// stride.
func checkBasicAsStridedValidForSlice(
	physical *tensor.Tensor, numBatchDims int,
	sizes tensor.Shape, strides []int, storageOffset *int,
) error {
	sliceSizes := physical.Shape()[numBatchDims:]
	sliceStrides := physical.Strides()[numBatchDims:]
	baseOffset := physical.StorageOffset()

	offset := baseOffset
	if storageOffset != nil {
		offset = *storageOffset
	}

	maxAsStridedLoc, ok := maximumIndexableLocation(sizes, strides, offset)
	if !ok {
		// A zero-size result addresses no memory; nothing to check.
		return nil
	}
	maxSliceLoc, ok := maximumIndexableLocation(sliceSizes, sliceStrides, baseOffset)
	if !ok {
		return errors.Errorf(
			"vmap: result = tensor.as_strided(%v, %v, %d) can access memory outside of "+
				"`tensor`. `tensor` addresses no storage but the requested "+
				"(sizes, strides, storage_offset) imply a result with some storage. "+
				"Please rewrite the as_strided call as a sequence of ordinary view operations",
			sizes, strides, offset)
	}
	if maxAsStridedLoc > maxSliceLoc || offset < baseOffset {
		return errors.Errorf(
			"vmap: result = tensor.as_strided(%v, %v, %d) can access memory outside of "+
				"`tensor`. `result` can access some memory in range [%d, %d], but `tensor` "+
				"can only access some memory in range [%d, %d]. Please rewrite the "+
				"as_strided call as a sequence of ordinary view operations",
			sizes, strides, offset, offset, maxAsStridedLoc, baseOffset, maxSliceLoc)
	}
	return nil
}

// AsStrided produces a view such that each example slice of the result
// equals that example's own as_strided(sizes, strides, offset +
// example.storageOffset - batched.storageOffset), via a single physical
// as_strided call. A nil storageOffset defaults to the physical tensor's
// own storage offset.
//
// Correctness: if the equivalent per-example call would be valid and stay
// within each example's own storage bounds, then the combined physical call
// (batch sizes + sizes, batch strides + strides, offset) always succeeds and
// aliases exactly the same memory per example — for any number of batch
// dims, since an example's reachable range only shifts by its batch-index
// dot batch-strides. The per-slice bound check above is what establishes
// the premise.
func AsStrided(self *Tensor, sizes tensor.Shape, strides []int, storageOffset *int) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return AsStrided(self, sizes, strides, storageOffset) },
			func() (*Tensor, error) {
				offset := self.value.StorageOffset()
				if storageOffset != nil {
					offset = *storageOffset
				}
				result, err := self.value.AsStrided(sizes, strides, offset)
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	// The plain as_strided would catch this too, but only after the batch
	// geometry has been spliced in; check the user's arguments before any
	// physical work.
	if len(sizes) != len(strides) {
		return nil, errors.Errorf(
			"vmap: as_strided(sizes, strides, ...): sizes and strides must have the same "+
				"length! Got sizes %v and strides %v", sizes, strides)
	}

	physical := logicalToPhysical(self)
	numBatchDims := physical.NumBatchDims()
	physicalSizes := physical.PhysicalShape(sizes)
	physicalTensor := physical.Tensor()

	if err := checkBatchDimsAtFrontInLayout(physicalTensor.Strides(), numBatchDims); err != nil {
		return nil, err
	}
	if err := checkBasicAsStridedValidForSlice(
		physicalTensor, numBatchDims, sizes, strides, storageOffset); err != nil {
		return nil, err
	}

	// physical strides = the physical tensor's batch strides + the
	// requested example strides.
	physicalStrides := make([]int, 0, numBatchDims+len(strides))
	physicalStrides = append(physicalStrides, physicalTensor.Strides()[:numBatchDims]...)
	physicalStrides = append(physicalStrides, strides...)

	offset := physicalTensor.StorageOffset()
	if storageOffset != nil {
		offset = *storageOffset
	}
	result, err := physicalTensor.AsStrided(physicalSizes, physicalStrides, offset)
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().Apply(result), nil
}

// NewEmptyStrided allocates a fresh physical tensor of shape (batch shape +
// sizes). The batch dims are given default contiguous strides scaled by the
// storage size of (sizes, strides), making them outermost-contiguous with
// respect to each other while each example keeps exactly the requested
// geometry — so a per-example contiguous request yields a contiguous
// physical tensor too. This is an allocation, not a view: the result does
// not alias self.
func NewEmptyStrided(self *Tensor, sizes tensor.Shape, strides []int) (*Tensor, error) {
	if !participatesInCurrentLevel(self) {
		return redispatch(
			func() (*Tensor, error) { return NewEmptyStrided(self, sizes, strides) },
			func() (*Tensor, error) {
				result, err := tensor.EmptyStrided(sizes, strides, self.DType())
				if err != nil {
					return nil, err
				}
				return Wrap(result), nil
			})
	}
	physical := logicalToPhysical(self)
	physicalSize := physical.PhysicalShape(sizes)

	if len(sizes) != len(strides) {
		return nil, errors.Errorf(
			"vmap: new_empty_strided(sizes, strides): dimensionality of sizes (%d) must "+
				"match dimensionality of strides (%d)", len(sizes), len(strides))
	}

	batchShape := physical.Tensor().Shape()[:physical.NumBatchDims()]
	storageSize := tensor.StorageSize(sizes, strides)
	physicalStrides := batchShape.ComputeStrides()
	for i := range physicalStrides {
		physicalStrides[i] *= storageSize
	}
	physicalStrides = append(physicalStrides, strides...)

	result, err := tensor.EmptyStrided(physicalSize, physicalStrides, self.DType())
	if err != nil {
		return nil, err
	}
	return physical.PhysicalToLogicalMap().Apply(result), nil
}
