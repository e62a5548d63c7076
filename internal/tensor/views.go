package tensor

import "fmt"

// View operations. Every function in this file returns a tensor aliasing the
// receiver's storage; no element data is copied. In-place variants (trailing
// underscore, mirroring the mutating-op naming of the operator surface)
// rewrite the receiver's own metadata instead of building a new view.

// AsStrided returns a view with explicit sizes, strides and storage offset.
// The requested geometry must stay within the underlying storage.
func (t *Tensor) AsStrided(sizes Shape, strides []int, storageOffset int) (*Tensor, error) {
	if len(sizes) != len(strides) {
		return nil, fmt.Errorf("AsStrided: sizes %v and strides %v must have the same length", sizes, strides)
	}
	if err := sizes.Validate(); err != nil {
		return nil, fmt.Errorf("AsStrided: %w", err)
	}
	for i, s := range strides {
		if s < 0 {
			return nil, fmt.Errorf("AsStrided: negative stride %d at dim %d not supported", s, i)
		}
	}
	if storageOffset < 0 {
		return nil, fmt.Errorf("AsStrided: negative storage offset %d", storageOffset)
	}
	span := StorageSize(sizes, strides)
	if span > 0 && storageOffset+span > t.storage.elems {
		return nil, fmt.Errorf("AsStrided: sizes %v, strides %v, offset %d address %d elements but storage holds %d",
			sizes, strides, storageOffset, storageOffset+span, t.storage.elems)
	}
	return t.view(sizes.Clone(), append([]int(nil), strides...), storageOffset), nil
}

// Narrow returns a view of length elements of dim starting at start.
func (t *Tensor) Narrow(dim, start, length int) (*Tensor, error) {
	d, err := wrapDim(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("Narrow: %w", err)
	}
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("Narrow: cannot narrow a scalar tensor")
	}
	if start < 0 || length < 0 || start+length > t.shape[d] {
		return nil, fmt.Errorf("Narrow: invalid range [%d, %d) for dimension %d of size %d",
			start, start+length, d, t.shape[d])
	}
	shape := t.shape.Clone()
	shape[d] = length
	return t.view(shape, append([]int(nil), t.stride...), t.offset+start*t.stride[d]), nil
}

// Select returns a view of the index-th slice along dim, with dim removed.
func (t *Tensor) Select(dim, index int) (*Tensor, error) {
	d, err := wrapDim(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("Select: %w", err)
	}
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("Select: cannot select from a scalar tensor")
	}
	if index < 0 || index >= t.shape[d] {
		return nil, fmt.Errorf("Select: index %d out of range for dimension %d of size %d", index, d, t.shape[d])
	}
	shape := make(Shape, 0, len(t.shape)-1)
	stride := make([]int, 0, len(t.shape)-1)
	for i := range t.shape {
		if i == d {
			continue
		}
		shape = append(shape, t.shape[i])
		stride = append(stride, t.stride[i])
	}
	return t.view(shape, stride, t.offset+index*t.stride[d]), nil
}

// SliceDim returns a strided view of elements [start, end) of dim with the
// given step, like the slicing form of indexing.
func (t *Tensor) SliceDim(dim, start, end, step int) (*Tensor, error) {
	d, err := wrapDim(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("SliceDim: %w", err)
	}
	if step <= 0 {
		return nil, fmt.Errorf("SliceDim: step must be positive, got %d", step)
	}
	if len(t.shape) == 0 {
		return nil, fmt.Errorf("SliceDim: cannot slice a scalar tensor")
	}
	size := t.shape[d]
	if start < 0 {
		start += size
	}
	if end < 0 {
		end += size
	}
	start = min(max(start, 0), size)
	end = min(max(end, start), size)
	shape := t.shape.Clone()
	stride := append([]int(nil), t.stride...)
	shape[d] = (end - start + step - 1) / step
	stride[d] = t.stride[d] * step
	return t.view(shape, stride, t.offset+start*t.stride[d]), nil
}

// Transpose returns a view with dims dim0 and dim1 swapped.
func (t *Tensor) Transpose(dim0, dim1 int) (*Tensor, error) {
	d0, err := wrapDim(dim0, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("Transpose: %w", err)
	}
	d1, err := wrapDim(dim1, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("Transpose: %w", err)
	}
	// Rank-0 admits dims 0 and -1 only, both naming the same phantom axis,
	// so the swap is a no-op.
	if len(t.shape) == 0 {
		return t.view(t.shape.Clone(), append([]int(nil), t.stride...), t.offset), nil
	}
	shape := t.shape.Clone()
	stride := append([]int(nil), t.stride...)
	shape[d0], shape[d1] = shape[d1], shape[d0]
	stride[d0], stride[d1] = stride[d1], stride[d0]
	return t.view(shape, stride, t.offset), nil
}

// Transpose_ swaps dims dim0 and dim1 of the receiver in place.
func (t *Tensor) Transpose_(dim0, dim1 int) error {
	v, err := t.Transpose(dim0, dim1)
	if err != nil {
		return err
	}
	t.setMetadata(v.shape, v.stride, v.offset)
	return nil
}

// MoveDim returns a view with dimension src moved to position dst, the other
// dimensions keeping their order.
func (t *Tensor) MoveDim(src, dst int) (*Tensor, error) {
	s, err := wrapDim(src, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("MoveDim: %w", err)
	}
	d, err := wrapDim(dst, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("MoveDim: %w", err)
	}
	if s == d {
		return t.view(t.shape.Clone(), append([]int(nil), t.stride...), t.offset), nil
	}
	shape := make(Shape, 0, len(t.shape))
	stride := make([]int, 0, len(t.shape))
	for i := range t.shape {
		if i == s {
			continue
		}
		shape = append(shape, t.shape[i])
		stride = append(stride, t.stride[i])
	}
	shape = append(shape[:d], append(Shape{t.shape[s]}, shape[d:]...)...)
	stride = append(stride[:d], append([]int{t.stride[s]}, stride[d:]...)...)
	return t.view(shape, stride, t.offset), nil
}

// Unsqueeze returns a view with a size-1 dimension inserted at dim.
func (t *Tensor) Unsqueeze(dim int) (*Tensor, error) {
	d, err := wrapDim(dim, len(t.shape)+1)
	if err != nil {
		return nil, fmt.Errorf("Unsqueeze: %w", err)
	}
	shape := make(Shape, 0, len(t.shape)+1)
	stride := make([]int, 0, len(t.shape)+1)
	shape = append(shape, t.shape[:d]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[d:]...)
	stride = append(stride, t.stride[:d]...)
	// Stride of the new axis follows the convention for size-1 dims: the
	// element count it would step over, so the view stays contiguous when
	// the input was.
	if d < len(t.shape) {
		stride = append(stride, t.shape[d]*t.stride[d])
	} else {
		stride = append(stride, 1)
	}
	stride = append(stride, t.stride[d:]...)
	return t.view(shape, stride, t.offset), nil
}

// Unsqueeze_ inserts a size-1 dimension at dim in place.
func (t *Tensor) Unsqueeze_(dim int) error {
	v, err := t.Unsqueeze(dim)
	if err != nil {
		return err
	}
	t.setMetadata(v.shape, v.stride, v.offset)
	return nil
}

// SqueezeDim returns a view with dimension dim removed if its size is 1.
// Squeezing a dim of size != 1 is a no-op, matching the operator surface.
func (t *Tensor) SqueezeDim(dim int) (*Tensor, error) {
	d, err := wrapDim(dim, len(t.shape))
	if err != nil {
		return nil, fmt.Errorf("SqueezeDim: %w", err)
	}
	if len(t.shape) == 0 || t.shape[d] != 1 {
		return t.view(t.shape.Clone(), append([]int(nil), t.stride...), t.offset), nil
	}
	shape := make(Shape, 0, len(t.shape)-1)
	stride := make([]int, 0, len(t.shape)-1)
	for i := range t.shape {
		if i == d {
			continue
		}
		shape = append(shape, t.shape[i])
		stride = append(stride, t.stride[i])
	}
	return t.view(shape, stride, t.offset), nil
}

// SqueezeDim_ removes dimension dim in place if its size is 1.
func (t *Tensor) SqueezeDim_(dim int) error {
	v, err := t.SqueezeDim(dim)
	if err != nil {
		return err
	}
	t.setMetadata(v.shape, v.stride, v.offset)
	return nil
}

// Squeeze returns a view with all size-1 dimensions removed.
func (t *Tensor) Squeeze() *Tensor {
	shape := make(Shape, 0, len(t.shape))
	stride := make([]int, 0, len(t.shape))
	for i := range t.shape {
		if t.shape[i] == 1 {
			continue
		}
		shape = append(shape, t.shape[i])
		stride = append(stride, t.stride[i])
	}
	return t.view(shape, stride, t.offset)
}

// Squeeze_ removes all size-1 dimensions in place.
func (t *Tensor) Squeeze_() {
	v := t.Squeeze()
	t.setMetadata(v.shape, v.stride, v.offset)
}

// Expand returns a broadcast view with the given sizes. Singleton dims are
// expanded via a zero stride; new leading dims may be added. Expanded views
// alias every source element at several logical positions.
func (t *Tensor) Expand(sizes Shape) (*Tensor, error) {
	if len(sizes) < len(t.shape) {
		return nil, fmt.Errorf("Expand: target %v has fewer dims than tensor shape %v", sizes, t.shape)
	}
	lead := len(sizes) - len(t.shape)
	shape := sizes.Clone()
	stride := make([]int, len(sizes))
	for i := range sizes {
		if i < lead {
			if sizes[i] < 0 {
				return nil, fmt.Errorf("Expand: invalid size %d for new dimension %d", sizes[i], i)
			}
			stride[i] = 0
			continue
		}
		src := i - lead
		switch {
		case sizes[i] == t.shape[src] || sizes[i] == -1:
			shape[i] = t.shape[src]
			stride[i] = t.stride[src]
		case t.shape[src] == 1:
			stride[i] = 0
		default:
			return nil, fmt.Errorf("Expand: cannot expand dim %d from size %d to %d", src, t.shape[src], sizes[i])
		}
	}
	return t.view(shape, stride, t.offset), nil
}
