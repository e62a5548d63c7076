package tensor

import "fmt"

// Joining operations. Unlike the view-producing splits, these materialize a
// fresh contiguous tensor and copy every input into it.

// Cat concatenates tensors along the specified dimension.
// All tensors must share dtype and rank and agree on every size except dim.
func Cat(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Cat: at least one tensor required")
	}
	first := tensors[0]
	if first.Dim() == 0 {
		return nil, fmt.Errorf("Cat: cannot concatenate scalar tensors")
	}
	d, err := wrapDim(dim, first.Dim())
	if err != nil {
		return nil, fmt.Errorf("Cat: %w", err)
	}

	catSize := 0
	for i, t := range tensors {
		if t.dtype != first.dtype {
			return nil, fmt.Errorf("Cat: dtype mismatch: tensor 0 is %s, tensor %d is %s", first.dtype, i, t.dtype)
		}
		if t.Dim() != first.Dim() {
			return nil, fmt.Errorf("Cat: rank mismatch: tensor 0 has %d dims, tensor %d has %d", first.Dim(), i, t.Dim())
		}
		for j := range t.shape {
			if j != d && t.shape[j] != first.shape[j] {
				return nil, fmt.Errorf("Cat: size mismatch at dim %d: tensor 0 has %d, tensor %d has %d",
					j, first.shape[j], i, t.shape[j])
			}
		}
		catSize += t.shape[d]
	}

	outShape := first.shape.Clone()
	outShape[d] = catSize
	out := Empty(outShape, first.dtype)

	offset := 0
	for _, t := range tensors {
		if t.shape[d] == 0 {
			continue
		}
		dst, err := out.Narrow(d, offset, t.shape[d])
		if err != nil {
			return nil, fmt.Errorf("Cat: %w", err)
		}
		if err := dst.Copy_(t); err != nil {
			return nil, fmt.Errorf("Cat: %w", err)
		}
		offset += t.shape[d]
	}
	return out, nil
}

// Stack concatenates tensors along a fresh dimension inserted at dim.
// All tensors must have identical shapes.
func Stack(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("Stack: at least one tensor required")
	}
	first := tensors[0]
	d, err := wrapDim(dim, first.Dim()+1)
	if err != nil {
		return nil, fmt.Errorf("Stack: %w", err)
	}

	unsqueezed := make([]*Tensor, len(tensors))
	for i, t := range tensors {
		if !t.shape.Equal(first.shape) {
			return nil, fmt.Errorf("Stack: shape mismatch: tensor 0 is %v, tensor %d is %v", first.shape, i, t.shape)
		}
		u, err := t.Unsqueeze(d)
		if err != nil {
			return nil, fmt.Errorf("Stack: %w", err)
		}
		unsqueezed[i] = u
	}
	return Cat(unsqueezed, d)
}

// BlockDiag builds a block-diagonal matrix from the inputs. Scalars are
// treated as 1x1 blocks and vectors of length n as 1xn blocks; inputs with
// more than two dimensions are rejected.
func BlockDiag(tensors []*Tensor) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, fmt.Errorf("BlockDiag: at least one tensor required")
	}

	blocks := make([]*Tensor, len(tensors))
	rows, cols := 0, 0
	for i, t := range tensors {
		if t.dtype != tensors[0].dtype {
			return nil, fmt.Errorf("BlockDiag: dtype mismatch: tensor 0 is %s, tensor %d is %s",
				tensors[0].dtype, i, t.dtype)
		}
		b := t
		for b.Dim() < 2 {
			u, err := b.Unsqueeze(0)
			if err != nil {
				return nil, fmt.Errorf("BlockDiag: %w", err)
			}
			b = u
		}
		if b.Dim() > 2 {
			return nil, fmt.Errorf("BlockDiag: tensor %d has %d dimensions, at most 2 supported", i, t.Dim())
		}
		blocks[i] = b
		rows += b.shape[0]
		cols += b.shape[1]
	}

	out := Zeros(Shape{rows, cols}, tensors[0].dtype)
	r, c := 0, 0
	for _, b := range blocks {
		dst, err := out.Narrow(0, r, b.shape[0])
		if err != nil {
			return nil, fmt.Errorf("BlockDiag: %w", err)
		}
		dst, err = dst.Narrow(1, c, b.shape[1])
		if err != nil {
			return nil, fmt.Errorf("BlockDiag: %w", err)
		}
		if err := dst.Copy_(b); err != nil {
			return nil, fmt.Errorf("BlockDiag: %w", err)
		}
		r += b.shape[0]
		c += b.shape[1]
	}
	return out, nil
}
