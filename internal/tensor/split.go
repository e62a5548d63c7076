package tensor

import "fmt"

// Splitting operations. Every returned tensor is a view aliasing the input's
// storage.

// SplitWithSizes splits dim into consecutive pieces of the given sizes,
// which must sum to the dimension's size.
func SplitWithSizes(t *Tensor, splitSizes []int, dim int) ([]*Tensor, error) {
	d, err := wrapDim(dim, t.Dim())
	if err != nil {
		return nil, fmt.Errorf("SplitWithSizes: %w", err)
	}
	if t.Dim() == 0 {
		return nil, fmt.Errorf("SplitWithSizes: cannot split a scalar tensor")
	}
	total := 0
	for i, s := range splitSizes {
		if s < 0 {
			return nil, fmt.Errorf("SplitWithSizes: negative split size %d at index %d", s, i)
		}
		total += s
	}
	if total != t.shape[d] {
		return nil, fmt.Errorf("SplitWithSizes: split sizes sum to %d, but dimension %d has size %d",
			total, d, t.shape[d])
	}

	results := make([]*Tensor, len(splitSizes))
	offset := 0
	for i, size := range splitSizes {
		piece, err := t.Narrow(d, offset, size)
		if err != nil {
			return nil, fmt.Errorf("SplitWithSizes: %w", err)
		}
		results[i] = piece
		offset += size
	}
	return results, nil
}

// Split splits dim into equal pieces of splitSize; the last piece may be
// smaller.
func Split(t *Tensor, splitSize, dim int) ([]*Tensor, error) {
	d, err := wrapDim(dim, t.Dim())
	if err != nil {
		return nil, fmt.Errorf("Split: %w", err)
	}
	if t.Dim() == 0 {
		return nil, fmt.Errorf("Split: cannot split a scalar tensor")
	}
	size := t.shape[d]
	if splitSize <= 0 {
		if splitSize == 0 && size == 0 {
			return []*Tensor{t.view(t.shape.Clone(), append([]int(nil), t.stride...), t.offset)}, nil
		}
		return nil, fmt.Errorf("Split: split size must be positive, got %d", splitSize)
	}
	var sizes []int
	for remaining := size; remaining > 0; remaining -= splitSize {
		sizes = append(sizes, min(splitSize, remaining))
	}
	if len(sizes) == 0 {
		sizes = []int{0}
	}
	return SplitWithSizes(t, sizes, d)
}

// Chunk splits dim into up to chunks pieces of equal size; the last piece is
// smaller when the dimension does not divide evenly, and fewer pieces are
// returned when even the ceiling split exhausts the dimension early.
func Chunk(t *Tensor, chunks, dim int) ([]*Tensor, error) {
	if chunks <= 0 {
		return nil, fmt.Errorf("Chunk: number of chunks must be positive, got %d", chunks)
	}
	d, err := wrapDim(dim, t.Dim())
	if err != nil {
		return nil, fmt.Errorf("Chunk: %w", err)
	}
	if t.Dim() == 0 {
		return nil, fmt.Errorf("Chunk: cannot chunk a scalar tensor")
	}
	splitSize := (t.shape[d] + chunks - 1) / chunks
	return Split(t, max(splitSize, 1), d)
}

// TensorSplitSections splits dim into exactly sections pieces. Unlike Chunk,
// uneven sizes are spread: the first size%sections pieces get one extra
// element.
func TensorSplitSections(t *Tensor, sections, dim int) ([]*Tensor, error) {
	if sections <= 0 {
		return nil, fmt.Errorf("TensorSplitSections: number of sections must be positive, got %d", sections)
	}
	d, err := wrapDim(dim, t.Dim())
	if err != nil {
		return nil, fmt.Errorf("TensorSplitSections: %w", err)
	}
	if t.Dim() == 0 {
		return nil, fmt.Errorf("TensorSplitSections: cannot split a scalar tensor")
	}
	size := t.shape[d]
	minSize, extra := size/sections, size%sections
	sizes := make([]int, sections)
	for i := range sizes {
		sizes[i] = minSize
		if i < extra {
			sizes[i]++
		}
	}
	return SplitWithSizes(t, sizes, d)
}

// TensorSplitIndices splits dim at the given indices, producing
// len(indices)+1 pieces covering [0, i0), [i0, i1), ..., [ik, size).
func TensorSplitIndices(t *Tensor, indices []int, dim int) ([]*Tensor, error) {
	d, err := wrapDim(dim, t.Dim())
	if err != nil {
		return nil, fmt.Errorf("TensorSplitIndices: %w", err)
	}
	if t.Dim() == 0 {
		return nil, fmt.Errorf("TensorSplitIndices: cannot split a scalar tensor")
	}
	size := t.shape[d]
	results := make([]*Tensor, 0, len(indices)+1)
	start := 0
	for _, idx := range append(append([]int(nil), indices...), size) {
		if idx < 0 {
			idx += size
		}
		end := min(max(idx, 0), size)
		// An out-of-order index yields an empty piece; the next piece
		// still begins at this index.
		piece, err := t.Narrow(d, min(start, end), max(end-start, 0))
		if err != nil {
			return nil, fmt.Errorf("TensorSplitIndices: %w", err)
		}
		results = append(results, piece)
		start = end
	}
	return results, nil
}

// Unbind removes dim and returns a view per slice along it.
func Unbind(t *Tensor, dim int) ([]*Tensor, error) {
	d, err := wrapDim(dim, t.Dim())
	if err != nil {
		return nil, fmt.Errorf("Unbind: %w", err)
	}
	if t.Dim() == 0 {
		return nil, fmt.Errorf("Unbind: cannot unbind a scalar tensor")
	}
	results := make([]*Tensor, t.shape[d])
	for i := range results {
		piece, err := t.Select(d, i)
		if err != nil {
			return nil, fmt.Errorf("Unbind: %w", err)
		}
		results[i] = piece
	}
	return results, nil
}
