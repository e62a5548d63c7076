package tensor

import "testing"

func TestSplitWithSizes(t *testing.T) {
	x := rangeTensor(t, Shape{6, 2})
	pieces, err := SplitWithSizes(x, []int{1, 2, 3}, 0)
	if err != nil {
		t.Fatalf("SplitWithSizes: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	assertShape(t, pieces[0], Shape{1, 2}, "piece 0")
	assertShape(t, pieces[1], Shape{2, 2}, "piece 1")
	assertShape(t, pieces[2], Shape{3, 2}, "piece 2")
	assertValues(t, pieces[1], []float32{2, 3, 4, 5}, "piece 1")
	for i, p := range pieces {
		if !p.SharesStorageWith(x) {
			t.Errorf("piece %d must alias the source storage", i)
		}
	}

	if _, err := SplitWithSizes(x, []int{1, 2}, 0); err == nil {
		t.Error("expected error when sizes do not sum to the dim size")
	}
}

func TestSplit(t *testing.T) {
	x := rangeTensor(t, Shape{7})
	pieces, err := Split(x, 3, 0)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	assertValues(t, pieces[0], []float32{0, 1, 2}, "piece 0")
	assertValues(t, pieces[2], []float32{6}, "last piece smaller")

	// splitSize 0 on an empty dim returns a single empty view.
	e := Zeros(Shape{0}, Float32)
	pieces, err = Split(e, 0, 0)
	if err != nil {
		t.Fatalf("Split empty: %v", err)
	}
	if len(pieces) != 1 || pieces[0].Size(0) != 0 {
		t.Errorf("expected one empty piece, got %v", pieces)
	}

	if _, err := Split(x, 0, 0); err == nil {
		t.Error("expected error for split size 0 on a non-empty dim")
	}
}

func TestChunk(t *testing.T) {
	x := rangeTensor(t, Shape{4, 5})
	pieces, err := Chunk(x, 2, 1)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	assertShape(t, pieces[0], Shape{4, 3}, "chunk 0")
	assertShape(t, pieces[1], Shape{4, 2}, "chunk 1")

	// Ceiling split can exhaust the dim early: fewer pieces come back.
	y := rangeTensor(t, Shape{5})
	pieces, err = Chunk(y, 3, 0)
	if err != nil {
		t.Fatalf("Chunk uneven: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	assertValues(t, pieces[2], []float32{4}, "last chunk")
}

func TestTensorSplitSections(t *testing.T) {
	x := rangeTensor(t, Shape{7})
	pieces, err := TensorSplitSections(x, 3, 0)
	if err != nil {
		t.Fatalf("TensorSplitSections: %v", err)
	}
	// 7 = 3 + 2 + 2: the first size%sections pieces get the extra element.
	assertValues(t, pieces[0], []float32{0, 1, 2}, "section 0")
	assertValues(t, pieces[1], []float32{3, 4}, "section 1")
	assertValues(t, pieces[2], []float32{5, 6}, "section 2")
}

func TestTensorSplitIndices(t *testing.T) {
	x := rangeTensor(t, Shape{6})
	pieces, err := TensorSplitIndices(x, []int{2, 4}, 0)
	if err != nil {
		t.Fatalf("TensorSplitIndices: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	assertValues(t, pieces[0], []float32{0, 1}, "piece 0")
	assertValues(t, pieces[1], []float32{2, 3}, "piece 1")
	assertValues(t, pieces[2], []float32{4, 5}, "piece 2")

	// Negative indices wrap; out-of-order indices yield an empty piece.
	pieces, err = TensorSplitIndices(x, []int{-2}, 0)
	if err != nil {
		t.Fatalf("TensorSplitIndices negative: %v", err)
	}
	assertValues(t, pieces[0], []float32{0, 1, 2, 3}, "negative index piece 0")
	assertValues(t, pieces[1], []float32{4, 5}, "negative index piece 1")

	pieces, err = TensorSplitIndices(x, []int{4, 2}, 0)
	if err != nil {
		t.Fatalf("TensorSplitIndices out of order: %v", err)
	}
	if pieces[1].Size(0) != 0 {
		t.Errorf("out-of-order index should produce an empty piece, got size %d", pieces[1].Size(0))
	}
	assertValues(t, pieces[2], []float32{2, 3, 4, 5}, "piece after out-of-order index")
}

func TestUnbind(t *testing.T) {
	x := rangeTensor(t, Shape{3, 2})
	pieces, err := Unbind(x, 0)
	if err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if len(pieces) != 3 {
		t.Fatalf("expected 3 pieces, got %d", len(pieces))
	}
	assertShape(t, pieces[1], Shape{2}, "unbind piece")
	assertValues(t, pieces[1], []float32{2, 3}, "unbind piece")

	pieces, err = Unbind(x, 1)
	if err != nil {
		t.Fatalf("Unbind dim 1: %v", err)
	}
	assertValues(t, pieces[0], []float32{0, 2, 4}, "unbind dim 1")
}
