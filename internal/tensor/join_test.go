package tensor

import "testing"

func TestCat(t *testing.T) {
	a := rangeTensor(t, Shape{2, 2})
	b := mustFromFloat32(t, []float32{10, 11, 12, 13, 14, 15}, Shape{3, 2})
	out, err := Cat([]*Tensor{a, b}, 0)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	assertShape(t, out, Shape{5, 2}, "Cat")
	assertValues(t, out, []float32{0, 1, 2, 3, 10, 11, 12, 13, 14, 15}, "Cat")
	if out.SharesStorageWith(a) || out.SharesStorageWith(b) {
		t.Error("Cat must materialize a fresh tensor")
	}

	// Empty inputs along dim are skipped.
	e := Zeros(Shape{0, 2}, Float32)
	out, err = Cat([]*Tensor{a, e, b}, 0)
	if err != nil {
		t.Fatalf("Cat with empty: %v", err)
	}
	assertShape(t, out, Shape{5, 2}, "Cat with empty")

	if _, err := Cat([]*Tensor{a, rangeTensor(t, Shape{2, 3})}, 0); err == nil {
		t.Error("expected error for mismatched non-cat sizes")
	}
	if _, err := Cat(nil, 0); err == nil {
		t.Error("expected error for empty input list")
	}
}

func TestCatStridedInput(t *testing.T) {
	// Cat must read strided views correctly, not just contiguous tensors.
	x := rangeTensor(t, Shape{2, 3})
	xt, err := x.Transpose(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Cat([]*Tensor{xt, xt}, 1)
	if err != nil {
		t.Fatalf("Cat: %v", err)
	}
	assertShape(t, out, Shape{3, 4}, "Cat strided")
	assertValues(t, out, []float32{0, 3, 0, 3, 1, 4, 1, 4, 2, 5, 2, 5}, "Cat strided")
}

func TestStack(t *testing.T) {
	a := mustFromFloat32(t, []float32{0, 1, 2}, Shape{3})
	b := mustFromFloat32(t, []float32{3, 4, 5}, Shape{3})

	out, err := Stack([]*Tensor{a, b}, 0)
	if err != nil {
		t.Fatalf("Stack: %v", err)
	}
	assertShape(t, out, Shape{2, 3}, "Stack dim 0")
	assertValues(t, out, []float32{0, 1, 2, 3, 4, 5}, "Stack dim 0")

	out, err = Stack([]*Tensor{a, b}, 1)
	if err != nil {
		t.Fatalf("Stack dim 1: %v", err)
	}
	assertShape(t, out, Shape{3, 2}, "Stack dim 1")
	assertValues(t, out, []float32{0, 3, 1, 4, 2, 5}, "Stack dim 1")

	// dim may be the fresh trailing position.
	out, err = Stack([]*Tensor{a, b}, -1)
	if err != nil {
		t.Fatalf("Stack dim -1: %v", err)
	}
	assertShape(t, out, Shape{3, 2}, "Stack dim -1")

	if _, err := Stack([]*Tensor{a, rangeTensor(t, Shape{4})}, 0); err == nil {
		t.Error("expected error for mismatched shapes")
	}
}

func TestBlockDiag(t *testing.T) {
	a := mustFromFloat32(t, []float32{1, 2, 3, 4}, Shape{2, 2})
	b := mustFromFloat32(t, []float32{5}, Shape{})       // scalar -> 1x1
	c := mustFromFloat32(t, []float32{6, 7}, Shape{2})   // vector -> 1x2

	out, err := BlockDiag([]*Tensor{a, b, c})
	if err != nil {
		t.Fatalf("BlockDiag: %v", err)
	}
	assertShape(t, out, Shape{4, 5}, "BlockDiag")
	assertValues(t, out, []float32{
		1, 2, 0, 0, 0,
		3, 4, 0, 0, 0,
		0, 0, 5, 0, 0,
		0, 0, 0, 6, 7,
	}, "BlockDiag")

	if _, err := BlockDiag([]*Tensor{rangeTensor(t, Shape{2, 2, 2})}); err == nil {
		t.Error("expected error for rank > 2 input")
	}
}
