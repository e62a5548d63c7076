package tensor

import "testing"

func TestFill(t *testing.T) {
	x := Zeros(Shape{2, 3}, Float32)
	if err := x.Fill_(float32(3)); err != nil {
		t.Fatalf("Fill_: %v", err)
	}
	assertValues(t, x, []float32{3, 3, 3, 3, 3, 3}, "Fill_")

	// Filling through a view touches exactly the addressed elements.
	row, err := x.Select(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := row.Fill_(float32(9)); err != nil {
		t.Fatalf("Fill_ view: %v", err)
	}
	assertValues(t, x, []float32{3, 3, 3, 9, 9, 9}, "Fill_ through view")

	// Scalars are coerced to the dtype.
	y := Zeros(Shape{2}, Int32)
	if err := y.Fill_(7); err != nil {
		t.Fatalf("Fill_ int: %v", err)
	}
	if got := y.At(0).(int32); got != 7 {
		t.Errorf("Fill_ int: got %v, want 7", got)
	}
}

func TestZero(t *testing.T) {
	x := rangeTensor(t, Shape{2, 2})
	x.Zero_()
	assertValues(t, x, []float32{0, 0, 0, 0}, "Zero_")

	b := Zeros(Shape{2}, Bool)
	if err := b.Fill_(true); err != nil {
		t.Fatal(err)
	}
	b.Zero_()
	if b.At(0).(bool) || b.At(1).(bool) {
		t.Error("Zero_ on bool should clear every element")
	}
}

func TestCopy(t *testing.T) {
	dst := Zeros(Shape{2, 3}, Float32)
	src := rangeTensor(t, Shape{2, 3})
	if err := dst.Copy_(src); err != nil {
		t.Fatalf("Copy_: %v", err)
	}
	assertValues(t, dst, []float32{0, 1, 2, 3, 4, 5}, "Copy_")

	// Broadcast: a row copies into every row.
	row := mustFromFloat32(t, []float32{7, 8, 9}, Shape{3})
	if err := dst.Copy_(row); err != nil {
		t.Fatalf("Copy_ broadcast: %v", err)
	}
	assertValues(t, dst, []float32{7, 8, 9, 7, 8, 9}, "Copy_ broadcast")

	// Copy into a strided destination view.
	x := Zeros(Shape{2, 3}, Float32)
	xt, err := x.Transpose(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := xt.Copy_(mustFromFloat32(t, []float32{0, 1, 2, 3, 4, 5}, Shape{3, 2})); err != nil {
		t.Fatalf("Copy_ strided dst: %v", err)
	}
	assertValues(t, x, []float32{0, 2, 4, 1, 3, 5}, "Copy_ strided dst")

	if err := dst.Copy_(rangeTensor(t, Shape{4})); err == nil {
		t.Error("expected error for non-broadcastable source")
	}
	if err := dst.Copy_(Zeros(Shape{2, 3}, Int32)); err == nil {
		t.Error("expected error for dtype mismatch")
	}
}

func TestCopyLargeParallelPath(t *testing.T) {
	// Big enough to cross the parallel threshold in Copy_.
	shape := Shape{64, 16, 16}
	src := rangeTensor(t, shape)
	dst := Zeros(shape, Float32)
	if err := dst.Copy_(src); err != nil {
		t.Fatalf("Copy_: %v", err)
	}
	if !Equal(dst, src) {
		t.Error("parallel copy produced different elements")
	}
}
