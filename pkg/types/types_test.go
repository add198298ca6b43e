package types

import (
	"errors"
	"fmt"
	"image"
	"math"
	"testing"
)

func TestBoundingBoxFromRect(t *testing.T) {
	box := BoundingBoxFromRect(image.Rect(50, 40, 10, 20))
	want := BoundingBox{X: 10, Y: 20, Width: 40, Height: 20}
	if box != want {
		t.Errorf("Expected %+v, got %+v", want, box)
	}
	if box.Rect() != image.Rect(10, 20, 50, 40) {
		t.Errorf("Rect() round trip failed: %v", box.Rect())
	}
}

func TestBoundingBoxGeometry(t *testing.T) {
	box := BoundingBox{X: 10, Y: 20, Width: 100, Height: 50}

	cx, cy := box.Center()
	if cx != 60 || cy != 45 {
		t.Errorf("Expected center (60, 45), got (%v, %v)", cx, cy)
	}

	corners := box.Corners()
	if corners[0] != (image.Point{10, 20}) || corners[2] != (image.Point{110, 70}) {
		t.Errorf("Unexpected corners %v", corners)
	}

	if !box.Contains(BoundingBox{X: 10, Y: 20, Width: 100, Height: 50}) {
		t.Error("Expected a box to contain itself")
	}
	if box.Contains(BoundingBox{X: 9, Y: 20, Width: 10, Height: 10}) {
		t.Error("Expected box sticking out on the left not to be contained")
	}

	if box.Empty() {
		t.Error("Expected non-empty box")
	}
	if !(BoundingBox{Width: 0, Height: 5}).Empty() {
		t.Error("Expected zero-width box to be empty")
	}
}

func TestFinite(t *testing.T) {
	if !Finite(1, 0, -3.5) {
		t.Error("Expected finite values to pass")
	}
	if Finite(1, math.NaN()) {
		t.Error("Expected NaN to fail")
	}
	if Finite(math.Inf(-1)) {
		t.Error("Expected -Inf to fail")
	}
}

func TestAtStage(t *testing.T) {
	if AtStage(StageZoom, nil) != nil {
		t.Error("Expected nil error to stay nil")
	}

	inner := AtStage(StageDistance, Arithmeticf("disc box %dx%d", 0, 10))
	outer := AtStage(StageZoom, fmt.Errorf("wrapped: %w", inner))

	stage, ok := StageOf(outer)
	if !ok || stage != StageDistance {
		t.Errorf("Expected innermost stage %q, got %q", StageDistance, stage)
	}
	if !errors.Is(outer, ErrArithmetic) {
		t.Error("Expected sentinel to survive wrapping")
	}
	if got := inner.Error(); got != "camera distance: arithmetic failure: disc box 0x10" {
		t.Errorf("Unexpected message %q", got)
	}

	if _, ok := StageOf(errors.New("plain")); ok {
		t.Error("Expected no stage on a plain error")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
		name string
	}{
		{nil, KindUnknown, "Unknown"},
		{fmt.Errorf("%w: blue.jpg", ErrMissingInput), KindMissingInputFile, "MissingInputFile"},
		{AtStage(StageInput, ErrInvalidInput), KindInvalidInput, "InvalidInput"},
		{AtStage(StageObjectBounds, ErrEmptyDetection), KindEmptyDetectionResult, "EmptyDetectionResult"},
		{Arithmeticf("x"), KindArithmeticFailure, "ArithmeticFailure"},
		{errors.New("other"), KindUnknown, "Unknown"},
	}

	for _, tt := range tests {
		got := KindOf(tt.err)
		if got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
		if got.String() != tt.name {
			t.Errorf("String() = %q, want %q", got.String(), tt.name)
		}
	}
}
