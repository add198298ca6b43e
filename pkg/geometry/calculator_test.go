package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

const epsilon = 1e-9

// testRig has 100 px/mm on both axes for a 2000x1000 photo
func testRig() Rig {
	return Rig{
		Sensor: CameraGeometry{
			SensorWidthMM:  20,
			SensorHeightMM: 10,
			SensorWidthPx:  2000,
			SensorHeightPx: 1000,
		},
		DiscDiameterM: 0.1,
		FocalLengths:  []float64{10, 20, 35, 50, 85},
	}
}

func newTestCalculator(t *testing.T, w, h int) *Calculator {
	t.Helper()
	c, err := NewCalculator(testRig(), w, h)
	if err != nil {
		t.Fatalf("NewCalculator() failed: %v", err)
	}
	return c
}

func TestNormalize(t *testing.T) {
	g := testRig().Sensor

	if got := g.Normalize(2000, 1000); got != g {
		t.Errorf("Expected landscape photo to keep geometry, got %+v", got)
	}

	portrait := g.Normalize(1000, 2000)
	want := CameraGeometry{SensorWidthMM: 10, SensorHeightMM: 20, SensorWidthPx: 1000, SensorHeightPx: 2000}
	if portrait != want {
		t.Errorf("Expected %+v, got %+v", want, portrait)
	}
	if g.SensorWidthMM != 20 {
		t.Error("Normalize() must not modify the receiver")
	}
}

func TestNewCalculatorNormalizes(t *testing.T) {
	c := newTestCalculator(t, 1000, 2000)
	if c.Geometry().Landscape() {
		t.Error("Expected portrait geometry for a portrait calibration photo")
	}
}

func TestNewCalculatorValidation(t *testing.T) {
	rig := testRig()
	rig.FocalLengths = nil
	if _, err := NewCalculator(rig, 2000, 1000); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Expected invalid input for missing focal lengths, got %v", err)
	}

	rig = testRig()
	rig.Sensor.SensorHeightMM = 0
	if _, err := NewCalculator(rig, 2000, 1000); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("Expected invalid input for zero sensor height, got %v", err)
	}

	if _, err := NewCalculator(testRig(), 0, 1000); !errors.Is(err, types.ErrArithmetic) {
		t.Errorf("Expected arithmetic failure for zero photo width, got %v", err)
	}
}

func TestAngle(t *testing.T) {
	tests := []struct {
		w, h int
		want float64
	}{
		{100, 100, 90},
		{50, 100, 30},
		{100, 50, 30},
	}

	for _, tt := range tests {
		got, err := Angle(tt.w, tt.h)
		if err != nil {
			t.Fatalf("Angle(%d, %d) failed: %v", tt.w, tt.h, err)
		}
		if math.Abs(got-tt.want) > epsilon {
			t.Errorf("Angle(%d, %d): expected %.6f, got %.6f", tt.w, tt.h, tt.want, got)
		}
	}

	if _, err := Angle(0, 10); !errors.Is(err, types.ErrArithmetic) {
		t.Errorf("Expected arithmetic failure for empty box, got %v", err)
	}
}

func TestAngleIndependentOfOrientation(t *testing.T) {
	landscape := newTestCalculator(t, 2000, 1000)
	portrait := newTestCalculator(t, 1000, 2000)

	a, err := landscape.Angle(100, 100)
	if err != nil {
		t.Fatalf("Angle() failed: %v", err)
	}
	b, err := portrait.Angle(100, 100)
	if err != nil {
		t.Fatalf("Angle() failed: %v", err)
	}
	if a != b {
		t.Errorf("Expected identical angles, got %.6f and %.6f", a, b)
	}
}

func TestDistance(t *testing.T) {
	c := newTestCalculator(t, 2000, 1000)

	// 100 px is 1 mm on the sensor: 10 * (1 + 100) / 1
	got, err := c.Distance(100, 100)
	if err != nil {
		t.Fatalf("Distance() failed: %v", err)
	}
	if math.Abs(got-1010) > epsilon {
		t.Errorf("Expected distance 1010 mm, got %.6f", got)
	}

	// mean of 10*(2+100)/2 and 10*(1+100)/1
	got, err = c.Distance(200, 100)
	if err != nil {
		t.Fatalf("Distance() failed: %v", err)
	}
	if want := (510.0 + 1010.0) / 2; math.Abs(got-want) > epsilon {
		t.Errorf("Expected distance %.1f mm, got %.6f", want, got)
	}

	if _, err := c.Distance(0, 100); !errors.Is(err, types.ErrArithmetic) {
		t.Errorf("Expected arithmetic failure for empty disc box, got %v", err)
	}
}

func TestObjectSize(t *testing.T) {
	c := newTestCalculator(t, 2000, 1000)

	size, err := c.ObjectSize(200, 100, 1010)
	if err != nil {
		t.Fatalf("ObjectSize() failed: %v", err)
	}
	if math.Abs(size.Width-200) > epsilon || math.Abs(size.Height-100) > epsilon {
		t.Errorf("Expected 200x100 mm, got %.6fx%.6f", size.Width, size.Height)
	}

	if _, err := c.ObjectSize(200, 100, 10); !errors.Is(err, types.ErrArithmetic) {
		t.Errorf("Expected arithmetic failure when distance equals focal, got %v", err)
	}
}

func TestNonSquareCalibrationDensity(t *testing.T) {
	// 3000x1000 on a 20x10 mm sensor: 150 px/mm across, 100 px/mm down.
	// Dividing rows by the sensor width would give 50 px/mm on both axes,
	// a distance of about 427 mm and a 250x167 mm object.
	c := newTestCalculator(t, 3000, 1000)

	distance, err := c.Distance(150, 100)
	if err != nil {
		t.Fatalf("Distance() failed: %v", err)
	}
	if math.Abs(distance-1010) > epsilon {
		t.Errorf("Expected distance 1010 mm, got %.6f", distance)
	}

	size, err := c.ObjectSize(300, 200, distance)
	if err != nil {
		t.Fatalf("ObjectSize() failed: %v", err)
	}
	if math.Abs(size.Width-200) > epsilon || math.Abs(size.Height-200) > epsilon {
		t.Errorf("Expected 200x200 mm, got %.6fx%.6f", size.Width, size.Height)
	}
}

func TestZoom(t *testing.T) {
	c := newTestCalculator(t, 2000, 1000)

	tests := []struct {
		name      string
		w, h      int
		size      types.Size
		wantIndex int
		wantFocal float64
	}{
		// aspect 2 is not wider than the sensor, height limits: 8*1010/108
		{"height axis", 200, 100, types.Size{Width: 200, Height: 100}, 4, 50},
		// aspect 3 is wider than the sensor, width limits: 16*1010/616
		{"width axis", 300, 100, types.Size{Width: 600, Height: 200}, 2, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Zoom(tt.w, tt.h, tt.size, 1010)
			if err != nil {
				t.Fatalf("Zoom() failed: %v", err)
			}
			if got.Index != tt.wantIndex || got.Focal != tt.wantFocal {
				t.Errorf("Expected focal %.0f index %d, got focal %.0f index %d (estimate %.2f)",
					tt.wantFocal, tt.wantIndex, got.Focal, got.Index, got.EstimatedFocal)
			}
		})
	}
}

func TestZoomPortraitSensor(t *testing.T) {
	c := newTestCalculator(t, 1000, 2000)

	// tall object on a portrait sensor: height limits, 16*1010/616
	got, err := c.Zoom(100, 300, types.Size{Width: 200, Height: 600}, 1010)
	if err != nil {
		t.Fatalf("Zoom() failed: %v", err)
	}
	if got.Index != 2 {
		t.Errorf("Expected zoom index 2, got %d (estimate %.2f)", got.Index, got.EstimatedFocal)
	}
}

func TestZoomNoCandidate(t *testing.T) {
	c := newTestCalculator(t, 2000, 1000)

	_, err := c.Zoom(200, 100, types.Size{Width: 20000, Height: 10000}, 1010)
	if !errors.Is(err, types.ErrArithmetic) {
		t.Errorf("Expected arithmetic failure when nothing is below the estimate, got %v", err)
	}
}

func TestSelectFocal(t *testing.T) {
	tests := []struct {
		name       string
		candidates []float64
		estimate   float64
		wantFocal  float64
		wantIndex  int
		wantErr    bool
	}{
		{"nearest below", []float64{20, 35, 50, 85}, 40, 35, 2, false},
		{"above all", []float64{20, 35, 50, 85}, 100, 85, 4, false},
		{"unsorted", []float64{50, 20, 35}, 40, 35, 3, false},
		{"duplicates", []float64{20, 35, 35, 50}, 40, 35, 2, false},
		{"equal is not below", []float64{20, 35}, 20, 0, 0, true},
		{"empty", nil, 40, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			focal, index, err := SelectFocal(tt.candidates, tt.estimate)
			if tt.wantErr {
				if !errors.Is(err, types.ErrArithmetic) {
					t.Errorf("Expected ErrArithmetic, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectFocal() failed: %v", err)
			}
			if focal != tt.wantFocal || index != tt.wantIndex {
				t.Errorf("Expected %.0f at %d, got %.0f at %d", tt.wantFocal, tt.wantIndex, focal, index)
			}
		})
	}
}
