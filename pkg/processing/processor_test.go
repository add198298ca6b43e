package processing

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// createTestMask creates a gray mask with a white square in the middle
func createTestMask(width, height int) image.Image {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := height / 4; y < 3*height/4; y++ {
		for x := width / 4; x < 3*width/4; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestNewProcessorDefaults(t *testing.T) {
	p := NewProcessor(OutputOptions{})
	if p.options.Format != "jpg" {
		t.Errorf("Expected default format jpg, got %s", p.options.Format)
	}
	if p.options.Quality != 90 {
		t.Errorf("Expected default quality 90, got %d", p.options.Quality)
	}
}

func TestCreateBoundingOverlay(t *testing.T) {
	p := NewProcessor(DefaultOutputOptions())
	box := types.BoundingBox{X: 10, Y: 20, Width: 60, Height: 40}

	overlay := p.CreateBoundingOverlay(createTestMask(100, 100), box)
	nrgba, ok := overlay.(*image.NRGBA)
	if !ok {
		t.Fatalf("Expected *image.NRGBA, got %T", overlay)
	}

	edges := []image.Point{
		{10, 20}, {12, 40}, {69, 40}, {40, 22}, {40, 59},
	}
	for _, pt := range edges {
		if got := nrgba.NRGBAAt(pt.X, pt.Y); got != BoxColor {
			t.Errorf("Expected box color at %v, got %v", pt, got)
		}
	}

	if got := nrgba.NRGBAAt(40, 40); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("Expected mask foreground inside the box, got %v", got)
	}
	if got := nrgba.NRGBAAt(5, 5); got != (color.NRGBA{0, 0, 0, 255}) {
		t.Errorf("Expected mask background outside the box, got %v", got)
	}
}

func TestCreateBoundingOverlayClipsBox(t *testing.T) {
	p := NewProcessor(DefaultOutputOptions())
	box := types.BoundingBox{X: -10, Y: -10, Width: 200, Height: 200}

	overlay := p.CreateBoundingOverlay(createTestMask(50, 50), box)
	if overlay.Bounds().Dx() != 50 {
		t.Errorf("Expected overlay to keep the mask size, got %d", overlay.Bounds().Dx())
	}
}

func TestOverlayFileName(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 7, 3, 0, time.UTC)

	tests := []struct {
		format string
		want   string
	}{
		{"jpg", "BoundingMask09_07_03.jpg"},
		{"jpeg", "BoundingMask09_07_03.jpg"},
		{"PNG", "BoundingMask09_07_03.png"},
		{"webp", "BoundingMask09_07_03.webp"},
	}

	for _, tt := range tests {
		p := NewProcessor(OutputOptions{Format: tt.format})
		if got := p.OverlayFileName(at); got != tt.want {
			t.Errorf("Expected %s, got %s", tt.want, got)
		}
	}
}

func TestSaveBoundingOverlay(t *testing.T) {
	for _, format := range []string{"jpg", "png", "webp"} {
		t.Run(format, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "out")
			p := NewProcessor(OutputOptions{Format: format, Quality: 80})
			p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 30, 45, 0, time.UTC) }

			path, err := p.SaveBoundingOverlay(createTestMask(64, 48), types.BoundingBox{X: 8, Y: 8, Width: 40, Height: 30}, dir, "CAM-01")
			if err != nil {
				t.Fatalf("SaveBoundingOverlay() failed: %v", err)
			}

			if filepath.Base(path) != "BoundingMask12_30_45."+format {
				t.Errorf("Unexpected file name %s", filepath.Base(path))
			}
			info, err := os.Stat(path)
			if err != nil {
				t.Fatalf("Expected file to exist: %v", err)
			}
			if info.Size() == 0 {
				t.Error("Expected non-empty file")
			}
		})
	}
}

func TestSaveBoundingOverlayUniqueNames(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(OutputOptions{Format: "png", UniqueNames: true})
	p.now = func() time.Time { return time.Date(2024, 1, 1, 12, 30, 45, 0, time.UTC) }
	box := types.BoundingBox{X: 8, Y: 8, Width: 40, Height: 30}

	const n = 8
	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = p.SaveBoundingOverlay(createTestMask(64, 48), box, dir, "CAM/01")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, path := range paths {
		if errs[i] != nil {
			t.Fatalf("SaveBoundingOverlay() failed: %v", errs[i])
		}
		if seen[path] {
			t.Errorf("Expected distinct paths, %s returned twice", path)
		}
		seen[path] = true
		if !strings.HasPrefix(filepath.Base(path), "BoundingMask12_30_45_CAM01") {
			t.Errorf("Expected serial tagged name, got %s", filepath.Base(path))
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Errorf("Expected %d files, got %d", n, len(entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "BoundingMask12_30_45_CAM01.png")); err != nil {
		t.Errorf("Expected first run to take the plain tagged name: %v", err)
	}
}
