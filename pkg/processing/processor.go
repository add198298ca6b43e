// Package processing renders and saves the annotated bounding image
package processing

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// BoxStroke is the line width of the drawn bounding box
const BoxStroke = 3

// BoxColor is the color of the drawn bounding box
var BoxColor = color.NRGBA{0, 255, 0, 255}

// OutputOptions controls how images are written
type OutputOptions struct {
	Format   string // jpg, png or webp
	Quality  int
	Lossless bool // webp only

	// UniqueNames tags each bounding image with the serial and never
	// replaces an existing file. Used when runs overlap.
	UniqueNames bool
}

// DefaultOutputOptions writes jpg at quality 90
func DefaultOutputOptions() OutputOptions {
	return OutputOptions{Format: "jpg", Quality: 90}
}

// Processor handles image output operations
type Processor struct {
	options OutputOptions
	now     func() time.Time
}

// NewProcessor creates a new image processor
func NewProcessor(options OutputOptions) *Processor {
	if options.Format == "" {
		options.Format = "jpg"
	}
	if options.Quality <= 0 {
		options.Quality = 90
	}
	return &Processor{options: options, now: time.Now}
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// CreateBoundingOverlay renders mask in color with box drawn on it
func (p *Processor) CreateBoundingOverlay(mask image.Image, box types.BoundingBox) image.Image {
	nrgba := imaging.Clone(mask)
	drawBox(nrgba, box, BoxColor, BoxStroke)
	return nrgba
}

// OverlayFileName returns the time stamped name of the bounding image
func (p *Processor) OverlayFileName(at time.Time) string {
	ext := strings.ToLower(p.options.Format)
	if ext == "jpeg" {
		ext = "jpg"
	}
	return fmt.Sprintf("BoundingMask%s.%s", at.Format("15_04_05"), ext)
}

// SaveBoundingOverlay draws box on mask and writes the result into dir.
// It returns the written path.
func (p *Processor) SaveBoundingOverlay(mask image.Image, box types.BoundingBox, dir, serial string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := p.OverlayFileName(p.now())
	path := filepath.Join(dir, name)
	if p.options.UniqueNames {
		var err error
		if path, err = claimPath(dir, name, serial); err != nil {
			return "", fmt.Errorf("failed to save bounding image: %w", err)
		}
	}
	overlay := p.CreateBoundingOverlay(mask, box)
	if err := p.SaveImage(overlay, path, p.options.Format, p.options.Quality, p.options.Lossless); err != nil {
		return "", fmt.Errorf("failed to save bounding image: %w", err)
	}
	return path, nil
}

// claimPath reserves BoundingMask<time>_<serial>[_n].<ext> in dir by
// creating it exclusively
func claimPath(dir, name, serial string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if tag := fileTag(serial); tag != "" {
		stem += "_" + tag
	}

	for n := 1; n < 1000; n++ {
		candidate := stem + ext
		if n > 1 {
			candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		f.Close()
		return path, nil
	}
	return "", fmt.Errorf("no free name for %s%s", stem, ext)
}

// fileTag keeps the serial characters that are safe in a file name
func fileTag(serial string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, serial)
}

func drawBox(img *image.NRGBA, box types.BoundingBox, c color.NRGBA, stroke int) {
	x0, y0 := box.X, box.Y
	x1, y1 := box.X+box.Width, box.Y+box.Height
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	x0, x1 = max(x0, b.Min.X), min(x1, b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	y0, y1 = max(y0, b.Min.Y), min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
