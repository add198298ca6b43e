// Package analyzer loads and validates the rig photos
package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// PhotoAnalyzer loads photos with EXIF orientation applied and checks them
type PhotoAnalyzer struct {
	config Config
}

// Config holds configuration for the photo analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// DefaultConfig returns the formats the rig cameras and uploads produce
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpg", "jpeg", "png", "webp", "bmp", "tif", "tiff"},
		MinImageSize:     100,
	}
}

// New creates a new PhotoAnalyzer with default configuration
func New() *PhotoAnalyzer {
	return &PhotoAnalyzer{config: DefaultConfig()}
}

// NewWithConfig creates a new PhotoAnalyzer with custom configuration
func NewWithConfig(config Config) *PhotoAnalyzer {
	return &PhotoAnalyzer{config: config}
}

// LoadImage loads a photo from file. A missing file is reported as
// types.ErrMissingInput, an unreadable one as types.ErrInvalidInput.
func (a *PhotoAnalyzer) LoadImage(path string) (image.Image, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext != "" && !a.isFormatSupported(ext) {
		return nil, fmt.Errorf("%w: unsupported image format: %s", types.ErrInvalidInput, ext)
	}

	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	// chai2010/webp handles the extended variants the x/image decoder rejects
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("%w: failed to decode image %s", types.ErrInvalidInput, path)
}

// LoadImageFromReader loads a photo from an io.Reader
func (a *PhotoAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
			return img, nil
		}
		return nil, fmt.Errorf("%w: failed to decode image: %v", types.ErrInvalidInput, err)
	}
	if !a.isFormatSupported(format) {
		return nil, fmt.Errorf("%w: unsupported image format: %s", types.ErrInvalidInput, format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", types.ErrInvalidInput, err)
	}
	return img, nil
}

// GetImageInfo returns basic information about an image
func (a *PhotoAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	return ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: float64(width) / float64(height),
		Portrait:    height > width,
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Portrait    bool
}

func (a *PhotoAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *PhotoAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", types.ErrInvalidInput)
	}
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			types.ErrInvalidInput, bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}

// CheckSameResolution returns an error when a and b differ in size
func CheckSameResolution(a, b image.Image) error {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return fmt.Errorf("%w: %dx%d and %dx%d photos",
			types.ErrInvalidInput, ab.Dx(), ab.Dy(), bb.Dx(), bb.Dy())
	}
	return nil
}
