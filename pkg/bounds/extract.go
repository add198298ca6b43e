// Package bounds turns binary masks into bounding boxes
package bounds

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/menta2k/zoom-estimator/pkg/imgproc"
	"github.com/menta2k/zoom-estimator/pkg/types"
)

// DefaultMinArea is the smallest contour area (px²) that counts as part of
// the subject
const DefaultMinArea = 1000.0

// Extractor merges the significant contours of a mask into one box
type Extractor struct {
	minArea float64
	logger  *zap.Logger
}

// NewExtractor creates an Extractor with DefaultMinArea
func NewExtractor() *Extractor {
	return &Extractor{minArea: DefaultMinArea, logger: zap.NewNop()}
}

// SetLogger sets the logger used for contour diagnostics
func (e *Extractor) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger
}

// SetMinArea overrides the contour area cutoff
func (e *Extractor) SetMinArea(area float64) {
	e.minArea = area
}

// Extract returns the axis-aligned box around every external contour of mask
// whose area is at least the cutoff. ErrEmptyDetection is returned when no
// contour survives.
func (e *Extractor) Extract(mask gocv.Mat) (types.BoundingBox, error) {
	if mask.Empty() {
		return types.BoundingBox{}, fmt.Errorf("%w: empty mask", types.ErrInvalidInput)
	}

	contours := imgproc.FindExternalContours(mask)
	kept := Retain(contours, e.minArea)
	e.logger.Debug("contours filtered",
		zap.Int("found", len(contours)),
		zap.Int("kept", len(kept)),
		zap.Float64("min_area", e.minArea))

	if len(kept) == 0 {
		return types.BoundingBox{}, fmt.Errorf("%w: no contour of at least %.0f px²",
			types.ErrEmptyDetection, e.minArea)
	}

	box := types.BoundingBoxFromRect(imgproc.BoundingRect(Merge(kept)))
	e.logger.Debug("bounding box extracted",
		zap.Int("x", box.X), zap.Int("y", box.Y),
		zap.Int("width", box.Width), zap.Int("height", box.Height))
	return box, nil
}

// Extract runs a default Extractor on mask
func Extract(mask gocv.Mat) (types.BoundingBox, error) {
	return NewExtractor().Extract(mask)
}

// Retain keeps contours whose area is at least minArea, in input order
func Retain(contours [][]image.Point, minArea float64) [][]image.Point {
	kept := contours[:0:0]
	for _, c := range contours {
		if imgproc.ContourArea(c) >= minArea {
			kept = append(kept, c)
		}
	}
	return kept
}

// Merge concatenates contour point sets into one point cloud
func Merge(contours [][]image.Point) []image.Point {
	n := 0
	for _, c := range contours {
		n += len(c)
	}
	points := make([]image.Point, 0, n)
	for _, c := range contours {
		points = append(points, c...)
	}
	return points
}
