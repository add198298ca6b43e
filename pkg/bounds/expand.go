package bounds

import (
	"math"

	"go.uber.org/zap"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

const (
	// MinCenteringMargin is the smallest allowed offset (px) between the
	// object center and the image center before the shot counts as biased
	MinCenteringMargin = 400.0
	// CenteringRatio scales the shorter box side into a centering margin
	CenteringRatio = 0.2
)

// Expander grows a tight box into a box centered on the image center
type Expander struct {
	logger *zap.Logger
}

// NewExpander creates an Expander
func NewExpander() *Expander {
	return &Expander{logger: zap.NewNop()}
}

// SetLogger sets the logger used for the centering advisory
func (e *Expander) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	e.logger = logger
}

// CheckCentering measures how far the center of box is from the center of a
// width x height image
func CheckCentering(box types.BoundingBox, width, height int) types.Centering {
	cx, cy := float64(width)/2, float64(height)/2
	bx, by := box.Center()

	margin := math.Max(MinCenteringMargin, CenteringRatio*float64(min(box.Width, box.Height)))
	distance := math.Hypot(bx-cx, by-cy)
	return types.Centering{
		Distance: distance,
		Margin:   margin,
		Centered: distance <= margin,
	}
}

// Expand returns the smallest box centered on the image center that holds
// the farthest corner of tight, together with the centering advisory.
// The result always contains tight.
func (e *Expander) Expand(tight types.BoundingBox, width, height int) (types.BoundingBox, types.Centering, error) {
	if width <= 0 || height <= 0 {
		return types.BoundingBox{}, types.Centering{}, types.Arithmeticf("image size %dx%d", width, height)
	}
	if tight.Width < 0 || tight.Height < 0 {
		return types.BoundingBox{}, types.Centering{}, types.Arithmeticf("negative box extent %dx%d", tight.Width, tight.Height)
	}

	centering := CheckCentering(tight, width, height)
	if !types.Finite(centering.Distance, centering.Margin) {
		return types.BoundingBox{}, types.Centering{}, types.Arithmeticf("centering distance is not finite")
	}
	if centering.Centered {
		e.logger.Info("object centered",
			zap.Float64("distance_px", centering.Distance),
			zap.Float64("margin_px", centering.Margin))
	} else {
		e.logger.Warn("object biased, recenter it on the disc",
			zap.Float64("distance_px", centering.Distance),
			zap.Float64("margin_px", centering.Margin))
	}

	cx, cy := float64(width)/2, float64(height)/2
	corners := tight.Corners()
	far := corners[0]
	farDist := math.Hypot(float64(far.X)-cx, float64(far.Y)-cy)
	for _, c := range corners[1:] {
		if d := math.Hypot(float64(c.X)-cx, float64(c.Y)-cy); d > farDist {
			far, farDist = c, d
		}
	}

	w := int(2 * math.Abs(float64(far.X)-cx))
	h := int(2 * math.Abs(float64(far.Y)-cy))
	expanded := types.BoundingBox{
		X:      int(cx - float64(w)/2),
		Y:      int(cy - float64(h)/2),
		Width:  w,
		Height: h,
	}
	e.logger.Debug("bounding box expanded",
		zap.Int("x", expanded.X), zap.Int("y", expanded.Y),
		zap.Int("width", expanded.Width), zap.Int("height", expanded.Height))
	return expanded, centering, nil
}

// Expand runs a default Expander
func Expand(tight types.BoundingBox, width, height int) (types.BoundingBox, types.Centering, error) {
	return NewExpander().Expand(tight, width, height)
}
