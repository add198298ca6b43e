// Package mask builds the binary foreground masks the bound extractor works
// on: a background subtraction mask for the object photo, a color band mask
// for the calibration disc and an optional circular suppression mask for
// steep top-down shots.
package mask

import (
	"fmt"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/menta2k/zoom-estimator/pkg/imgproc"
	"github.com/menta2k/zoom-estimator/pkg/types"
)

// Params holds the filter settings of both mask strategies
type Params struct {
	OpenKernel        int     `json:"open_kernel" mapstructure:"open_kernel"`
	BilateralDiameter int     `json:"bilateral_diameter" mapstructure:"bilateral_diameter"`
	BilateralSigma    float64 `json:"bilateral_sigma" mapstructure:"bilateral_sigma"`
	BlurKernel        int     `json:"blur_kernel" mapstructure:"blur_kernel"`
	DiffThreshold     float32 `json:"diff_threshold" mapstructure:"diff_threshold"`
	OtsuHint          float32 `json:"otsu_hint" mapstructure:"otsu_hint"`

	HueLow              float64 `json:"hue_low" mapstructure:"hue_low"`
	HueHigh             float64 `json:"hue_high" mapstructure:"hue_high"`
	MinSaturation       float64 `json:"min_saturation" mapstructure:"min_saturation"`
	MinValue            float64 `json:"min_value" mapstructure:"min_value"`
	ColorBilateralSigma float64 `json:"color_bilateral_sigma" mapstructure:"color_bilateral_sigma"`
	ColorKernel         int     `json:"color_kernel" mapstructure:"color_kernel"`
}

// DefaultParams returns the filter settings tuned for the rig
func DefaultParams() Params {
	return Params{
		OpenKernel:        5,
		BilateralDiameter: 9,
		BilateralSigma:    100,
		BlurKernel:        3,
		DiffThreshold:     10,
		OtsuHint:          10,

		HueLow:              100,
		HueHigh:             145,
		MinSaturation:       80,
		MinValue:            80,
		ColorBilateralSigma: 75,
		ColorKernel:         3,
	}
}

// Builder produces foreground masks
type Builder struct {
	params Params
	logger *zap.Logger
}

// New creates a Builder with the default parameters
func New() *Builder {
	return NewWithParams(DefaultParams())
}

// NewWithParams creates a Builder with custom parameters
func NewWithParams(params Params) *Builder {
	return &Builder{params: params, logger: zap.NewNop()}
}

// SetLogger sets the logger used for stage diagnostics
func (b *Builder) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b.logger = logger
}

// Params returns the parameters the builder uses
func (b *Builder) Params() Params {
	return b.params
}

// Subtraction isolates whatever differs between object and background. The
// returned mask has the size of the photos and marks foreground with 255.
func (b *Builder) Subtraction(object, background gocv.Mat) (gocv.Mat, error) {
	p := b.params

	diff, err := imgproc.Difference(object, background)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer diff.Close()

	gray := imgproc.ToGray(diff)
	defer gray.Close()

	// isolated noise pixels go first, then speckle is smoothed without
	// softening the object edge
	opened := imgproc.Morphology(gray, imgproc.Open, p.OpenKernel)
	defer opened.Close()
	filtered := imgproc.BilateralFilter(opened, p.BilateralDiameter, p.BilateralSigma, p.BilateralSigma)
	defer filtered.Close()
	blurred := imgproc.GaussianBlur(filtered, p.BlurKernel)
	defer blurred.Close()

	foreground := imgproc.Threshold(blurred, p.DiffThreshold)
	defer foreground.Close()

	canvas := imgproc.Zeros(object.Rows(), object.Cols(), gocv.MatTypeCV8UC3)
	defer canvas.Close()
	whiteboard := imgproc.Filled(object.Rows(), object.Cols(), gocv.MatTypeCV8UC3, imgproc.MaxValue)
	defer whiteboard.Close()
	imgproc.CopyWhere(whiteboard, &canvas, foreground)

	canvasGray := imgproc.ToGray(canvas)
	defer canvasGray.Close()
	equalized := imgproc.EqualizeHistogram(canvasGray)
	defer equalized.Close()

	result := imgproc.AutoBinaryThreshold(equalized, p.OtsuHint)
	b.logger.Debug("subtraction mask built",
		zap.Int("width", result.Cols()),
		zap.Int("height", result.Rows()),
		zap.Int("foreground_px", imgproc.CountNonZero(result)))
	return result, nil
}

// ColorSegment selects the saturated hue band of the calibration disc
func (b *Builder) ColorSegment(photo gocv.Mat) (gocv.Mat, error) {
	p := b.params
	if photo.Empty() || photo.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("%w: color segmentation needs a 3-channel photo", types.ErrInvalidInput)
	}

	hsv := imgproc.ToHSV(photo)
	defer hsv.Close()
	blurred := imgproc.GaussianBlur(hsv, p.BlurKernel)
	defer blurred.Close()
	filtered := imgproc.BilateralFilter(blurred, p.BilateralDiameter, p.ColorBilateralSigma, p.ColorBilateralSigma)
	defer filtered.Close()

	band := imgproc.InRange(filtered,
		[3]float64{p.HueLow, p.MinSaturation, p.MinValue},
		[3]float64{p.HueHigh, imgproc.MaxValue, imgproc.MaxValue})
	defer band.Close()

	opened := imgproc.Morphology(band, imgproc.Open, p.ColorKernel)
	defer opened.Close()

	result := imgproc.Morphology(opened, imgproc.Dilate, p.ColorKernel)
	b.logger.Debug("color mask built",
		zap.Int("foreground_px", imgproc.CountNonZero(result)))
	return result, nil
}
