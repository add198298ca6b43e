package geometry

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

const (
	// FillRatio is the share of the frame the object should cover after zooming
	FillRatio = 0.8
	// StraightAngle is the tilt above which a shot counts as taken from the top
	StraightAngle = 75.0
)

// ZoomResult is the outcome of focal length selection
type ZoomResult struct {
	EstimatedFocal float64 `json:"estimated_focal_mm"`
	Focal          float64 `json:"focal_mm"`
	Index          int     `json:"zoom_index"`
}

// Calculator holds the rig settings normalized to the calibration photo.
//
// Object sizes are derived from the calibration photo's pixel density, so
// the object photo must be taken at the calibration resolution.
type Calculator struct {
	rig    Rig
	calibW int
	calibH int
	logger *zap.Logger
}

// NewCalculator validates rig and normalizes its sensor to a calibW x calibH
// calibration photo
func NewCalculator(rig Rig, calibW, calibH int) (*Calculator, error) {
	if err := rig.Validate(); err != nil {
		return nil, err
	}
	if calibW <= 0 || calibH <= 0 {
		return nil, types.Arithmeticf("calibration photo size %dx%d", calibW, calibH)
	}

	normalized := rig
	normalized.Sensor = rig.Sensor.Normalize(calibW, calibH)
	normalized.FocalLengths = append([]float64(nil), rig.FocalLengths...)

	return &Calculator{
		rig:    normalized,
		calibW: calibW,
		calibH: calibH,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger used for stage reports
func (c *Calculator) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

// Geometry returns the normalized sensor geometry
func (c *Calculator) Geometry() CameraGeometry {
	return c.rig.Sensor
}

// onSensor converts a w x h px box on the calibration photo into sensor
// millimetres, width then height. Each axis uses its own pixel density:
// photo columns per sensor width and photo rows per sensor height.
func (c *Calculator) onSensor(w, h int) []float64 {
	density := floats.DivTo(make([]float64, 2),
		[]float64{float64(c.calibW), float64(c.calibH)},
		[]float64{c.rig.Sensor.SensorWidthMM, c.rig.Sensor.SensorHeightMM})
	return floats.DivTo(density, []float64{float64(w), float64(h)}, density)
}

// Distance estimates the camera to disc distance in millimetres from the
// disc's bounding box on the calibration photo
func (c *Calculator) Distance(discW, discH int) (float64, error) {
	if discW <= 0 || discH <= 0 {
		return 0, types.Arithmeticf("disc box %dx%d", discW, discH)
	}

	f0 := c.rig.ReferenceFocal()
	d := c.rig.DiscDiameterMM()

	// f0 * (s + d) / s per axis
	byAxis := c.onSensor(discW, discH)
	floats.DivTo(byAxis, []float64{d, d}, byAxis)
	floats.AddConst(1, byAxis)
	floats.Scale(f0, byAxis)

	distance := stat.Mean(byAxis, nil)
	if !types.Finite(distance) || distance <= 0 {
		return 0, types.Arithmeticf("distance %v", distance)
	}

	c.logger.Info("camera distance",
		zap.Float64("distance_mm", distance),
		zap.Float64("by_width_mm", byAxis[0]),
		zap.Float64("by_height_mm", byAxis[1]))
	return distance, nil
}

// Angle returns the camera tilt in degrees from the calibration disc box.
// A round disc seen from straight above gives 90.
func Angle(w, h int) (float64, error) {
	if w <= 0 || h <= 0 {
		return 0, types.Arithmeticf("disc box %dx%d", w, h)
	}
	ratio := float64(min(w, h)) / float64(max(w, h))
	angle := math.Asin(ratio) * 180 / math.Pi
	if !types.Finite(angle) {
		return 0, types.Arithmeticf("asin(%v)", ratio)
	}
	return angle, nil
}

// Angle computes the tilt and reports it
func (c *Calculator) Angle(w, h int) (float64, error) {
	angle, err := Angle(w, h)
	if err != nil {
		return 0, err
	}
	if angle <= StraightAngle {
		c.logger.Info("camera angle", zap.Float64("angle_deg", angle))
	} else {
		c.logger.Info("camera angle is 90, straight photo", zap.Float64("angle_deg", angle))
	}
	return angle, nil
}

// ObjectSize converts an object box into millimetres at the given distance
func (c *Calculator) ObjectSize(w, h int, distance float64) (types.Size, error) {
	if w <= 0 || h <= 0 {
		return types.Size{}, types.Arithmeticf("object box %dx%d", w, h)
	}
	f0 := c.rig.ReferenceFocal()
	if !types.Finite(distance) || distance <= f0 {
		return types.Size{}, types.Arithmeticf("distance %.2f mm is not beyond focal %.2f mm", distance, f0)
	}

	mm := c.onSensor(w, h)
	floats.Scale((distance-f0)/f0, mm)
	size := types.Size{Width: mm[0], Height: mm[1]}
	if !types.Finite(size.Width, size.Height) {
		return types.Size{}, types.Arithmeticf("object size %vx%v", size.Width, size.Height)
	}

	c.logger.Info("object size",
		zap.Float64("width_mm", size.Width),
		zap.Float64("height_mm", size.Height))
	return size, nil
}

// Zoom picks the focal length that fills about FillRatio of the frame with
// an object of w x h px measuring size at distance
func (c *Calculator) Zoom(w, h int, size types.Size, distance float64) (ZoomResult, error) {
	if w <= 0 || h <= 0 {
		return ZoomResult{}, types.Arithmeticf("object box %dx%d", w, h)
	}
	if size.Width <= 0 || size.Height <= 0 || !types.Finite(size.Width, size.Height, distance) {
		return ZoomResult{}, types.Arithmeticf("object size %vx%v mm at %v mm", size.Width, size.Height, distance)
	}

	g := c.rig.Sensor
	densityW := float64(g.SensorWidthPx) / g.SensorWidthMM
	densityH := float64(g.SensorHeightPx) / g.SensorHeightMM
	targetW := FillRatio * float64(g.SensorWidthPx) / densityW
	targetH := FillRatio * float64(g.SensorHeightPx) / densityH

	target, objectMM := authoritativeAxis(g, w, h, size, targetW, targetH)
	estimate := target * distance / (objectMM + target)
	if !types.Finite(estimate) {
		return ZoomResult{}, types.Arithmeticf("estimated focal %v", estimate)
	}

	focal, index, err := SelectFocal(c.rig.FocalLengths, estimate)
	if err != nil {
		return ZoomResult{}, err
	}

	c.logger.Info("zoom selected",
		zap.Float64("estimated_focal_mm", estimate),
		zap.Float64("focal_mm", focal),
		zap.Int("zoom_index", index))
	return ZoomResult{EstimatedFocal: estimate, Focal: focal, Index: index}, nil
}

// authoritativeAxis returns the target on-sensor size and the physical
// object size of the axis that limits framing
func authoritativeAxis(g CameraGeometry, w, h int, size types.Size, targetW, targetH float64) (float64, float64) {
	objAspect := float64(w) / float64(h)
	if g.Landscape() {
		if w > h && objAspect > g.SensorWidthMM/g.SensorHeightMM {
			return targetW, size.Width
		}
		return targetH, size.Height
	}
	if w < h && 1/objAspect > g.SensorHeightMM/g.SensorWidthMM {
		return targetH, size.Height
	}
	return targetW, size.Width
}

// SelectFocal returns the largest candidate strictly below estimate and its
// 1-based position. Equal candidates resolve to the first one.
func SelectFocal(candidates []float64, estimate float64) (float64, int, error) {
	best, index := 0.0, 0
	for i, f := range candidates {
		if f < estimate && (index == 0 || f > best) {
			best, index = f, i+1
		}
	}
	if index == 0 {
		return 0, 0, types.Arithmeticf("no focal length below estimated %.2f mm", estimate)
	}
	return best, index, nil
}
