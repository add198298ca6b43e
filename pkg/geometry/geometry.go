// Package geometry converts pixel measurements of the calibration disc and
// the object into physical distance, size and a rig zoom setting using the
// pinhole camera model.
package geometry

import (
	"fmt"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// CameraGeometry describes the sensor. Width and height refer to the axes
// of the captured photo once normalized.
type CameraGeometry struct {
	SensorWidthMM  float64 `json:"sensor_width_mm" mapstructure:"sensor_width_mm"`
	SensorHeightMM float64 `json:"sensor_height_mm" mapstructure:"sensor_height_mm"`
	SensorWidthPx  int     `json:"sensor_width_px" mapstructure:"sensor_width_px"`
	SensorHeightPx int     `json:"sensor_height_px" mapstructure:"sensor_height_px"`
}

// Normalize returns the geometry matching a photoW x photoH photo. For a
// portrait photo the width and height fields are swapped together.
func (g CameraGeometry) Normalize(photoW, photoH int) CameraGeometry {
	if photoH <= photoW {
		return g
	}
	return CameraGeometry{
		SensorWidthMM:  g.SensorHeightMM,
		SensorHeightMM: g.SensorWidthMM,
		SensorWidthPx:  g.SensorHeightPx,
		SensorHeightPx: g.SensorWidthPx,
	}
}

// Landscape reports whether the sensor is wider than tall in pixels
func (g CameraGeometry) Landscape() bool {
	return g.SensorWidthPx > g.SensorHeightPx
}

// Validate checks that every dimension is positive
func (g CameraGeometry) Validate() error {
	if g.SensorWidthMM <= 0 || g.SensorHeightMM <= 0 {
		return fmt.Errorf("%w: sensor size %.3fx%.3f mm", types.ErrInvalidInput, g.SensorWidthMM, g.SensorHeightMM)
	}
	if g.SensorWidthPx <= 0 || g.SensorHeightPx <= 0 {
		return fmt.Errorf("%w: sensor resolution %dx%d px", types.ErrInvalidInput, g.SensorWidthPx, g.SensorHeightPx)
	}
	return nil
}

// Rig is the fixed camera setup: sensor, calibration disc and the focal
// lengths the lens can be set to, in zoom order
type Rig struct {
	Sensor        CameraGeometry `json:"sensor" mapstructure:"sensor"`
	DiscDiameterM float64        `json:"disc_diameter_m" mapstructure:"disc_diameter_m"`
	FocalLengths  []float64      `json:"focal_lengths" mapstructure:"focal_lengths"`
}

// DiscDiameterMM returns the disc diameter in millimetres
func (r Rig) DiscDiameterMM() float64 {
	return r.DiscDiameterM * 1000
}

// ReferenceFocal returns the focal length the calibration photos are taken
// at, the first candidate
func (r Rig) ReferenceFocal() float64 {
	if len(r.FocalLengths) == 0 {
		return 0
	}
	return r.FocalLengths[0]
}

// Validate checks the rig settings
func (r Rig) Validate() error {
	if err := r.Sensor.Validate(); err != nil {
		return err
	}
	if r.DiscDiameterM <= 0 {
		return fmt.Errorf("%w: disc diameter %.4f m", types.ErrInvalidInput, r.DiscDiameterM)
	}
	if len(r.FocalLengths) == 0 {
		return fmt.Errorf("%w: no focal lengths", types.ErrInvalidInput)
	}
	for i, f := range r.FocalLengths {
		if f <= 0 {
			return fmt.Errorf("%w: focal length #%d is %.2f mm", types.ErrInvalidInput, i+1, f)
		}
	}
	return nil
}
