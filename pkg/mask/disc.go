package mask

import (
	"math"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/menta2k/zoom-estimator/pkg/imgproc"
	"github.com/menta2k/zoom-estimator/pkg/types"
)

// DiscConfig controls when and how the work disc outline is suppressed
type DiscConfig struct {
	SteepAngle float64 `json:"steep_angle" mapstructure:"steep_angle"` // degrees; at or below this no suppression
	Scale      float64 `json:"scale" mapstructure:"scale"`             // detection runs on a downscaled copy
	DP         float64 `json:"dp" mapstructure:"dp"`
	MinDist    float64 `json:"min_dist" mapstructure:"min_dist"`
	MinRadius  int     `json:"min_radius" mapstructure:"min_radius"` // at detection scale
	Margin     int     `json:"margin" mapstructure:"margin"`         // full resolution pixels
}

// DefaultDiscConfig returns the disc detection settings tuned for the rig
func DefaultDiscConfig() DiscConfig {
	return DiscConfig{
		SteepAngle: 60,
		Scale:      0.5,
		DP:         1.2,
		MinDist:    100,
		MinRadius:  150,
		Margin:     120,
	}
}

// Suppression is a filled circle that keeps only the inside of the work
// disc. A nil *Suppression means nothing is suppressed.
type Suppression struct {
	Circle types.Circle
}

// Apply returns mask AND the suppression circle. A nil suppression returns
// a copy of mask.
func (s *Suppression) Apply(mask gocv.Mat) (gocv.Mat, error) {
	if s == nil {
		return mask.Clone(), nil
	}
	circle := imgproc.FilledCircleMask(mask.Rows(), mask.Cols(), s.Circle)
	defer circle.Close()
	return imgproc.BitwiseAnd(mask, circle)
}

// SelectSuppression picks the suppression circle from circles detected at
// cfg.Scale. It returns nil when the shot is not steep enough, when nothing
// was detected or when the shrunken radius is not positive.
func SelectSuppression(angle float64, circles []types.Circle, cfg DiscConfig) *Suppression {
	if angle <= cfg.SteepAngle || len(circles) == 0 || cfg.Scale <= 0 {
		return nil
	}

	biggest := circles[0]
	for _, c := range circles[1:] {
		if c.Radius > biggest.Radius {
			biggest = c
		}
	}

	up := 1 / cfg.Scale
	full := types.Circle{
		X:      int(math.Round(float64(biggest.X) * up)),
		Y:      int(math.Round(float64(biggest.Y) * up)),
		Radius: int(math.Round(float64(biggest.Radius)*up)) - cfg.Margin,
	}
	if full.Radius <= 0 {
		return nil
	}
	return &Suppression{Circle: full}
}

// DiscMasker finds the work disc on the background photo
type DiscMasker struct {
	config DiscConfig
	logger *zap.Logger
}

// NewDiscMasker creates a DiscMasker with the default settings
func NewDiscMasker() *DiscMasker {
	return NewDiscMaskerWithConfig(DefaultDiscConfig())
}

// NewDiscMaskerWithConfig creates a DiscMasker with custom settings
func NewDiscMaskerWithConfig(config DiscConfig) *DiscMasker {
	return &DiscMasker{config: config, logger: zap.NewNop()}
}

// SetLogger sets the logger used for detection diagnostics
func (d *DiscMasker) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d.logger = logger
}

// Suppression detects the disc outline on background when the camera looks
// down steeply. Failing to find a disc is not an error.
func (d *DiscMasker) Suppression(background gocv.Mat, angle float64) *Suppression {
	if angle <= d.config.SteepAngle {
		d.logger.Debug("disc suppression skipped", zap.Float64("angle", angle))
		return nil
	}

	gray := imgproc.ToGray(background)
	defer gray.Close()
	small := imgproc.Resize(gray, d.config.Scale)
	defer small.Close()

	circles := imgproc.DetectCircles(small, d.config.DP, d.config.MinDist, d.config.MinRadius)
	if len(circles) == 0 {
		d.logger.Warn("no disc outline found on background, suppression disabled")
		return nil
	}

	s := SelectSuppression(angle, circles, d.config)
	if s == nil {
		d.logger.Warn("disc outline too small for the margin, suppression disabled",
			zap.Int("circles", len(circles)))
		return nil
	}
	d.logger.Info("disc outline suppression",
		zap.Int("x", s.Circle.X),
		zap.Int("y", s.Circle.Y),
		zap.Int("radius", s.Circle.Radius))
	return s
}
