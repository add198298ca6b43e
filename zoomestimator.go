// Package zoomestimator measures an object on a fixed camera rig and picks
// the zoom setting that frames it.
//
// A measurement takes three photos taken from the same camera position:
//
//   - a calibration photo showing the blue disc of known diameter
//   - a background photo of the empty work disc
//   - an object photo, the background with the object placed on it
//
// The blue disc gives the camera distance and tilt. The difference between
// the object and background photos gives the object outline, which is grown
// into a box centered on the frame and converted into millimetres with the
// pinhole camera model. The zoom index is the position of the longest focal
// length that still fits the object into 80% of the frame.
//
// Basic usage:
//
//	rig := geometry.Rig{
//		Sensor:        geometry.CameraGeometry{SensorWidthMM: 17.3, SensorHeightMM: 13, SensorWidthPx: 5184, SensorHeightPx: 3888},
//		DiscDiameterM: 0.3,
//		FocalLengths:  []float64{12, 14, 17, 20, 25, 30, 35, 42, 50, 60},
//	}
//	est := zoomestimator.New(rig)
//	est.SetStore(zoomstore.NewFileStore("zoom.conf"))
//
//	res, err := est.MeasureFiles(ctx, analyzer.PhotoPaths{
//		Calibration: "blue.jpg",
//		Background:  "gray.jpg",
//		Object:      "obj.jpg",
//	}, "CAM-01")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("%.0fx%.0f mm, zoom %d\n", res.Measurement.ObjectSize.Width,
//		res.Measurement.ObjectSize.Height, res.Measurement.ZoomIndex)
//
// Every failure is returned as a *types.StageError naming the step that
// failed; types.KindOf classifies it.
package zoomestimator

import (
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/menta2k/zoom-estimator/pkg/analyzer"
	"github.com/menta2k/zoom-estimator/pkg/bounds"
	"github.com/menta2k/zoom-estimator/pkg/geometry"
	"github.com/menta2k/zoom-estimator/pkg/imgproc"
	"github.com/menta2k/zoom-estimator/pkg/mask"
	"github.com/menta2k/zoom-estimator/pkg/processing"
	"github.com/menta2k/zoom-estimator/pkg/types"
	"github.com/menta2k/zoom-estimator/pkg/zoomstore"
)

// Version of the zoom estimator library
const Version = "1.0.0"

// Options configures an Estimator
type Options struct {
	Rig         geometry.Rig
	Mask        mask.Params
	Disc        mask.DiscConfig
	Analyzer    analyzer.Config
	Output      processing.OutputOptions
	OutputDir   string // where the bounding image goes
	SaveOverlay bool
	Logger      *zap.Logger
}

// DefaultOptions returns options for rig with the tuned pipeline defaults.
// The bounding image is not written.
func DefaultOptions(rig geometry.Rig) Options {
	return Options{
		Rig:       rig,
		Mask:      mask.DefaultParams(),
		Disc:      mask.DefaultDiscConfig(),
		Analyzer:  analyzer.DefaultConfig(),
		Output:    processing.DefaultOutputOptions(),
		OutputDir: ".",
	}
}

// Estimator runs the measurement pipeline. It keeps no state between runs
// and is safe for concurrent use once configured.
type Estimator struct {
	rig         geometry.Rig
	analyzer    *analyzer.PhotoAnalyzer
	masks       *mask.Builder
	disc        *mask.DiscMasker
	extractor   *bounds.Extractor
	expander    *bounds.Expander
	processor   *processing.Processor
	store       zoomstore.Store
	outputDir   string
	saveOverlay bool
	logger      *zap.Logger
}

// New creates an Estimator for rig with default configuration
func New(rig geometry.Rig) *Estimator {
	return NewWithOptions(DefaultOptions(rig))
}

// NewWithOptions creates an Estimator with custom configuration
func NewWithOptions(opts Options) *Estimator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	masks := mask.NewWithParams(opts.Mask)
	masks.SetLogger(logger.Named("mask"))
	disc := mask.NewDiscMaskerWithConfig(opts.Disc)
	disc.SetLogger(logger.Named("disc"))
	extractor := bounds.NewExtractor()
	extractor.SetLogger(logger.Named("bounds"))
	expander := bounds.NewExpander()
	expander.SetLogger(logger.Named("bounds"))

	return &Estimator{
		rig:         opts.Rig,
		analyzer:    analyzer.NewWithConfig(opts.Analyzer),
		masks:       masks,
		disc:        disc,
		extractor:   extractor,
		expander:    expander,
		processor:   processing.NewProcessor(opts.Output),
		outputDir:   opts.OutputDir,
		saveOverlay: opts.SaveOverlay,
		logger:      logger,
	}
}

// SetStore sets where zoom results are persisted. nil disables persistence.
func (e *Estimator) SetStore(store zoomstore.Store) {
	e.store = store
}

// Result is the outcome of one measurement
type Result struct {
	Measurement types.Measurement `json:"measurement"`
	OverlayPath string            `json:"overlay_path,omitempty"`
}

// LoadPhotoSet loads the three photos from files
func (e *Estimator) LoadPhotoSet(paths analyzer.PhotoPaths) (*analyzer.PhotoSet, error) {
	set, err := e.analyzer.LoadPhotoSet(paths)
	return set, types.AtStage(types.StageInput, err)
}

// LoadPhotoSetFromReaders decodes the three photos from readers
func (e *Estimator) LoadPhotoSetFromReaders(calibration, background, object io.Reader) (*analyzer.PhotoSet, error) {
	set, err := e.analyzer.LoadPhotoSetFromReaders(calibration, background, object)
	return set, types.AtStage(types.StageInput, err)
}

// MeasureFiles loads the photos named by paths and measures them
func (e *Estimator) MeasureFiles(ctx context.Context, paths analyzer.PhotoPaths, serial string) (*Result, error) {
	set, err := e.LoadPhotoSet(paths)
	if err != nil {
		return nil, err
	}
	return e.Measure(ctx, set, serial)
}

// photoMats holds the photos converted for OpenCV
type photoMats struct {
	calibration gocv.Mat
	background  gocv.Mat
	object      gocv.Mat
}

func (p *photoMats) Close() {
	p.calibration.Close()
	p.background.Close()
	p.object.Close()
}

func toMats(set *analyzer.PhotoSet) (*photoMats, error) {
	calibration, err := imgproc.FromImage(set.Calibration)
	if err != nil {
		return nil, fmt.Errorf("calibration photo: %w", err)
	}
	background, err := imgproc.FromImage(set.Background)
	if err != nil {
		calibration.Close()
		return nil, fmt.Errorf("background photo: %w", err)
	}
	object, err := imgproc.FromImage(set.Object)
	if err != nil {
		calibration.Close()
		background.Close()
		return nil, fmt.Errorf("object photo: %w", err)
	}
	return &photoMats{calibration: calibration, background: background, object: object}, nil
}

// Measure runs the full pipeline on set and persists the zoom index for
// serial when a store is set
func (e *Estimator) Measure(ctx context.Context, set *analyzer.PhotoSet, serial string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.AtStage(types.StageInput, err)
	}
	if err := e.analyzer.ValidatePhotoSet(set); err != nil {
		return nil, types.AtStage(types.StageInput, err)
	}
	if !set.SharesCalibrationResolution() {
		e.logger.Warn("object photo resolution differs from the calibration photo, object size will be off",
			zap.Stringer("calibration", set.Calibration.Bounds().Size()),
			zap.Stringer("object", set.Object.Bounds().Size()))
	}

	mats, err := toMats(set)
	if err != nil {
		return nil, types.AtStage(types.StageInput, err)
	}
	defer mats.Close()

	calibW, calibH := mats.calibration.Cols(), mats.calibration.Rows()
	calc, err := geometry.NewCalculator(e.rig, calibW, calibH)
	if err != nil {
		return nil, types.AtStage(types.StageInput, err)
	}
	calc.SetLogger(e.logger.Named("geometry"))

	m := types.Measurement{
		SerialNumber: serial,
		PhotoWidth:   mats.object.Cols(),
		PhotoHeight:  mats.object.Rows(),
	}

	// calibration disc: distance and tilt
	colorMask, err := e.masks.ColorSegment(mats.calibration)
	if err != nil {
		return nil, types.AtStage(types.StageCalibrationMask, err)
	}
	defer colorMask.Close()

	if m.DiscBox, err = e.extractor.Extract(colorMask); err != nil {
		return nil, types.AtStage(types.StageDiscBounds, err)
	}
	if m.DistanceMM, err = calc.Distance(m.DiscBox.Width, m.DiscBox.Height); err != nil {
		return nil, types.AtStage(types.StageDistance, err)
	}
	if m.AngleDeg, err = calc.Angle(m.DiscBox.Width, m.DiscBox.Height); err != nil {
		return nil, types.AtStage(types.StageAngle, err)
	}

	// object outline
	objectMask, err := e.masks.Subtraction(mats.object, mats.background)
	if err != nil {
		return nil, types.AtStage(types.StageObjectMask, err)
	}
	defer objectMask.Close()

	suppression := e.disc.Suppression(mats.background, m.AngleDeg)
	m.DiscSuppressed = suppression != nil
	finalMask, err := suppression.Apply(objectMask)
	if err != nil {
		return nil, types.AtStage(types.StageDiscOutline, err)
	}
	defer finalMask.Close()

	if m.TightBox, err = e.extractor.Extract(finalMask); err != nil {
		return nil, types.AtStage(types.StageObjectBounds, err)
	}
	if m.ExpandedBox, m.Centering, err = e.expander.Expand(m.TightBox, m.PhotoWidth, m.PhotoHeight); err != nil {
		return nil, types.AtStage(types.StageBigBoundingBox, err)
	}

	result := &Result{}
	if e.saveOverlay {
		if result.OverlayPath, err = e.writeOverlay(finalMask, m.ExpandedBox, serial); err != nil {
			return nil, types.AtStage(types.StageOutput, err)
		}
	}

	// physical size and zoom
	if m.ObjectSize, err = calc.ObjectSize(m.ExpandedBox.Width, m.ExpandedBox.Height, m.DistanceMM); err != nil {
		return nil, types.AtStage(types.StageObjectSize, err)
	}
	zoom, err := calc.Zoom(m.ExpandedBox.Width, m.ExpandedBox.Height, m.ObjectSize, m.DistanceMM)
	if err != nil {
		return nil, types.AtStage(types.StageZoom, err)
	}
	m.EstimatedFocal, m.FocalMM, m.ZoomIndex = zoom.EstimatedFocal, zoom.Focal, zoom.Index
	m.CreatedAt = time.Now().UTC()

	if e.store != nil {
		if err := e.store.Save(ctx, &m); err != nil {
			return nil, types.AtStage(types.StageOutput, err)
		}
	}

	e.logger.Info("measurement complete",
		zap.String("serial", serial),
		zap.Float64("width_mm", m.ObjectSize.Width),
		zap.Float64("height_mm", m.ObjectSize.Height),
		zap.Int("zoom_index", m.ZoomIndex))

	result.Measurement = m
	return result, nil
}

func (e *Estimator) writeOverlay(finalMask gocv.Mat, box types.BoundingBox, serial string) (string, error) {
	img, err := imgproc.ToImage(finalMask)
	if err != nil {
		return "", err
	}
	path, err := e.processor.SaveBoundingOverlay(img, box, e.outputDir, serial)
	if err != nil {
		return "", err
	}
	e.logger.Info("bounding image written", zap.String("path", path))
	return path, nil
}

// GetImageInfo returns basic information about a photo
func (e *Estimator) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return e.analyzer.GetImageInfo(img)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
