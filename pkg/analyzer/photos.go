package analyzer

import (
	"fmt"
	"image"
	"io"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// PhotoPaths names the three photos of one measurement
type PhotoPaths struct {
	Calibration string // blue disc
	Background  string // empty gray disc
	Object      string
}

// PhotoSet holds the three decoded photos of one measurement
type PhotoSet struct {
	Calibration image.Image
	Background  image.Image
	Object      image.Image
}

// LoadPhotoSet loads and validates the photos named by paths
func (a *PhotoAnalyzer) LoadPhotoSet(paths PhotoPaths) (*PhotoSet, error) {
	set := &PhotoSet{}
	named := []struct {
		role string
		path string
		dst  *image.Image
	}{
		{"calibration", paths.Calibration, &set.Calibration},
		{"background", paths.Background, &set.Background},
		{"object", paths.Object, &set.Object},
	}

	for _, n := range named {
		if n.path == "" {
			return nil, fmt.Errorf("%w: no %s photo given", types.ErrMissingInput, n.role)
		}
		img, err := a.LoadImage(n.path)
		if err != nil {
			return nil, fmt.Errorf("%s photo: %w", n.role, err)
		}
		*n.dst = img
	}

	if err := a.ValidatePhotoSet(set); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadPhotoSetFromReaders decodes the three photos from readers
func (a *PhotoAnalyzer) LoadPhotoSetFromReaders(calibration, background, object io.Reader) (*PhotoSet, error) {
	set := &PhotoSet{}
	var err error

	if set.Calibration, err = a.LoadImageFromReader(calibration); err != nil {
		return nil, fmt.Errorf("calibration photo: %w", err)
	}
	if set.Background, err = a.LoadImageFromReader(background); err != nil {
		return nil, fmt.Errorf("background photo: %w", err)
	}
	if set.Object, err = a.LoadImageFromReader(object); err != nil {
		return nil, fmt.Errorf("object photo: %w", err)
	}

	if err := a.ValidatePhotoSet(set); err != nil {
		return nil, err
	}
	return set, nil
}

// ValidatePhotoSet checks sizes of every photo and that background and
// object line up pixel for pixel
func (a *PhotoAnalyzer) ValidatePhotoSet(set *PhotoSet) error {
	if set == nil {
		return fmt.Errorf("%w: no photos", types.ErrMissingInput)
	}
	for role, img := range map[string]image.Image{
		"calibration": set.Calibration,
		"background":  set.Background,
		"object":      set.Object,
	} {
		if err := a.ValidateImage(img); err != nil {
			return fmt.Errorf("%s photo: %w", role, err)
		}
	}
	if err := CheckSameResolution(set.Background, set.Object); err != nil {
		return fmt.Errorf("background and object photos differ: %w", err)
	}
	return nil
}

// SharesCalibrationResolution reports whether the object photo has the
// calibration photo's resolution, which object sizing assumes
func (s *PhotoSet) SharesCalibrationResolution() bool {
	return CheckSameResolution(s.Calibration, s.Object) == nil
}
