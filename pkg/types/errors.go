package types

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput means a required photo or settings file could not be located
	ErrMissingInput = errors.New("missing input file")
	// ErrInvalidInput means an input exists but cannot be used (undecodable, wrong size)
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyDetection means a detector found nothing it could work with
	ErrEmptyDetection = errors.New("empty detection result")
	// ErrArithmetic means a geometry computation had no valid result
	ErrArithmetic = errors.New("arithmetic failure")
)

// Stage names the pipeline step an error came from
type Stage string

const (
	StageInput           Stage = "input"
	StageCalibrationMask Stage = "calibration mask"
	StageDiscBounds      Stage = "disc bounds"
	StageDistance        Stage = "camera distance"
	StageAngle           Stage = "camera angle"
	StageObjectMask      Stage = "object mask"
	StageDiscOutline     Stage = "disc outline"
	StageObjectBounds    Stage = "object bounds"
	StageBigBoundingBox  Stage = "big bounding box"
	StageObjectSize      Stage = "object size"
	StageZoom            Stage = "zoom"
	StageOutput          Stage = "output"
)

// StageError ties an error to the pipeline stage that produced it
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with the stage name. A nil err stays nil and an error
// that already carries a stage keeps the innermost one.
func AtStage(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded on err, if any
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// Arithmeticf builds an ErrArithmetic error with a formatted reason
func Arithmeticf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrArithmetic, fmt.Sprintf(format, args...))
}

// ErrorKind classifies failures for user-facing reporting
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindMissingInputFile
	KindInvalidInput
	KindEmptyDetectionResult
	KindArithmeticFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingInputFile:
		return "MissingInputFile"
	case KindInvalidInput:
		return "InvalidInput"
	case KindEmptyDetectionResult:
		return "EmptyDetectionResult"
	case KindArithmeticFailure:
		return "ArithmeticFailure"
	default:
		return "Unknown"
	}
}

// KindOf classifies err by the sentinel it wraps
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrMissingInput):
		return KindMissingInputFile
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrEmptyDetection):
		return KindEmptyDetectionResult
	case errors.Is(err, ErrArithmetic):
		return KindArithmeticFailure
	default:
		return KindUnknown
	}
}
