// Package imgproc wraps the OpenCV operations the measurement pipeline is
// built from. Every function leaves its inputs untouched and returns a new
// Mat that the caller owns and must Close.
package imgproc

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// MaxValue is the foreground value of a binary mask
const MaxValue = 255

// MorphOp selects a morphological operation
type MorphOp int

const (
	Open MorphOp = iota
	Dilate
)

func (op MorphOp) morphType() gocv.MorphType {
	if op == Dilate {
		return gocv.MorphDilate
	}
	return gocv.MorphOpen
}

// FromImage converts a decoded photo into a 3-channel BGR Mat
func FromImage(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("%w: nil image", types.ErrInvalidInput)
	}
	m, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: convert image: %v", types.ErrInvalidInput, err)
	}
	return m, nil
}

// ToImage converts a Mat back into an image.Image
func ToImage(m gocv.Mat) (image.Image, error) {
	if m.Empty() {
		return nil, fmt.Errorf("%w: empty mat", types.ErrInvalidInput)
	}
	return m.ToImage()
}

// Zeros returns a black Mat of the given size and type
func Zeros(rows, cols int, mt gocv.MatType) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, mt)
}

// Filled returns a Mat of the given size and type with every channel set to v
func Filled(rows, cols int, mt gocv.MatType, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, v), rows, cols, mt)
}

func sameSize(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols()
}

// Difference returns the per-pixel absolute difference of a and b
func Difference(a, b gocv.Mat) (gocv.Mat, error) {
	if a.Empty() || b.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: difference of empty image", types.ErrInvalidInput)
	}
	if !sameSize(a, b) || a.Type() != b.Type() {
		return gocv.NewMat(), fmt.Errorf("%w: difference of %dx%d and %dx%d images",
			types.ErrInvalidInput, a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	dst := gocv.NewMat()
	gocv.AbsDiff(a, b, &dst)
	return dst, nil
}

// ToGray converts a BGR image to single-channel intensity. Single-channel
// inputs are cloned.
func ToGray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToGray)
	return dst
}

// GrayToBGR expands a single-channel image to three channels
func GrayToBGR(src gocv.Mat) gocv.Mat {
	if src.Channels() == 3 {
		return src.Clone()
	}
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorGrayToBGR)
	return dst
}

// ToHSV converts a BGR image to HSV (H on the 0-179 scale)
func ToHSV(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.CvtColor(src, &dst, gocv.ColorBGRToHSV)
	return dst
}

// Morphology applies op with a kernelSize x kernelSize rectangular element
func Morphology(src gocv.Mat, op MorphOp, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize))
	defer kernel.Close()

	dst := gocv.NewMat()
	gocv.MorphologyEx(src, &dst, op.morphType(), kernel)
	return dst
}

// BilateralFilter applies the edge preserving bilateral filter
func BilateralFilter(src gocv.Mat, diameter int, sigmaColor, sigmaSpace float64) gocv.Mat {
	dst := gocv.NewMat()
	gocv.BilateralFilter(src, &dst, diameter, sigmaColor, sigmaSpace)
	return dst
}

// GaussianBlur blurs with a square kernel, sigma derived from the kernel size
func GaussianBlur(src gocv.Mat, kernelSize int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.GaussianBlur(src, &dst, image.Pt(kernelSize, kernelSize), 0, 0, gocv.BorderDefault)
	return dst
}

// EqualizeHistogram spreads the intensity histogram of a gray image
func EqualizeHistogram(src gocv.Mat) gocv.Mat {
	dst := gocv.NewMat()
	gocv.EqualizeHist(src, &dst)
	return dst
}

// Threshold sets pixels strictly above thresh to MaxValue and the rest to 0
func Threshold(src gocv.Mat, thresh float32) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Threshold(src, &dst, thresh, MaxValue, gocv.ThresholdBinary)
	return dst
}

// AutoBinaryThreshold binarizes with Otsu's bi-modal threshold search. The
// hint is passed through as the initial cutoff and is ignored by the search.
func AutoBinaryThreshold(src gocv.Mat, hint float32) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Threshold(src, &dst, hint, MaxValue, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return dst
}

// InRange keeps pixels whose three channels all lie within [low, high]
func InRange(src gocv.Mat, low, high [3]float64) gocv.Mat {
	dst := gocv.NewMat()
	lb := gocv.NewScalar(low[0], low[1], low[2], 0)
	ub := gocv.NewScalar(high[0], high[1], high[2], 0)
	gocv.InRangeWithScalar(src, lb, ub, &dst)
	return dst
}

// BitwiseAnd combines two masks of equal size
func BitwiseAnd(a, b gocv.Mat) (gocv.Mat, error) {
	if !sameSize(a, b) {
		return gocv.NewMat(), fmt.Errorf("%w: and of %dx%d and %dx%d masks",
			types.ErrInvalidInput, a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	dst := gocv.NewMat()
	gocv.BitwiseAnd(a, b, &dst)
	return dst, nil
}

// CopyWhere copies src into dst wherever mask is non-zero
func CopyWhere(src gocv.Mat, dst *gocv.Mat, mask gocv.Mat) {
	src.CopyToWithMask(dst, mask)
}

// Resize scales src by factor using bicubic interpolation
func Resize(src gocv.Mat, factor float64) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Point{}, factor, factor, gocv.InterpolationCubic)
	return dst
}

// CountNonZero returns the number of foreground pixels in a mask
func CountNonZero(m gocv.Mat) int {
	return gocv.CountNonZero(m)
}

// FindExternalContours returns the outer boundaries of the foreground
// regions of mask with every boundary point kept.
func FindExternalContours(mask gocv.Mat) [][]image.Point {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()
	return contours.ToPoints()
}

// ContourArea returns the area enclosed by a contour
func ContourArea(points []image.Point) float64 {
	if len(points) == 0 {
		return 0
	}
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()
	return gocv.ContourArea(pv)
}

// BoundingRect returns the up-right bounding rectangle of a point set
func BoundingRect(points []image.Point) image.Rectangle {
	if len(points) == 0 {
		return image.Rectangle{}
	}
	pv := gocv.NewPointVectorFromPoints(points)
	defer pv.Close()
	return gocv.BoundingRect(pv)
}

// DetectCircles runs the Hough gradient circle search on a gray image.
// Accumulator thresholds stay at the OpenCV defaults and the maximum
// radius is unbounded. Circle values are rounded to whole pixels.
func DetectCircles(gray gocv.Mat, dp, minDist float64, minRadius int) []types.Circle {
	circles := gocv.NewMat()
	defer circles.Close()

	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient, dp, minDist, 100, 100, minRadius, 0)
	if circles.Empty() {
		return nil
	}

	out := make([]types.Circle, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		if len(v) < 3 {
			continue
		}
		out = append(out, types.Circle{
			X:      int(math.Round(float64(v[0]))),
			Y:      int(math.Round(float64(v[1]))),
			Radius: int(math.Round(float64(v[2]))),
		})
	}
	return out
}

// FilledCircleMask returns a rows x cols mask that is MaxValue inside c and
// 0 elsewhere.
func FilledCircleMask(rows, cols int, c types.Circle) gocv.Mat {
	m := Zeros(rows, cols, gocv.MatTypeCV8U)
	white := color.RGBA{R: MaxValue, G: MaxValue, B: MaxValue, A: 0}
	gocv.Circle(&m, c.Center(), c.Radius, white, -1)
	return m
}
