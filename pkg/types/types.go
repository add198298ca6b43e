package types

import (
	"image"
	"math"
	"time"
)

// BoundingBox is an axis-aligned pixel box. X and Y are the smaller
// coordinates of the box, Width and Height its extent.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoundingBoxFromRect converts an image.Rectangle into a BoundingBox
func BoundingBoxFromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Center returns the center point of the box
func (b BoundingBox) Center() (float64, float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Corners returns the four corners of the box, starting at (X, Y) and
// going around the box.
func (b BoundingBox) Corners() [4]image.Point {
	return [4]image.Point{
		{X: b.X, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y + b.Height},
		{X: b.X, Y: b.Y + b.Height},
	}
}

// Contains reports whether other lies fully inside b
func (b BoundingBox) Contains(other BoundingBox) bool {
	return other.X >= b.X && other.Y >= b.Y &&
		other.X+other.Width <= b.X+b.Width &&
		other.Y+other.Height <= b.Y+b.Height
}

// Empty reports whether the box has no area
func (b BoundingBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Circle is a detected circle in pixel units
type Circle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Radius int `json:"radius"`
}

// Center returns the circle center as an image.Point
func (c Circle) Center() image.Point {
	return image.Point{X: c.X, Y: c.Y}
}

// Size is a physical width/height pair in millimetres
type Size struct {
	Width  float64 `json:"width_mm"`
	Height float64 `json:"height_mm"`
}

// Centering reports how far the object sits from the image center.
// It is advisory only.
type Centering struct {
	Distance float64 `json:"distance_px"`
	Margin   float64 `json:"margin_px"`
	Centered bool    `json:"centered"`
}

// Measurement contains everything a pipeline run produced
type Measurement struct {
	SerialNumber   string      `json:"serial_number"`
	PhotoWidth     int         `json:"photo_width"`
	PhotoHeight    int         `json:"photo_height"`
	DiscBox        BoundingBox `json:"disc_box"`
	DistanceMM     float64     `json:"distance_mm"`
	AngleDeg       float64     `json:"angle_deg"`
	DiscSuppressed bool        `json:"disc_suppressed"`
	TightBox       BoundingBox `json:"tight_box"`
	ExpandedBox    BoundingBox `json:"expanded_box"`
	Centering      Centering   `json:"centering"`
	ObjectSize     Size        `json:"object_size"`
	EstimatedFocal float64     `json:"estimated_focal_mm"`
	FocalMM        float64     `json:"focal_mm"`
	ZoomIndex      int         `json:"zoom_index"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Finite reports whether every value is a finite number
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
