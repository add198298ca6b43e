package server

import (
	zoomestimator "github.com/menta2k/zoom-estimator"
	"github.com/menta2k/zoom-estimator/internal/history"
)

// MeasureResponse is returned by the measure endpoint
type MeasureResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Data    *zoomestimator.Result `json:"data,omitempty"`
}

// ZoomResponse carries the stored zoom index of a camera
type ZoomResponse struct {
	Success bool   `json:"success"`
	Serial  string `json:"serial"`
	Zoom    int    `json:"zoom"`
}

// HistoryResponse lists past measurements of a camera
type HistoryResponse struct {
	Success bool             `json:"success"`
	Serial  string           `json:"serial"`
	Records []history.Record `json:"records"`
}

// ErrorResponse is returned on any failure
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Stage   string `json:"stage,omitempty"`
}
