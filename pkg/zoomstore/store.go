// Package zoomstore persists the selected zoom index per camera serial
package zoomstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// ErrNotFound is returned by Lookup for an unknown serial number
var ErrNotFound = errors.New("zoom record not found")

// Store records zoom results
type Store interface {
	Save(ctx context.Context, m *types.Measurement) error
}

// Lookuper reads back a stored zoom index
type Lookuper interface {
	Lookup(ctx context.Context, serial string) (int, error)
}

// Multi saves to every store in order and stops at the first failure
type Multi []Store

// Save implements Store
func (m Multi) Save(ctx context.Context, meas *types.Measurement) error {
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Save(ctx, meas); err != nil {
			return err
		}
	}
	return nil
}

// Lookup asks every store that can read back, first hit wins
func (m Multi) Lookup(ctx context.Context, serial string) (int, error) {
	for _, s := range m {
		l, ok := s.(Lookuper)
		if !ok {
			continue
		}
		zoom, err := l.Lookup(ctx, serial)
		if err == nil {
			return zoom, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, serial)
}

// Line formats the zoom record line
func Line(serial string, zoom int) string {
	return fmt.Sprintf("%s=%d", serial, zoom)
}

func validate(m *types.Measurement) error {
	if m == nil {
		return fmt.Errorf("%w: no measurement", types.ErrInvalidInput)
	}
	if strings.TrimSpace(m.SerialNumber) == "" {
		return fmt.Errorf("%w: empty serial number", types.ErrInvalidInput)
	}
	if strings.ContainsAny(m.SerialNumber, "=\n\r") {
		return fmt.Errorf("%w: serial number %q", types.ErrInvalidInput, m.SerialNumber)
	}
	if m.ZoomIndex < 1 {
		return fmt.Errorf("%w: zoom index %d", types.ErrInvalidInput, m.ZoomIndex)
	}
	return nil
}
