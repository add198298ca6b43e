package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testMeasurement(serial string, zoom int, at time.Time) *types.Measurement {
	return &types.Measurement{
		SerialNumber:   serial,
		PhotoWidth:     5184,
		PhotoHeight:    3888,
		DiscBox:        types.BoundingBox{X: 2000, Y: 1500, Width: 900, Height: 880},
		DistanceMM:     905.2,
		AngleDeg:       77.9,
		DiscSuppressed: true,
		TightBox:       types.BoundingBox{X: 2200, Y: 1600, Width: 500, Height: 400},
		ExpandedBox:    types.BoundingBox{X: 2092, Y: 1544, Width: 1000, Height: 800},
		Centering:      types.Centering{Distance: 12.5, Margin: 400, Centered: true},
		ObjectSize:     types.Size{Width: 150.4, Height: 120.1},
		EstimatedFocal: 38.2,
		FocalMM:        35,
		ZoomIndex:      zoom,
		CreatedAt:      at,
	}
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	for i, serial := range []string{"CAM-01", "CAM-02", "CAM-01"} {
		if _, err := db.Record(ctx, testMeasurement(serial, i+1, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Record() failed: %v", err)
		}
	}

	records, err := db.Recent(ctx, "CAM-01", 10)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ZoomIndex != 3 {
		t.Errorf("Expected newest record first, got zoom %d", records[0].ZoomIndex)
	}

	r := records[0]
	if r.ExpandedBox.Width != 1000 || !r.Centering.Centered || !r.DiscSuppressed {
		t.Errorf("Expected boxes to round-trip, got %+v", r.Measurement)
	}
	if !r.CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Expected created_at %v, got %v", base.Add(2*time.Minute), r.CreatedAt)
	}

	all, err := db.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected limit to apply, got %d records", len(all))
	}

	count, err := db.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 measurements, got %d", count)
	}
}

func TestRecordNil(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.Record(context.Background(), nil); err == nil {
		t.Error("Expected error for nil measurement")
	}
}

func TestRecentUnknownSerial(t *testing.T) {
	db := openTestDB(t)
	records, err := db.Recent(context.Background(), "nobody", 5)
	if err != nil {
		t.Fatalf("Recent() failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}
