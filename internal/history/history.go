// Package history keeps every completed measurement in SQLite
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// Record is a stored measurement row
type Record struct {
	ID int64 `json:"id"`
	types.Measurement
}

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open creates and initializes the history database at path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		serial TEXT NOT NULL,
		photo_width INTEGER NOT NULL,
		photo_height INTEGER NOT NULL,
		distance_mm REAL NOT NULL,
		angle_deg REAL NOT NULL,
		disc_suppressed INTEGER NOT NULL DEFAULT 0,
		width_mm REAL NOT NULL,
		height_mm REAL NOT NULL,
		estimated_focal_mm REAL NOT NULL,
		focal_mm REAL NOT NULL,
		zoom_index INTEGER NOT NULL,
		boxes TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_serial ON measurements(serial);
	CREATE INDEX IF NOT EXISTS idx_measurements_created_at ON measurements(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// boxes groups the pixel boxes stored as one JSON column
type boxes struct {
	Disc      types.BoundingBox `json:"disc"`
	Tight     types.BoundingBox `json:"tight"`
	Expanded  types.BoundingBox `json:"expanded"`
	Centering types.Centering   `json:"centering"`
}

// Record stores m and returns its row id
func (db *DB) Record(ctx context.Context, m *types.Measurement) (int64, error) {
	if m == nil {
		return 0, fmt.Errorf("%w: no measurement", types.ErrInvalidInput)
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	b, err := json.Marshal(boxes{Disc: m.DiscBox, Tight: m.TightBox, Expanded: m.ExpandedBox, Centering: m.Centering})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal boxes: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	result, err := db.conn.ExecContext(ctx, `
		INSERT INTO measurements (serial, photo_width, photo_height, distance_mm, angle_deg,
			disc_suppressed, width_mm, height_mm, estimated_focal_mm, focal_mm, zoom_index, boxes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.SerialNumber, m.PhotoWidth, m.PhotoHeight, m.DistanceMM, m.AngleDeg,
		m.DiscSuppressed, m.ObjectSize.Width, m.ObjectSize.Height, m.EstimatedFocal, m.FocalMM,
		m.ZoomIndex, string(b), created.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to insert measurement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

// Save records m so the database can sit in a zoomstore.Multi
func (db *DB) Save(ctx context.Context, m *types.Measurement) error {
	_, err := db.Record(ctx, m)
	return err
}

// Recent returns up to limit measurements for serial, newest first. An
// empty serial matches every camera.
func (db *DB) Recent(ctx context.Context, serial string, limit int) ([]Record, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	query := `
		SELECT id, serial, photo_width, photo_height, distance_mm, angle_deg, disc_suppressed,
			width_mm, height_mm, estimated_focal_mm, focal_mm, zoom_index, boxes, created_at
		FROM measurements
		WHERE 1=1
	`
	args := []interface{}{}

	if serial != "" {
		query += " AND serial = ?"
		args = append(args, serial)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var rawBoxes string
		err := rows.Scan(&r.ID, &r.SerialNumber, &r.PhotoWidth, &r.PhotoHeight, &r.DistanceMM, &r.AngleDeg,
			&r.DiscSuppressed, &r.ObjectSize.Width, &r.ObjectSize.Height, &r.EstimatedFocal, &r.FocalMM,
			&r.ZoomIndex, &rawBoxes, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}

		var b boxes
		if err := json.Unmarshal([]byte(rawBoxes), &b); err != nil {
			return nil, fmt.Errorf("failed to decode boxes of measurement %d: %w", r.ID, err)
		}
		r.DiscBox, r.TightBox, r.ExpandedBox, r.Centering = b.Disc, b.Tight, b.Expanded, b.Centering

		records = append(records, r)
	}

	return records, rows.Err()
}

// Count returns the number of stored measurements
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var count int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM measurements`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count measurements: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
