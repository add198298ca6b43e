package zoomstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/menta2k/zoom-estimator/pkg/types"
)

// FileStore writes a single <serial>=<zoom> line, replacing the file
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore writing to path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the zoom file location
func (s *FileStore) Path() string {
	return s.path
}

// Save implements Store
func (s *FileStore) Save(_ context.Context, m *types.Measurement) error {
	if err := validate(m); err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create zoom file directory: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// write then rename so readers never see a partial line
	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write zoom file: %w", err)
	}
	tmp := f.Name()
	_, werr := f.WriteString(Line(m.SerialNumber, m.ZoomIndex))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmp, 0644)
	}
	if werr == nil {
		werr = os.Rename(tmp, s.path)
	}
	if werr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write zoom file: %w", werr)
	}
	return nil
}

// Lookup implements Lookuper
func (s *FileStore) Lookup(_ context.Context, serial string) (int, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, serial)
		}
		return 0, fmt.Errorf("failed to read zoom file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != serial {
			continue
		}
		zoom, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("%w: zoom value %q", types.ErrInvalidInput, value)
		}
		return zoom, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read zoom file: %w", err)
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, serial)
}
