package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() failed: %v", err)
	}
	if err := EnsureDir(dir); err != nil {
		t.Fatalf("EnsureDir() on existing dir failed: %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureDir(file); err == nil {
		t.Error("Expected error when the path is a file")
	}
	if err := EnsureDir("."); err != nil {
		t.Errorf("Expected current dir to pass, got %v", err)
	}
}

func TestFileExistsAndSize(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "blue.jpg")
	if err := os.WriteFile(file, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("Expected file to exist")
	}
	if FileExists(dir) {
		t.Error("Expected a directory not to count as a file")
	}
	if FileExists(filepath.Join(dir, "missing.jpg")) {
		t.Error("Expected missing file to be reported")
	}

	if got := FileSize(file); got != 2048 {
		t.Errorf("Expected 2048 bytes, got %d", got)
	}
	if got := FileSize(filepath.Join(dir, "missing.jpg")); got != -1 {
		t.Errorf("Expected -1 for a missing file, got %d", got)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{-1, "unknown"},
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
