package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "release", ""} {
		l, err := New(Config{Mode: mode})
		if err != nil {
			t.Fatalf("New(%q) failed: %v", mode, err)
		}
		if l == nil {
			t.Fatalf("New(%q) returned nil", mode)
		}
	}
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := New(Config{Mode: "release", File: path})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	l.Info("zoom selected")
	Sync(l)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(data), "zoom selected") {
		t.Errorf("Expected message in log file, got %q", string(data))
	}
}

func TestLogPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panic.log")
	l, err := New(Config{Mode: "release", File: path})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	func() {
		defer func() {
			if r := recover(); r != "boom" {
				t.Errorf("Expected panic to be re-raised, got %v", r)
			}
		}()
		defer LogPanic(l)
		panic("boom")
	}()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "uncaught panic") {
		t.Errorf("Expected panic to be logged, got %q", string(data))
	}
}
