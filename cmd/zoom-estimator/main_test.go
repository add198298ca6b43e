package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/menta2k/zoom-estimator/internal/config"
	"github.com/menta2k/zoom-estimator/pkg/types"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing", types.AtStage(types.StageInput, fmt.Errorf("%w: blue.jpg", types.ErrMissingInput)), exitMissing},
		{"empty", types.AtStage(types.StageObjectBounds, types.ErrEmptyDetection), exitEmpty},
		{"arithmetic", types.AtStage(types.StageZoom, types.Arithmeticf("no focal")), exitArithmetic},
		{"invalid", fmt.Errorf("%w: size mismatch", types.ErrInvalidInput), exitInvalid},
		{"other", errors.New("disk full"), exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	if code := writeDefaultConfig(path); code != exitOK {
		t.Fatalf("Expected exit 0, got %d", code)
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		t.Fatalf("written settings do not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("written settings are invalid: %v", err)
	}

	if code := writeDefaultConfig(path); code != exitInvalid {
		t.Errorf("Expected refusal to overwrite, got exit %d", code)
	}
}

func TestOpenStoresFileOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()

	set, err := openStores(cfg, nopLogger())
	if err != nil {
		t.Fatalf("openStores() failed: %v", err)
	}
	defer set.Close()

	if len(set.all) != 1 || set.redis != nil || set.history != nil {
		t.Errorf("Expected only the zoom file store, got %+v", set)
	}
}

func TestOpenStoresWithHistory(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Dir = dir
	cfg.History.Enabled = true
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	set, err := openStores(cfg, nopLogger())
	if err != nil {
		t.Fatalf("openStores() failed: %v", err)
	}
	defer set.Close()

	if set.redis != nil {
		t.Error("Expected unreachable redis to be skipped")
	}
	if set.history == nil || len(set.all) != 2 {
		t.Errorf("Expected file and history stores, got %d", len(set.all))
	}
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
