package logger

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger flavour
type Config struct {
	Mode string `json:"mode" mapstructure:"mode"` // development or release
	File string `json:"file" mapstructure:"file"` // appended to the outputs when set
}

// New builds a zap logger for cfg
func New(cfg Config) (*zap.Logger, error) {
	var zc zap.Config

	if cfg.Mode == "release" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.File != "" {
		zc.OutputPaths = append(zc.OutputPaths, cfg.File)
		zc.ErrorOutputPaths = append(zc.ErrorOutputPaths, cfg.File)
		if cfg.Mode != "release" {
			// no color escapes in the file
			zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Sync flushes l, ignoring the errors stdout and stderr report on sync
func Sync(l *zap.Logger) {
	if l != nil {
		_ = l.Sync()
	}
}

// LogPanic logs a recovered panic value with its stack and re-panics.
// Use it as a deferred call at the top of main.
func LogPanic(l *zap.Logger) {
	r := recover()
	if r == nil {
		return
	}
	if l != nil {
		l.Error("uncaught panic",
			zap.Any("value", r),
			zap.ByteString("stack", debug.Stack()))
		_ = l.Sync()
	}
	panic(r)
}
