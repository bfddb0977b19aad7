// Package logger provides a convenience function to constructing a logger
// for use. This is required not just for applications but for testing.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Set of rotation defaults for the log file.
const (
	DefaultThresholdKB = 10 * 1024
	DefaultMaxRolls    = 3
)

// New constructs a Sugared Logger that writes to stdout and
// provides human readable timestamps.
func New(service string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}

// NewWithFile constructs a Sugared Logger that writes to stdout and to a
// rotating log file. The returned function closes the file and must be
// called once the logger is no longer used.
func NewWithFile(service string, path string, thresholdKB int64, maxRolls int) (*zap.SugaredLogger, func() error, error) {
	if path == "" {
		log, err := New(service)
		return log, func() error { return nil }, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	r, err := rotator.New(path, thresholdKB, false, maxRolls)
	if err != nil {
		return nil, nil, fmt.Errorf("creating file rotator: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), zap.InfoLevel),
		zapcore.NewCore(encoder, zapcore.AddSync(r), zap.InfoLevel),
	)

	log := zap.New(core, zap.AddCaller()).With(zap.String("service", service))

	return log.Sugar(), r.Close, nil
}
