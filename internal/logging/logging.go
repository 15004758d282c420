// ABOUTME: zap logger construction for the binaries
// ABOUTME: Logs to a file, and to stdout as well when no TUI owns the terminal
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects log destinations and level
type Config struct {
	// Path of the log file; empty disables file logging
	Path string
	// Stdout also writes human-readable logs to Stdout
	Stdout bool
	// Debug lowers the level to debug
	Debug bool
	// Out overrides os.Stdout, for tests
	Out io.Writer
}

// New builds a logger. The returned close function flushes and closes the
// log file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	var cores []zapcore.Core
	closeFn := func() error { return nil }

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		enc := zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(f), level))
		closeFn = f.Close
	}

	if cfg.Stdout {
		out := cfg.Out
		if out == nil {
			out = os.Stdout
		}
		enc := zap.NewDevelopmentEncoderConfig()
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(out), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), closeFn, nil
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return logger, func() error {
		_ = logger.Sync()
		return closeFn()
	}, nil
}
